package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sw965/solvepomdp/output"
	"github.com/sw965/solvepomdp/parser"
	"github.com/sw965/solvepomdp/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <domain>",
	Short: "Estimate the value of a solved policy by simulation",
	Long: `simulate reads <output>/<instance>.alpha and, when present, <instance>.pg and
reports the mean discounted return of the greedy vector policy and of the
finite-state controller.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringP("output", "o", "", "Directory holding the solver output")
	simulateCmd.Flags().Int("runs", 0, "Number of simulated runs")
	simulateCmd.Flags().Int("steps", 0, "Steps per run")
	simulateCmd.Flags().Uint64("seed", 0, "Random seed")
	simulateCmd.Flags().Int("workers", 0, "Parallel workers (0 uses GOMAXPROCS)")
}

type namedPolicy struct {
	name    string
	factory simulator.PolicyFactory
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	path := domainPath(cfg, args[0])
	m, err := parser.ParseFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	resolve := output.ActionResolver(m)
	base := filepath.Join(cfg.Output.Directory, m.Name())

	vectors, err := output.LoadValueFunction(base+".alpha", resolve)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return fmt.Errorf("%s.alpha holds no vectors", base)
	}

	policies := []namedPolicy{
		{"vector", func() simulator.Policy { return simulator.NewVectorPolicy(vectors) }},
	}

	if _, err := os.Stat(base + ".pg"); err == nil {
		nodes, err := output.LoadPolicyGraph(base+".pg", m.NumObservations(), resolve)
		if err != nil {
			return err
		}
		if len(nodes) != len(vectors) {
			return fmt.Errorf("%s.pg has %d nodes for %d vectors", base, len(nodes), len(vectors))
		}
		for i, n := range nodes {
			vectors[i].ObsSource = n.Next
		}
		fsc, err := simulator.FSCFromVectors(vectors, m.InitialBelief().Entries)
		if err != nil {
			return err
		}
		policies = append(policies, namedPolicy{"graph", func() simulator.Policy { return fsc.Clone() }})
	}

	opts := []simulator.Option{
		simulator.WithSeed(cfg.Simulation.Seed),
		simulator.WithLogger(logger),
	}
	if cfg.Simulation.Workers > 0 {
		opts = append(opts, simulator.WithWorkers(cfg.Simulation.Workers))
	}
	for _, p := range policies {
		res, err := simulator.New(m, p.factory, opts...).Run(ctx, cfg.Simulation.Runs, cfg.Simulation.Steps)
		if err != nil {
			return fmt.Errorf("simulate %s policy: %w", p.name, err)
		}
		logger.Debug("policy simulated", zap.String("policy", p.name), zap.Float64("mean", res.Mean))
		fmt.Fprintf(cmd.OutOrStdout(), "Expected value %s: %v (std dev %v, %d runs)\n", p.name, res.Mean, res.StdDev, res.Runs)
	}
	return nil
}
