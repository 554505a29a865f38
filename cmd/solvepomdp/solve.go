package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sw965/solvepomdp/lp"
	"github.com/sw965/solvepomdp/output"
	"github.com/sw965/solvepomdp/parser"
	"github.com/sw965/solvepomdp/prune"
	"github.com/sw965/solvepomdp/solver"
)

var solveCmd = &cobra.Command{
	Use:   "solve <domain>",
	Short: "Solve a POMDP and write its value function",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringP("output", "o", "", "Output directory")
	solveCmd.Flags().String("pruning", "", "Pruning method: standard or accelerated")
	solveCmd.Flags().Int("fixed-stages", 0, "Run exactly this many stages (0 runs to tolerance)")
	solveCmd.Flags().Duration("time-limit", 0, "Stop after the first stage that ends past this limit")
	solveCmd.Flags().Float64("tolerance", 0, "Bellman error at which the solver stops")
	solveCmd.Flags().Bool("policy-graph", false, "Also write a policy graph")
}

func runSolve(cmd *cobra.Command, args []string) error {
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
	logger.Info("read domain",
		zap.String("file", path),
		zap.Int("states", m.NumStates()),
		zap.Int("actions", m.NumActions()),
		zap.Int("observations", m.NumObservations()),
		zap.Float64("discount", m.Discount()))

	collector, reg := newMetrics()
	oracle, err := lp.New(cfg.LPSolver, cfg.LP, lp.WithLogger(logger), lp.WithMetrics(collector))
	if err != nil {
		return err
	}
	if err := oracle.Init(); err != nil {
		return err
	}
	defer oracle.Close()

	method, err := prune.New(cfg.PruningMethod, oracle, prune.WithMetrics(collector))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return err
	}
	dumper := output.NewDumper(cfg.Output.Directory, m.Name(), m, cfg.Output.DumpActionLabels, output.WithLogger(logger))

	exact := solver.New(cfg.Solver, oracle, method,
		solver.WithLogger(logger),
		solver.WithMetrics(collector),
		solver.WithRecorder(dumper))
	res, err := exact.Solve(ctx, m)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Algorithm:      %s\n", method.Name())
	fmt.Fprintf(cmd.OutOrStdout(), "Stages:         %d (%s)\n", res.Stages, res.StopReason)
	fmt.Fprintf(cmd.OutOrStdout(), "Vectors:        %d\n", len(res.Vectors))
	fmt.Fprintf(cmd.OutOrStdout(), "Bellman error:  %v\n", res.BellmanError)
	fmt.Fprintf(cmd.OutOrStdout(), "Expected value: %v\n", res.ExpectedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Solve time:     %v\n", res.SolveTime)
	fmt.Fprintf(cmd.OutOrStdout(), "Value function: %s\n", dumper.ValueFunctionPath())
	if res.PolicyGraph {
		fmt.Fprintf(cmd.OutOrStdout(), "Policy graph:   %s\n", dumper.PolicyGraphPath())
	}
	return writeMetrics(reg)
}
