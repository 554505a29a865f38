// Command solvepomdp solves POMDPs with generalized incremental pruning and
// evaluates the resulting policies by simulation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sw965/solvepomdp"
	"github.com/sw965/solvepomdp/config"
	"github.com/sw965/solvepomdp/metrics"
)

var (
	verbose     bool
	configPath  string
	metricsFile string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "solvepomdp",
	Short: "Exact POMDP solver based on incremental pruning",
	Long: `solvepomdp computes optimal value functions of POMDPs in Cassandra's .POMDP
format by exact dynamic programming with (accelerated) incremental pruning.`,
	Version:      solvepomdp.Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "solver.yaml", "Solver configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Directory, _ = flags.GetString("output")
	}
	if flags.Changed("pruning") {
		cfg.PruningMethod, _ = flags.GetString("pruning")
	}
	if flags.Changed("fixed-stages") {
		cfg.Solver.FixedStages, _ = flags.GetInt("fixed-stages")
	}
	if flags.Changed("time-limit") {
		cfg.Solver.TimeLimit, _ = flags.GetDuration("time-limit")
	}
	if flags.Changed("tolerance") {
		cfg.Solver.ValueFunctionTolerance, _ = flags.GetFloat64("tolerance")
	}
	if flags.Changed("policy-graph") {
		cfg.Solver.DumpPolicyGraph, _ = flags.GetBool("policy-graph")
	}
	if flags.Changed("runs") {
		cfg.Simulation.Runs, _ = flags.GetInt("runs")
	}
	if flags.Changed("steps") {
		cfg.Simulation.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("workers") {
		cfg.Simulation.Workers, _ = flags.GetInt("workers")
	}
	return cfg, cfg.Validate()
}

// domainPath accepts a path to a .POMDP file or the name of a file in the
// configured domain directory.
func domainPath(cfg config.Config, arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	return filepath.Join(cfg.Output.DomainDirectory, arg+".POMDP")
}

// newMetrics returns a collector registered with a fresh registry, or nil
// when no metrics file was requested.
func newMetrics() (*metrics.Collector, *prometheus.Registry) {
	if metricsFile == "" {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

func writeMetrics(reg *prometheus.Registry) error {
	if reg == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logger.Debug("wrote metrics", zap.String("path", metricsFile))
	return nil
}
