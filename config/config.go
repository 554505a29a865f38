// Package config holds the solver properties read from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sw965/solvepomdp/lp"
	"github.com/sw965/solvepomdp/prune"
	"github.com/sw965/solvepomdp/solver"
)

const (
	AlgorithmGIP     = "gip"
	AlgorithmPerseus = "perseus"
)

var (
	ErrInvalid     = errors.New("config: invalid value")
	ErrUnsupported = errors.New("config: unsupported algorithm")
)

type Config struct {
	Algorithm     string `yaml:"algorithm"`
	LPSolver      string `yaml:"lp_solver"`
	PruningMethod string `yaml:"pruning_method"`

	LP     lp.Config     `yaml:"lp"`
	Solver solver.Config `yaml:"solver"`

	Output     OutputConfig     `yaml:"output"`
	Simulation SimulationConfig `yaml:"simulation"`
}

type OutputConfig struct {
	Directory        string `yaml:"directory"`
	DomainDirectory  string `yaml:"domain_directory"`
	DumpActionLabels bool   `yaml:"dump_action_labels"`
}

type SimulationConfig struct {
	Runs    int    `yaml:"runs"`
	Steps   int    `yaml:"steps"`
	Seed    uint64 `yaml:"seed"`
	Workers int    `yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Algorithm:     AlgorithmGIP,
		LPSolver:      lp.SimplexName,
		PruningMethod: prune.AcceleratedName,
		LP:            lp.DefaultConfig(),
		Solver:        solver.DefaultConfig(),
		Output: OutputConfig{
			Directory:        "output",
			DomainDirectory:  "domains",
			DumpActionLabels: true,
		},
		Simulation: SimulationConfig{
			Runs:  1000,
			Steps: 100,
			Seed:  1,
		},
	}
}

// Load starts from DefaultConfig, applies the file at path when it exists
// and then the SOLVEPOMDP_* environment variables.
func Load(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return c, fmt.Errorf("config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return c, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := c.applyEnv(); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SOLVEPOMDP_PRUNING_METHOD"); v != "" {
		c.PruningMethod = v
	}
	if v := os.Getenv("SOLVEPOMDP_OUTPUT_DIRECTORY"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("SOLVEPOMDP_TIME_LIMIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: SOLVEPOMDP_TIME_LIMIT: %v", ErrInvalid, err)
		}
		c.Solver.TimeLimit = d
	}
	if v := os.Getenv("SOLVEPOMDP_FIXED_STAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SOLVEPOMDP_FIXED_STAGES: %v", ErrInvalid, err)
		}
		c.Solver.FixedStages = n
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmGIP:
	case AlgorithmPerseus:
		return fmt.Errorf("%w: %s", ErrUnsupported, c.Algorithm)
	default:
		return fmt.Errorf("%w: algorithm %q", ErrInvalid, c.Algorithm)
	}
	if _, err := lp.New(c.LPSolver, c.LP); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.PruningMethod {
	case prune.StandardName, prune.AcceleratedName:
	default:
		return fmt.Errorf("%w: pruning method %q", ErrInvalid, c.PruningMethod)
	}
	if err := c.LP.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("%w: empty output directory", ErrInvalid)
	}
	if c.Simulation.Runs < 0 || c.Simulation.Steps < 0 || c.Simulation.Workers < 0 {
		return fmt.Errorf("%w: negative simulation setting", ErrInvalid)
	}
	return nil
}
