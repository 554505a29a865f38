package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/pomdp"
	"github.com/sw965/solvepomdp/solver"
)

var _ solver.Recorder = (*Dumper)(nil)

type labeledModel interface {
	ActionLabel(a int) string
	ActionIndex(label string) (int, bool)
}

// ActionLabels uses the model's action names when it has them.
func ActionLabels(m pomdp.Model) Labeler {
	if lm, ok := m.(labeledModel); ok {
		return lm.ActionLabel
	}
	return IntLabel
}

// ActionResolver accepts the model's action names as well as plain indices.
func ActionResolver(m pomdp.Model) Resolver {
	lm, ok := m.(labeledModel)
	return func(label string) (int, error) {
		if ok {
			if a, found := lm.ActionIndex(label); found {
				return a, nil
			}
		}
		a, err := strconv.Atoi(label)
		if err != nil {
			return -1, err
		}
		if a < 0 || a >= m.NumActions() {
			return -1, fmt.Errorf("action %d out of range", a)
		}
		return a, nil
	}
}

type DumperOption func(*Dumper)

func WithLogger(logger *zap.Logger) DumperOption {
	return func(d *Dumper) {
		d.logger = logger
	}
}

// Dumper writes <dir>/<instance>.alpha<stage> after every stage and
// <instance>.alpha, plus <instance>.pg for policy graphs, at the end.
type Dumper struct {
	dir      string
	instance string
	model    pomdp.Model
	label    Labeler
	logger   *zap.Logger
}

func NewDumper(dir, instance string, m pomdp.Model, useLabels bool, opts ...DumperOption) *Dumper {
	d := &Dumper{
		dir:      dir,
		instance: instance,
		model:    m,
		label:    IntLabel,
		logger:   zap.NewNop(),
	}
	if useLabels {
		d.label = ActionLabels(m)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dumper) StagePath(stage int) string {
	return filepath.Join(d.dir, d.instance+".alpha"+strconv.Itoa(stage))
}

func (d *Dumper) ValueFunctionPath() string {
	return filepath.Join(d.dir, d.instance+".alpha")
}

func (d *Dumper) PolicyGraphPath() string {
	return filepath.Join(d.dir, d.instance+".pg")
}

func (d *Dumper) RecordStage(stage int, vectors alpha.Set) error {
	return d.write(d.StagePath(stage), func(w io.Writer) error {
		return WriteValueFunction(w, vectors, d.label)
	})
}

func (d *Dumper) RecordFinal(vectors alpha.Set, policyGraph bool) error {
	err := d.write(d.ValueFunctionPath(), func(w io.Writer) error {
		return WriteValueFunction(w, vectors, d.label)
	})
	if err != nil || !policyGraph {
		return err
	}
	return d.write(d.PolicyGraphPath(), func(w io.Writer) error {
		return WritePolicyGraph(w, d.model, vectors, d.label)
	})
}

func (d *Dumper) write(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("output: close %s: %w", path, err)
	}
	d.logger.Debug("wrote", zap.String("path", path))
	return nil
}

// LoadValueFunction reads a file written by Dumper.
func LoadValueFunction(path string, resolve Resolver) (alpha.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadValueFunction(f, resolve)
}

func LoadPolicyGraph(path string, nObservations int, resolve Resolver) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPolicyGraph(f, nObservations, resolve)
}
