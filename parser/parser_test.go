package parser_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw965/solvepomdp/parser"
	"github.com/sw965/solvepomdp/pomdp/models"
)

const tiger = `# Kaelbling, Littman and Cassandra
discount: 0.95
values: reward
states: tiger-left tiger-right
actions: listen open-left open-right
observations: tiger-left tiger-right
start: uniform

T: listen
identity

T: open-left
uniform

T: open-right
uniform

O: listen
0.85 0.15
0.15 0.85

O: open-left
uniform

O: open-right
uniform

R: listen : * : * : * -1
R: open-left : tiger-left : * : * -100
R: open-left : tiger-right : * : * 10
R: open-right : tiger-left : * : * 10
R: open-right : tiger-right : * : * -100
`

const counted = `discount: 0.9
values: cost
states: 3
actions: 2
observations: 2
start: 0.2 0.3 0.5

T: * : * : 0 1
T: 0 : 0 : 0 0
T: 0 : 0 : 1 1.0
T: 1 : 1
0 .5 .5
O: * uniform
R: * : * : * : * 2
R: 1 : 2 : 0
4 6
`

func TestParseTiger(t *testing.T) {
	got, err := parser.Parse(strings.NewReader(tiger), "tiger")
	require.NoError(t, err)
	want := models.Tiger(0.95)

	require.Equal(t, want.NumStates(), got.NumStates())
	require.Equal(t, want.NumActions(), got.NumActions())
	require.Equal(t, want.NumObservations(), got.NumObservations())
	assert.Equal(t, "tiger", got.Name())
	assert.Equal(t, 0.95, got.Discount())
	assert.Equal(t, want.InitialBelief().Entries, got.InitialBelief().Entries)
	for a := 0; a < want.NumActions(); a++ {
		assert.Equal(t, want.ActionLabel(a), got.ActionLabel(a))
		for s := 0; s < want.NumStates(); s++ {
			assert.InDelta(t, want.Reward(s, a), got.Reward(s, a), 1e-12)
			for sNext := 0; sNext < want.NumStates(); sNext++ {
				assert.Equal(t, want.Transition(s, a, sNext), got.Transition(s, a, sNext))
			}
			for o := 0; o < want.NumObservations(); o++ {
				assert.Equal(t, want.Observation(a, s, o), got.Observation(a, s, o))
			}
		}
	}
}

func TestParseCountsWildcardsAndCost(t *testing.T) {
	m, err := parser.Parse(strings.NewReader(counted), "counted")
	require.NoError(t, err)

	assert.Equal(t, []float64{0.2, 0.3, 0.5}, m.InitialBelief().Entries)
	assert.Equal(t, "1", m.ActionLabel(1))
	assert.Equal(t, 1.0, m.Transition(0, 0, 1))
	assert.Equal(t, 0.0, m.Transition(0, 0, 0))
	assert.Equal(t, 1.0, m.Transition(2, 0, 0))
	assert.Equal(t, 0.5, m.Transition(1, 1, 2))
	assert.Equal(t, 0.5, m.Observation(1, 2, 1))

	assert.InDelta(t, -2, m.Reward(0, 0), 1e-12)
	assert.InDelta(t, -5, m.Reward(2, 1), 1e-12)
	assert.InDelta(t, -5, m.MinReward(), 1e-12)
}

func TestParseStartVariants(t *testing.T) {
	header := "discount: 0.5\nstates: s0 s1 s2\nactions: 1\nobservations: 1\n"
	body := "T: * identity\nO: * uniform\n"
	tests := []struct {
		start string
		want  []float64
	}{
		{start: "start include: s0 s2", want: []float64{0.5, 0, 0.5}},
		{start: "start exclude: s1", want: []float64{0.5, 0, 0.5}},
		{start: "start: s1", want: []float64{0, 1, 0}},
		{start: "start: 2", want: []float64{0, 0, 1}},
		{start: "start: 0.1 0.2 0.7", want: []float64{0.1, 0.2, 0.7}},
		{start: "start: uniform", want: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		{start: "start include: *", want: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
	}
	for _, tc := range tests {
		t.Run(tc.start, func(t *testing.T) {
			m, err := parser.Parse(strings.NewReader(header+tc.start+"\n"+body), "x")
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.want, m.InitialBelief().Entries, 1e-12)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "missing discount", text: "states: 1\nactions: 1\nobservations: 1\nT: * identity\nO: * uniform\n"},
		{name: "early entry", text: "discount: 0.5\nT: * identity\nstates: 1\n"},
		{name: "unknown name", text: "discount: 0.5\nstates: a b\nactions: 1\nobservations: 1\nT: 0 : c : a 1\n"},
		{name: "bad values", text: "values: utility\n"},
		{name: "truncated", text: "discount: 0.5\nstates: 2\nactions: 1\nobservations: 1\nT: 0\n1 0 0\n"},
		{name: "stray", text: "horizon: 4\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.Parse(strings.NewReader(tc.text), "x")
			assert.ErrorIs(t, err, parser.ErrSyntax)
		})
	}
}

func TestParseRejectsNonStochastic(t *testing.T) {
	text := "discount: 0.5\nstates: 2\nactions: 1\nobservations: 1\nT: 0 : 0 : 0 0.5\nO: * uniform\n"
	_, err := parser.Parse(strings.NewReader(text), "x")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiger.95.POMDP")
	require.NoError(t, os.WriteFile(path, []byte(tiger), 0o644))
	m, err := parser.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tiger.95", m.Name())

	_, err = parser.ParseFile(filepath.Join(t.TempDir(), "missing.POMDP"))
	assert.Error(t, err)
}
