// Package output reads and writes the text formats of solved value functions
// and policy graphs.
//
// A value function file holds one block per alpha-vector: the action on its
// own line, the coefficients separated by single spaces on the next, and a
// blank line. A policy graph file holds one line per vector:
//
//	index action next_0 next_1 ... next_{|O|-1}
//
// where next_o is "-" when the action can never produce observation o.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sw965/solvepomdp/alpha"
	"github.com/sw965/solvepomdp/pomdp"
)

// Labeler names an action in written files.
type Labeler func(a int) string

// Resolver turns a written action name back into an index.
type Resolver func(label string) (int, error)

func IntLabel(a int) string {
	return strconv.Itoa(a)
}

func IntResolver(label string) (int, error) {
	return strconv.Atoi(label)
}

// FormatFloat prints the shortest decimal that parses back to x exactly.
func FormatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func WriteValueFunction(w io.Writer, vectors alpha.Set, label Labeler) error {
	bw := bufio.NewWriter(w)
	for _, v := range vectors {
		bw.WriteString(label(v.Action))
		bw.WriteByte('\n')
		for s, x := range v.Entries {
			if s > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(FormatFloat(x))
		}
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}

func WritePolicyGraph(w io.Writer, m pomdp.Model, vectors alpha.Set, label Labeler) error {
	possible := make([][]bool, m.NumActions())
	for a := range possible {
		possible[a] = make([]bool, m.NumObservations())
		for o := range possible[a] {
			possible[a][o] = pomdp.ObservationPossible(m, a, o)
		}
	}

	bw := bufio.NewWriter(w)
	for i, v := range vectors {
		if len(v.ObsSource) != m.NumObservations() {
			return fmt.Errorf("output: vector %d has %d successors, want %d", i, len(v.ObsSource), m.NumObservations())
		}
		fields := make([]string, 0, 2+len(v.ObsSource))
		fields = append(fields, strconv.Itoa(i), label(v.Action))
		for o, next := range v.ObsSource {
			if possible[v.Action][o] {
				fields = append(fields, strconv.Itoa(next))
			} else {
				fields = append(fields, "-")
			}
		}
		bw.WriteString(strings.Join(fields, " "))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func ReadValueFunction(r io.Reader, resolve Resolver) (alpha.Set, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var vectors alpha.Set
	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			if text := strings.TrimSpace(sc.Text()); text != "" {
				return text, true
			}
		}
		return "", false
	}

	for {
		label, ok := next()
		if !ok {
			break
		}
		action, err := resolve(label)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: action %q: %v", ErrFormat, line, label, err)
		}
		coefficients, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing coefficients", ErrFormat, line)
		}
		fields := strings.Fields(coefficients)
		entries := make([]float64, len(fields))
		for s, f := range fields {
			if entries[s], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
		}
		if len(vectors) > 0 && len(entries) != vectors[0].Len() {
			return nil, fmt.Errorf("%w: line %d: %d coefficients, want %d", ErrFormat, line, len(entries), vectors[0].Len())
		}
		v := alpha.New(entries)
		v.Action = action
		vectors = append(vectors, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Node is one line of a policy graph. Next[o] is -1 where the file has "-".
type Node struct {
	Action int
	Next   []int
}

func ReadPolicyGraph(r io.Reader, nObservations int, resolve Resolver) ([]Node, error) {
	sc := bufio.NewScanner(r)
	var nodes []Node
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2+nObservations {
			return nil, fmt.Errorf("%w: line %d: %d fields, want %d", ErrFormat, line, len(fields), 2+nObservations)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id != len(nodes) {
			return nil, fmt.Errorf("%w: line %d: node id %q, want %d", ErrFormat, line, fields[0], len(nodes))
		}
		action, err := resolve(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: action %q: %v", ErrFormat, line, fields[1], err)
		}
		next := make([]int, nObservations)
		for o, f := range fields[2:] {
			if f == "-" {
				next[o] = -1
				continue
			}
			if next[o], err = strconv.Atoi(f); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
		}
		nodes = append(nodes, Node{Action: action, Next: next})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i, n := range nodes {
		for _, next := range n.Next {
			if next >= len(nodes) {
				return nil, fmt.Errorf("%w: node %d links to missing node %d", ErrFormat, i, next)
			}
		}
	}
	return nodes, nil
}
