// Package parser reads POMDPs written in Cassandra's .POMDP file format.
//
// The preamble declares discount, values, states, actions, observations and
// an optional start distribution. T, O and R entries follow at any
// granularity, with "*" matching every index. Later entries overwrite
// earlier ones. Rewards R(a, s, s', o) are reduced to the expected immediate
// reward R(s, a) = sum_{s', o} T(s, a, s') O(a, s', o) R(a, s, s', o).
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/sw965/solvepomdp/pomdp"
)

var keywords = map[string]bool{
	"discount":     true,
	"values":       true,
	"states":       true,
	"actions":      true,
	"observations": true,
	"start":        true,
	"T":            true,
	"O":            true,
	"R":            true,
}

type token struct {
	text string
	line int
}

type domain struct {
	n     int
	names map[string]int
	list  []string
}

func (d *domain) resolve(t token) ([]int, error) {
	if t.text == "*" {
		all := make([]int, d.n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	if i, ok := d.names[t.text]; ok {
		return []int{i}, nil
	}
	i, err := strconv.Atoi(t.text)
	if err != nil || i < 0 || i >= d.n {
		return nil, fmt.Errorf("%w: line %d: unknown identifier %q", ErrSyntax, t.line, t.text)
	}
	return []int{i}, nil
}

type parser struct {
	toks []token
	pos  int

	discount     float64
	cost         bool
	states       domain
	actions      domain
	observations domain
	start        []float64

	// transition[a][s][s'], observation[a][s'][o], reward[a][s][s'][o]
	transition  [][][]float64
	observation [][][]float64
	reward      [][][][]float64
}

func ParseFile(path string) (*pomdp.POMDP, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(f, name)
}

func Parse(r io.Reader, name string) (*pomdp.POMDP, error) {
	toks, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, discount: -1}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.model(name)
}

func tokenize(r io.Reader) ([]token, error) {
	var toks []token
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		for _, f := range strings.Fields(strings.ReplaceAll(text, ":", " : ")) {
			toks = append(toks, token{text: f, line: line})
		}
	}
	return toks, sc.Err()
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{line: -1}
	}
	return p.toks[p.pos]
}

func (p *parser) next() (token, error) {
	if p.done() {
		return token{}, fmt.Errorf("%w: unexpected end of input", ErrSyntax)
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *parser) expect(text string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.text != text {
		return fmt.Errorf("%w: line %d: expected %q, got %q", ErrSyntax, t.line, text, t.text)
	}
	return nil
}

func (p *parser) number() (float64, error) {
	t, err := p.next()
	if err != nil {
		return 0, err
	}
	x, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: expected a number, got %q", ErrSyntax, t.line, t.text)
	}
	return x, nil
}

func (p *parser) numbers(n int) ([]float64, error) {
	xs := make([]float64, n)
	for i := range xs {
		x, err := p.number()
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}

func (p *parser) atKeyword() bool {
	return p.done() || keywords[p.peek().text]
}

func (p *parser) parse() error {
	for !p.done() {
		t, err := p.next()
		if err != nil {
			return err
		}
		switch t.text {
		case "discount":
			err = p.parseDiscount()
		case "values":
			err = p.parseValues()
		case "states":
			err = p.parseDomain(&p.states)
		case "actions":
			err = p.parseDomain(&p.actions)
		case "observations":
			err = p.parseDomain(&p.observations)
		case "start":
			err = p.parseStart()
		case "T":
			err = p.parseTransition()
		case "O":
			err = p.parseObservation()
		case "R":
			err = p.parseReward()
		default:
			err = fmt.Errorf("%w: line %d: unexpected %q", ErrSyntax, t.line, t.text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseDiscount() error {
	if err := p.expect(":"); err != nil {
		return err
	}
	x, err := p.number()
	p.discount = x
	return err
}

func (p *parser) parseValues() error {
	if err := p.expect(":"); err != nil {
		return err
	}
	t, err := p.next()
	if err != nil {
		return err
	}
	switch t.text {
	case "reward":
		p.cost = false
	case "cost":
		p.cost = true
	default:
		return fmt.Errorf("%w: line %d: values must be reward or cost, got %q", ErrSyntax, t.line, t.text)
	}
	return nil
}

// parseDomain reads either a count or a list of names.
func (p *parser) parseDomain(d *domain) error {
	if err := p.expect(":"); err != nil {
		return err
	}
	first, err := p.next()
	if err != nil {
		return err
	}
	if n, err := strconv.Atoi(first.text); err == nil && p.atKeyword() {
		if n <= 0 {
			return fmt.Errorf("%w: line %d: count must be positive", ErrSyntax, first.line)
		}
		d.n = n
		return p.allocate()
	}
	d.list = []string{first.text}
	for !p.atKeyword() {
		t, _ := p.next()
		d.list = append(d.list, t.text)
	}
	d.n = len(d.list)
	d.names = make(map[string]int, d.n)
	for i, name := range d.list {
		d.names[name] = i
	}
	return p.allocate()
}

func (p *parser) allocate() error {
	nS, nA, nO := p.states.n, p.actions.n, p.observations.n
	if nS == 0 || nA == 0 || nO == 0 {
		return nil
	}
	p.transition = make([][][]float64, nA)
	p.observation = make([][][]float64, nA)
	p.reward = make([][][][]float64, nA)
	for a := 0; a < nA; a++ {
		p.transition[a] = newTable(nS, nS)
		p.observation[a] = newTable(nS, nO)
		p.reward[a] = make([][][]float64, nS)
		for s := range p.reward[a] {
			p.reward[a][s] = newTable(nS, nO)
		}
	}
	return nil
}

func newTable(r, c int) [][]float64 {
	t := make([][]float64, r)
	for i := range t {
		t[i] = make([]float64, c)
	}
	return t
}

func (p *parser) requireDomains(t token) error {
	if p.transition == nil {
		return fmt.Errorf("%w: line %d: %s before states, actions and observations", ErrSyntax, t.line, t.text)
	}
	return nil
}

func (p *parser) parseStart() error {
	kw := p.toks[p.pos-1]
	if p.states.n == 0 {
		return fmt.Errorf("%w: line %d: start before states", ErrSyntax, kw.line)
	}
	nS := p.states.n
	mode := ""
	if t := p.peek(); t.text == "include" || t.text == "exclude" {
		mode = t.text
		p.pos++
	}
	if err := p.expect(":"); err != nil {
		return err
	}

	if mode != "" {
		in := make([]bool, nS)
		for !p.atKeyword() {
			t, _ := p.next()
			ids, err := p.states.resolve(t)
			if err != nil {
				return err
			}
			for _, s := range ids {
				in[s] = true
			}
		}
		count := 0
		for s := range in {
			if in[s] == (mode == "include") {
				count++
			}
		}
		if count == 0 {
			return fmt.Errorf("%w: line %d: start %s leaves no states", ErrSyntax, kw.line, mode)
		}
		p.start = make([]float64, nS)
		for s := range in {
			if in[s] == (mode == "include") {
				p.start[s] = 1 / float64(count)
			}
		}
		return nil
	}

	t := p.peek()
	if t.text == "uniform" {
		p.pos++
		p.start = pomdp.NewUniformBelief(nS).Entries
		return nil
	}
	if _, ok := p.states.names[t.text]; ok || (nS > 1 && p.singleIndex()) {
		p.pos++
		ids, err := p.states.resolve(t)
		if err != nil {
			return err
		}
		p.start = make([]float64, nS)
		p.start[ids[0]] = 1
		return nil
	}
	start, err := p.numbers(nS)
	p.start = start
	return err
}

// singleIndex reports whether the next token is a lone integer followed by
// a keyword or the end of input.
func (p *parser) singleIndex() bool {
	if _, err := strconv.Atoi(p.peek().text); err != nil {
		return false
	}
	return p.pos+1 >= len(p.toks) || keywords[p.toks[p.pos+1].text]
}

// indices reads one identifier per domain, separated by colons, and stops
// early at the first identifier not preceded by a colon.
func (p *parser) indices(domains ...*domain) ([][]int, error) {
	var ids [][]int
	for i, d := range domains {
		if i > 0 {
			if p.peek().text != ":" {
				break
			}
			p.pos++
		}
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		id, err := d.resolve(t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// matrix reads a rows x cols block, accepting "uniform" and, for square
// blocks, "identity".
func (p *parser) matrix(rows, cols int) ([][]float64, error) {
	m := newTable(rows, cols)
	switch t := p.peek(); t.text {
	case "uniform":
		p.pos++
		for i := range m {
			for j := range m[i] {
				m[i][j] = 1 / float64(cols)
			}
		}
		return m, nil
	case "identity":
		if rows != cols {
			return nil, fmt.Errorf("%w: line %d: identity needs a square block", ErrSyntax, t.line)
		}
		p.pos++
		for i := range m {
			m[i][i] = 1
		}
		return m, nil
	}
	for i := range m {
		row, err := p.numbers(cols)
		if err != nil {
			return nil, err
		}
		m[i] = row
	}
	return m, nil
}

func (p *parser) parseTransition() error {
	kw := p.toks[p.pos-1]
	if err := p.requireDomains(kw); err != nil {
		return err
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	ids, err := p.indices(&p.actions, &p.states, &p.states)
	if err != nil {
		return err
	}
	nS := p.states.n
	switch len(ids) {
	case 3:
		x, err := p.number()
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for _, s := range ids[1] {
				for _, sNext := range ids[2] {
					p.transition[a][s][sNext] = x
				}
			}
		}
	case 2:
		block, err := p.matrix(1, nS)
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for _, s := range ids[1] {
				copy(p.transition[a][s], block[0])
			}
		}
	case 1:
		block, err := p.matrix(nS, nS)
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for s := range block {
				copy(p.transition[a][s], block[s])
			}
		}
	}
	return nil
}

func (p *parser) parseObservation() error {
	kw := p.toks[p.pos-1]
	if err := p.requireDomains(kw); err != nil {
		return err
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	ids, err := p.indices(&p.actions, &p.states, &p.observations)
	if err != nil {
		return err
	}
	nS, nO := p.states.n, p.observations.n
	switch len(ids) {
	case 3:
		x, err := p.number()
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for _, sNext := range ids[1] {
				for _, o := range ids[2] {
					p.observation[a][sNext][o] = x
				}
			}
		}
	case 2:
		block, err := p.matrix(1, nO)
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for _, sNext := range ids[1] {
				copy(p.observation[a][sNext], block[0])
			}
		}
	case 1:
		block, err := p.matrix(nS, nO)
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for sNext := range block {
				copy(p.observation[a][sNext], block[sNext])
			}
		}
	}
	return nil
}

func (p *parser) parseReward() error {
	kw := p.toks[p.pos-1]
	if err := p.requireDomains(kw); err != nil {
		return err
	}
	if err := p.expect(":"); err != nil {
		return err
	}
	ids, err := p.indices(&p.actions, &p.states, &p.states, &p.observations)
	if err != nil {
		return err
	}
	nS, nO := p.states.n, p.observations.n
	switch len(ids) {
	case 4:
		x, err := p.number()
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for _, s := range ids[1] {
				for _, sNext := range ids[2] {
					for _, o := range ids[3] {
						p.reward[a][s][sNext][o] = x
					}
				}
			}
		}
	case 3:
		row, err := p.numbers(nO)
		if err != nil {
			return err
		}
		for _, a := range ids[0] {
			for _, s := range ids[1] {
				for _, sNext := range ids[2] {
					copy(p.reward[a][s][sNext], row)
				}
			}
		}
	case 2:
		block := make([][]float64, nS)
		for sNext := range block {
			if block[sNext], err = p.numbers(nO); err != nil {
				return err
			}
		}
		for _, a := range ids[0] {
			for _, s := range ids[1] {
				for sNext := range block {
					copy(p.reward[a][s][sNext], block[sNext])
				}
			}
		}
	default:
		return fmt.Errorf("%w: line %d: R needs at least an action and a start state", ErrSyntax, kw.line)
	}
	return nil
}

func (p *parser) model(name string) (*pomdp.POMDP, error) {
	if p.transition == nil {
		return nil, fmt.Errorf("%w: missing states, actions or observations", ErrSyntax)
	}
	if p.discount < 0 {
		return nil, fmt.Errorf("%w: missing discount", ErrSyntax)
	}
	nS, nA, nO := p.states.n, p.actions.n, p.observations.n

	sign := 1.0
	if p.cost {
		sign = -1
	}
	reward := mat.NewDense(nS, nA, nil)
	transition := make([]*mat.Dense, nA)
	observation := make([]*mat.Dense, nA)
	for a := 0; a < nA; a++ {
		transition[a] = mat.NewDense(nS, nS, nil)
		observation[a] = mat.NewDense(nS, nO, nil)
		for s := 0; s < nS; s++ {
			transition[a].SetRow(s, p.transition[a][s])
			observation[a].SetRow(s, p.observation[a][s])
		}
		for s := 0; s < nS; s++ {
			r := 0.0
			for sNext := 0; sNext < nS; sNext++ {
				for o := 0; o < nO; o++ {
					r += p.transition[a][s][sNext] * p.observation[a][sNext][o] * p.reward[a][s][sNext][o]
				}
			}
			reward.Set(s, a, sign*r)
		}
	}

	return pomdp.New(pomdp.Tables{
		Name:         name,
		Discount:     p.discount,
		Reward:       reward,
		Transition:   transition,
		Observation:  observation,
		ActionLabels: p.actions.list,
		Initial:      p.start,
	})
}
