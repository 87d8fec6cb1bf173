package rating

import (
	"fmt"
	"math"
	"strings"
)

// Kind selects the outcome type and with it the link and update rule.
type Kind int

// Supported target kinds.
const (
	Binary Kind = iota + 1
	Real
	CountRatio
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Real:
		return "real"
	case CountRatio:
		return "count_ratio"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts binary, real or count_ratio.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary":
		return Binary, nil
	case "real":
		return Real, nil
	case "count_ratio", "count-ratio", "countratio":
		return CountRatio, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

func (k Kind) valid() bool { return k >= Binary && k <= CountRatio }

// obs is a contest row resolved against the registry.
type obs struct {
	self, other int
	side        float64 // weighted side-feature offset on the link scale
	y           float64 // outcome, or landed count for CountRatio
	attempted   float64
	hasY        bool
}

// state holds every rating cell of one fit. Index Len() of the registry is
// the unknown slot and stays zero.
type state struct {
	value   []float64
	offense []float64
	defense []float64
}

func newState(n int) *state {
	return &state{
		value:   make([]float64, n),
		offense: make([]float64, n),
		defense: make([]float64, n),
	}
}

func (s *state) rating(k Kind, i int) Rating {
	if k == CountRatio {
		return Rating{Value: s.offense[i] + s.defense[i], Offense: s.offense[i], Defense: s.defense[i]}
	}
	return Rating{Value: s.value[i]}
}

// deltas accumulates one batch of updates sparsely.
type deltas struct {
	state
	touched []int
	mark    []bool
}

func newDeltas(n int) *deltas {
	return &deltas{state: *newState(n), mark: make([]bool, n)}
}

func (d *deltas) touch(i int) {
	if !d.mark[i] {
		d.mark[i] = true
		d.touched = append(d.touched, i)
	}
}

// apply adds the batch to st and clears the touched cells.
func (d *deltas) apply(st *state) {
	for _, i := range d.touched {
		st.value[i] += d.value[i]
		st.offense[i] += d.offense[i]
		st.defense[i] += d.defense[i]
		d.value[i], d.offense[i], d.defense[i] = 0, 0, 0
		d.mark[i] = false
	}
	d.touched = d.touched[:0]
}

// rule is the kind-specific part of the shared date loop.
type rule interface {
	kind() Kind
	prepare(rows []obs, n int)
	predict(st *state, r *obs) float64
	accumulate(acc *deltas, r *obs, pred float64)
}

func newRule(k Kind, alpha float64) rule {
	switch k {
	case Real:
		return &pairRule{k: Real, alpha: alpha, link: identity}
	case CountRatio:
		return &countRule{alpha: alpha}
	default:
		return &pairRule{k: Binary, alpha: alpha, link: logistic}
	}
}

// pairRule covers binary and real targets: one scalar per entity, zero-sum
// updates of 0.25*alpha*(observed - predicted) per doubled row.
type pairRule struct {
	k     Kind
	alpha float64
	link  func(float64) float64
}

func (p *pairRule) kind() Kind         { return p.k }
func (p *pairRule) prepare([]obs, int) {}
func (p *pairRule) predict(st *state, r *obs) float64 {
	return p.link(st.value[r.self] - st.value[r.other] + r.side)
}

func (p *pairRule) accumulate(acc *deltas, r *obs, pred float64) {
	d := 0.25 * p.alpha * (r.y - pred)
	acc.touch(r.self)
	acc.touch(r.other)
	acc.value[r.self] += d
	acc.value[r.other] -= d
}

// countRule splits each entity into offense and defense. The predicted
// success rate is logistic(offense - opponent defense + intercept).
type countRule struct {
	alpha     float64
	intercept float64
	offPinned []bool
	defPinned []bool
}

func (c *countRule) kind() Kind { return CountRatio }

// prepare fits the pooled intercept and pins cells of entities that never
// attempted (offense) or were never attempted against (defense).
func (c *countRule) prepare(rows []obs, n int) {
	attBy := make([]float64, n)
	attAgainst := make([]float64, n)
	var landed, attempted float64
	for i := range rows {
		r := &rows[i]
		if !r.hasY {
			continue
		}
		landed += r.y
		attempted += r.attempted
		attBy[r.self] += r.attempted
		attAgainst[r.other] += r.attempted
	}

	c.intercept = 0
	if attempted > 0 {
		c.intercept = logit(landed / attempted)
	}
	c.offPinned = make([]bool, n)
	c.defPinned = make([]bool, n)
	for i := 0; i < n; i++ {
		c.offPinned[i] = attBy[i] == 0
		c.defPinned[i] = attAgainst[i] == 0
	}
}

func (c *countRule) predict(st *state, r *obs) float64 {
	return logistic(st.offense[r.self] - st.defense[r.other] + c.intercept + r.side)
}

// accumulate only sees rows with attempted > 0, and those rows are exactly
// the ones that unpin r.self's offense and r.other's defense in prepare.
// Pinned cells therefore never move.
func (c *countRule) accumulate(acc *deltas, r *obs, pred float64) {
	d := c.alpha * (r.y - pred*r.attempted)
	acc.touch(r.self)
	acc.touch(r.other)
	acc.offense[r.self] += d
	acc.defense[r.other] -= d
}

const probEps = 1e-12

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func identity(x float64) float64 { return x }

func logit(p float64) float64 {
	p = math.Min(math.Max(p, probEps), 1-probEps)
	return math.Log(p / (1 - p))
}
