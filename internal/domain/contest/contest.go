// Package contest builds and checks doubled contest tables.
//
// A doubled table carries every real contest twice, once from each
// participant's point of view. Both rows share a contest id derived from
// the unordered pair of entity ids and the contest day.
package contest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/fightrank/internal/domain/model"
	"github.com/segmentio/fasthash/jody"
)

const (
	dateLayout = "2006-01-02"

	// OppPrefix marks mirror columns holding the other side's statistics.
	OppPrefix = "opp_"

	// DefaultOutcomeColumn holds the binary outcome written by Double.
	DefaultOutcomeColumn = "win"
)

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ID derives the contest id shared by both mirrored rows. The order of a
// and b does not matter.
func ID(a, b string, date time.Time) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	h := jody.HashString64(lo)
	h = jody.AddString64(h, "\x00")
	h = jody.AddString64(h, hi)
	h = jody.AddUint64(h, uint64(Day(date).Unix()))
	return fmt.Sprintf("%016x", h)
}

// Double expands contests into a doubled table. Per-side statistics land
// in Values under their own name for self and with OppPrefix for other.
func Double(contests []model.Contest, opts ...Option) model.Table {
	o := options{outcome: DefaultOutcomeColumn}
	for _, opt := range opts {
		opt(&o)
	}

	out := make(model.Table, 0, len(contests)*2)
	for i := range contests {
		c := &contests[i]
		id := ID(c.A.ID, c.B.ID, c.Date)
		ya, yb, known := outcomes(c.Result)
		out = append(out,
			mirror(id, c, &c.A, &c.B, ya, known, &o),
			mirror(id, c, &c.B, &c.A, yb, known, &o),
		)
	}
	return out
}

func outcomes(r model.Result) (a, b float64, known bool) {
	switch r {
	case model.ResultAWin:
		return 1, 0, true
	case model.ResultBWin:
		return 0, 1, true
	case model.ResultDraw:
		return 0.5, 0.5, true
	default:
		return 0, 0, false
	}
}

func mirror(id string, c *model.Contest, self, other *model.Side, y float64, known bool, o *options) model.Row {
	values := make(map[string]float64, len(c.Values)+len(self.Stats)+len(other.Stats)+1+len(o.sqrtDiffs))
	for k, v := range c.Values {
		values[k] = v
	}
	for k, v := range self.Stats {
		values[k] = v
	}
	for k, v := range other.Stats {
		values[OppPrefix+k] = v
	}
	if known && o.outcome != "" {
		values[o.outcome] = y
	}
	for _, sd := range o.sqrtDiffs {
		a, okA := self.Stats[sd.stat]
		b, okB := other.Stats[sd.stat]
		if !okA || !okB || math.IsNaN(a) || math.IsNaN(b) || a < 0 || b < 0 {
			continue
		}
		values[sd.target] = math.Sqrt(a) - math.Sqrt(b)
	}
	return model.Row{
		ContestID: id,
		SelfID:    self.ID,
		OtherID:   other.ID,
		SelfName:  self.Name,
		OtherName: other.Name,
		Date:      Day(c.Date),
		Promotion: c.Promotion,
		Values:    values,
	}
}

// Validate checks that every contest id appears in exactly two rows whose
// self and other ids are swapped and whose dates agree.
func Validate(table model.Table) error {
	byID := make(map[string][]int, len(table)/2+1)
	order := make([]string, 0, len(table)/2+1)
	for i := range table {
		id := table[i].ContestID
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], i)
	}

	var violations []Violation
	for _, id := range order {
		idx := byID[id]
		if reason := checkPair(table, idx); reason != "" {
			rows := make([]model.Row, len(idx))
			for j, k := range idx {
				rows[j] = table[k]
			}
			violations = append(violations, Violation{ContestID: id, Reason: reason, Rows: rows})
		}
	}
	if len(violations) > 0 {
		return &DoublingError{Violations: violations}
	}
	return nil
}

func checkPair(table model.Table, idx []int) string {
	if len(idx) != 2 {
		return fmt.Sprintf("appears %d time(s), want 2", len(idx))
	}
	a, b := &table[idx[0]], &table[idx[1]]
	switch {
	case a.SelfID != b.OtherID || a.OtherID != b.SelfID:
		return "rows are not mirrored"
	case a.SelfID == a.OtherID:
		return "entity faces itself"
	case !Day(a.Date).Equal(Day(b.Date)):
		return "mirrored rows disagree on date"
	}
	return ""
}

// Sorted returns a copy of table ordered by date, then self id, then other
// id. Equal keys keep their input order.
func Sorted(table model.Table) model.Table {
	out := make(model.Table, len(table))
	copy(out, table)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := Day(out[i].Date), Day(out[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if out[i].SelfID != out[j].SelfID {
			return out[i].SelfID < out[j].SelfID
		}
		return out[i].OtherID < out[j].OtherID
	})
	return out
}

// Batch is a run of rows that share a calendar day, as a half-open
// [Start, End) range over a sorted table.
type Batch struct {
	Date  time.Time
	Start int
	End   int
}

// Batches groups a table already ordered by Sorted into date batches.
func Batches(sorted model.Table) []Batch {
	var out []Batch
	for i := 0; i < len(sorted); {
		d := Day(sorted[i].Date)
		j := i + 1
		for j < len(sorted) && Day(sorted[j].Date).Equal(d) {
			j++
		}
		out = append(out, Batch{Date: d, Start: i, End: j})
		i = j
	}
	return out
}
