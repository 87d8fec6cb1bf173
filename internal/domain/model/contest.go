// Package model contains domain models passed between layers.
package model

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Result is the outcome of a contest from side A's point of view.
type Result int

// Known results. ResultUnknown is a valid value: the contest happened but
// its outcome was not recorded (or not yet known).
const (
	ResultUnknown Result = iota
	ResultAWin
	ResultBWin
	ResultDraw
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case ResultAWin:
		return "A"
	case ResultBWin:
		return "B"
	case ResultDraw:
		return "D"
	default:
		return ""
	}
}

// ParseResult maps "A", "B", "D" (case-insensitive) to a Result.
// Anything else is ResultUnknown.
func ParseResult(s string) Result {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return ResultAWin
	case "B":
		return ResultBWin
	case "D":
		return ResultDraw
	default:
		return ResultUnknown
	}
}

// Side is one participant of an undoubled contest.
type Side struct {
	ID    string
	Name  string
	Stats map[string]float64 // per-side statistics, e.g. strikes landed
}

// Contest is a single real-world match as supplied by an upstream source.
type Contest struct {
	Date      time.Time
	Promotion string
	A         Side
	B         Side
	Result    Result
	Values    map[string]float64 // contest-level values, e.g. minutes fought
}

// Row is one side of a contest in a doubled table: the same match appears
// once with A as self and once with B as self.
type Row struct {
	ContestID string
	SelfID    string
	OtherID   string
	SelfName  string
	OtherName string
	Date      time.Time
	Promotion string
	Values    map[string]float64
}

// Value returns the named column. A missing key or NaN is reported as null.
func (r *Row) Value(col string) (float64, bool) {
	v, ok := r.Values[col]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Columns returns the sorted value column names of the row.
func (r *Row) Columns() []string {
	out := make([]string, 0, len(r.Values))
	for k := range r.Values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Table is a doubled contest table.
type Table []Row

// Columns returns the sorted union of value columns across all rows.
func (t Table) Columns() []string {
	seen := make(map[string]struct{})
	for i := range t {
		for k := range t[i].Values {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EntityIDs returns the distinct self and other ids in the table.
func (t Table) EntityIDs() []string {
	seen := make(map[string]struct{})
	for i := range t {
		seen[t[i].SelfID] = struct{}{}
		seen[t[i].OtherID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CrosswalkEntry maps an identifier of an auxiliary source onto the
// canonical identifier space.
type CrosswalkEntry struct {
	AuxID   string
	CanonID string
}

// FitJob asks a worker to fit one named target over the loaded table.
type FitJob struct {
	ID        string
	Target    string
	Submitted time.Time
	Reply     chan<- error // optional, receives exactly one value when set
}
