package rating

import (
	"sort"
	"time"

	"github.com/okian/fightrank/internal/domain/contest"
)

// Rating is one entity's state. For count_ratio Value is Offense+Defense;
// for the other kinds Offense and Defense stay zero.
type Rating struct {
	Value   float64
	Offense float64
	Defense float64
}

// Row is the audit record of one doubled contest row. Before values are
// the only ones safe to use as features for the same contest.
type Row struct {
	ContestID string
	SelfID    string
	OtherID   string
	Date      time.Time

	SelfBefore  Rating
	OtherBefore Rating
	SelfAfter   Rating
	OtherAfter  Rating

	Predicted   float64
	Expected    float64 // expected landed count, count_ratio only
	HasExpected bool
	Observed    float64
	HasObserved bool
}

type history struct {
	dates   []time.Time
	ratings []Rating
}

// Snapshot is the full output of one fit.
type Snapshot struct {
	RunID     string
	Kind      Kind
	Intercept float64
	Rows      []Row

	entities  map[string]*history
	offPinned map[string]bool
	defPinned map[string]bool
}

func (s *Snapshot) record(id string, date time.Time, r Rating) {
	h, ok := s.entities[id]
	if !ok {
		h = &history{}
		s.entities[id] = h
	}
	h.dates = append(h.dates, date)
	h.ratings = append(h.ratings, r)
}

// AsOf returns the rating id carried into date: the after value of its
// last batch strictly before date, or zero if it has none.
func (s *Snapshot) AsOf(id string, date time.Time) Rating {
	h, ok := s.entities[id]
	if !ok {
		return Rating{}
	}
	d := contest.Day(date)
	i := sort.Search(len(h.dates), func(i int) bool { return !h.dates[i].Before(d) })
	if i == 0 {
		return Rating{}
	}
	return h.ratings[i-1]
}

// Final returns the rating after the last batch.
func (s *Snapshot) Final(id string) (Rating, bool) {
	h, ok := s.entities[id]
	if !ok || len(h.ratings) == 0 {
		return Rating{}, false
	}
	return h.ratings[len(h.ratings)-1], true
}

// Finals returns every entity's final rating.
func (s *Snapshot) Finals() map[string]Rating {
	out := make(map[string]Rating, len(s.entities))
	for id := range s.entities {
		out[id], _ = s.Final(id)
	}
	return out
}

// Entities lists the fitted ids in sorted order.
func (s *Snapshot) Entities() []string {
	out := make([]string, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Pinned reports which count_ratio cells of id were uninformative.
func (s *Snapshot) Pinned(id string) (offense, defense bool) {
	return s.offPinned[id], s.defPinned[id]
}

// Uninformative lists ids whose offense and defense were both pinned.
func (s *Snapshot) Uninformative() []string {
	var out []string
	for id := range s.offPinned {
		if s.offPinned[id] && s.defPinned[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
