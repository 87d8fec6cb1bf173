// Package features computes rolling per-entity statistics over a doubled
// contest table without looking at the day being described.
package features

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/pkg/logger"
)

// never stands in for days since last contest before any contest.
const never = 1e6

// Counters are the values of one entity as of the start of a day.
type Counters struct {
	Contests       int
	TopTier        int
	DaysSinceLast  float64
	DaysSinceFirst float64
	Minutes        float64
	WeightKnown    bool
	WeightMin      float64
	WeightMax      float64
	WeightPrev     float64
}

// Names lists the columns of Vector.
func Names() []string {
	return []string{"contests", "top_tier", "days_since_last", "days_since_first", "minutes", "weight_prev", "weight_range"}
}

// Vector flattens c. Unknown weights are NaN.
func (c Counters) Vector() []float64 {
	prev, rng := math.NaN(), math.NaN()
	if c.WeightKnown {
		prev, rng = c.WeightPrev, c.WeightMax-c.WeightMin
	}
	return []float64{
		float64(c.Contests),
		float64(c.TopTier),
		c.DaysSinceLast,
		c.DaysSinceFirst,
		c.Minutes,
		prev,
		rng,
	}
}

// Row pairs the counters of both entities of one doubled row.
type Row struct {
	ContestID string
	SelfID    string
	OtherID   string
	Date      time.Time
	Self      Counters
	Other     Counters
}

// Diff returns Self.Vector() - Other.Vector(). A NaN on either side gives
// NaN.
func (r *Row) Diff() []float64 {
	s, o := r.Self.Vector(), r.Other.Vector()
	for i := range s {
		s[i] -= o[i]
	}
	return s
}

type entity struct {
	contests int
	topTier  int
	first    time.Time
	last     time.Time
	minutes  float64
	wKnown   bool
	wMin     float64
	wMax     float64
	wPrev    float64
}

// Extractor holds the extraction settings. It keeps no state between calls.
type Extractor struct {
	topTier    map[string]struct{}
	ceiling    float64
	weightCol  string
	minutesCol string
	logger     logger.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		topTier: make(map[string]struct{}),
		ceiling: DefaultDaysCeiling,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.NamedOrNop("features")
	}
	return e
}

// Extract walks table one day at a time. Rows of a day read counters as
// they stood before that day; the day's contests are folded in afterwards.
// The output follows date, self, other order.
func (e *Extractor) Extract(ctx context.Context, table model.Table) ([]Row, error) {
	if err := contest.Validate(table); err != nil {
		return nil, fmt.Errorf("validate contest table: %w", err)
	}
	sorted := contest.Sorted(table)
	state := make(map[string]*entity)
	get := func(id string) *entity {
		s, ok := state[id]
		if !ok {
			s = &entity{}
			state[id] = s
		}
		return s
	}

	out := make([]Row, len(sorted))
	batches := contest.Batches(sorted)
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract interrupted at %s: %w", b.Date.Format("2006-01-02"), err)
		}
		for i := b.Start; i < b.End; i++ {
			r := &sorted[i]
			out[i] = Row{
				ContestID: r.ContestID,
				SelfID:    r.SelfID,
				OtherID:   r.OtherID,
				Date:      b.Date,
				Self:      e.counters(state[r.SelfID], b.Date),
				Other:     e.counters(state[r.OtherID], b.Date),
			}
		}
		// Each contest has two rows; advancing self only counts it once per side.
		for i := b.Start; i < b.End; i++ {
			e.advance(get(sorted[i].SelfID), &sorted[i], b.Date)
		}
	}

	e.logger.Debug(ctx, "features extracted",
		logger.Int("rows", len(out)),
		logger.Int("entities", len(state)),
		logger.Int("days", len(batches)),
	)
	return out, nil
}

func (e *Extractor) counters(s *entity, day time.Time) Counters {
	if s == nil || s.contests == 0 {
		return Counters{DaysSinceLast: math.Min(never, e.ceiling)}
	}
	c := Counters{
		Contests:       s.contests,
		TopTier:        s.topTier,
		DaysSinceLast:  math.Min(days(s.last, day), e.ceiling),
		DaysSinceFirst: days(s.first, day),
		Minutes:        s.minutes,
		WeightKnown:    s.wKnown,
	}
	if s.wKnown {
		c.WeightMin, c.WeightMax, c.WeightPrev = s.wMin, s.wMax, s.wPrev
	}
	return c
}

func (e *Extractor) advance(s *entity, r *model.Row, day time.Time) {
	if s.contests == 0 {
		s.first = day
	}
	s.contests++
	s.last = day
	if _, ok := e.topTier[r.Promotion]; ok {
		s.topTier++
	}
	if e.minutesCol != "" {
		if m, ok := r.Value(e.minutesCol); ok {
			s.minutes += m
		}
	}
	if e.weightCol == "" {
		return
	}
	w, ok := r.Value(e.weightCol)
	if !ok {
		return
	}
	if !s.wKnown {
		s.wKnown, s.wMin, s.wMax = true, w, w
	}
	s.wMin = math.Min(s.wMin, w)
	s.wMax = math.Max(s.wMax, w)
	s.wPrev = w
}

func days(from, to time.Time) float64 {
	return math.Round(to.Sub(from).Hours() / 24)
}
