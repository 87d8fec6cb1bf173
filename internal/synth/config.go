package synth

import (
	"fmt"
	"time"
)

// Config controls the generator. The same Config always yields the same
// dataset.
type Config struct {
	Seed     int64
	Fighters int
	Events   int

	// Start is the first event day; events are spread over Days days.
	Start time.Time
	Days  int

	// BoutsPerEvent bounds the regular bouts of one event.
	MinBouts int
	MaxBouts int

	// TournamentRate is the share of events that also run a same-day
	// four-man bracket.
	TournamentRate float64

	DrawRate float64
	// NullRate is the share of contests without a recorded result and the
	// share of sides without recorded statistics.
	NullRate float64

	// Vig is the bookmaker overround. Zero prices a fair book.
	Vig float64

	Promotions []string
}

// DefaultConfig returns a mid-sized league.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		Fighters:       150,
		Events:         240,
		Start:          time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:           3650,
		MinBouts:       4,
		MaxBouts:       10,
		TournamentRate: 0.05,
		DrawRate:       0.01,
		NullRate:       0.02,
		Vig:            0.05,
		Promotions:     []string{"UFC", "Bellator", "ONE"},
	}
}

// Validate checks the ranges the generator relies on.
func (c Config) Validate() error {
	switch {
	case c.Fighters < 4:
		return fmt.Errorf("%w: need at least 4 fighters, got %d", ErrInvalidConfig, c.Fighters)
	case c.Events < 1:
		return fmt.Errorf("%w: events %d", ErrInvalidConfig, c.Events)
	case c.Days < c.Events:
		return fmt.Errorf("%w: %d events need at least as many days, got %d", ErrInvalidConfig, c.Events, c.Days)
	case c.MinBouts < 1 || c.MaxBouts < c.MinBouts:
		return fmt.Errorf("%w: bouts [%d,%d]", ErrInvalidConfig, c.MinBouts, c.MaxBouts)
	case 2*c.MaxBouts > c.Fighters:
		return fmt.Errorf("%w: %d bouts need more than %d fighters", ErrInvalidConfig, c.MaxBouts, c.Fighters)
	case !rate(c.TournamentRate) || !rate(c.DrawRate) || !rate(c.NullRate):
		return fmt.Errorf("%w: rates must lie in [0,1]", ErrInvalidConfig)
	case !(c.Vig >= 0):
		return fmt.Errorf("%w: vig %v", ErrInvalidConfig, c.Vig)
	case len(c.Promotions) == 0:
		return fmt.Errorf("%w: no promotions", ErrInvalidConfig)
	}
	return nil
}

func rate(x float64) bool { return x >= 0 && x <= 1 }
