package features

import (
	"github.com/okian/fightrank/pkg/logger"
)

// DefaultDaysCeiling bounds days-since-last-contest, roughly three years.
const DefaultDaysCeiling = 1095

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithTopTier marks promotions that count toward the top-tier counter.
func WithTopTier(promotions ...string) Option {
	return func(e *Extractor) {
		for _, p := range promotions {
			if p != "" {
				e.topTier[p] = struct{}{}
			}
		}
	}
}

// WithDaysCeiling clips days-since values. Non-positive values are ignored.
func WithDaysCeiling(days float64) Option {
	return func(e *Extractor) {
		if days > 0 {
			e.ceiling = days
		}
	}
}

// WithWeightColumn names the per-side body weight column.
func WithWeightColumn(col string) Option {
	return func(e *Extractor) {
		e.weightCol = col
	}
}

// WithMinutesColumn names the contest duration column.
func WithMinutesColumn(col string) Option {
	return func(e *Extractor) {
		e.minutesCol = col
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}
