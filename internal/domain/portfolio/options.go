package portfolio

import (
	"github.com/okian/fightrank/pkg/logger"
	"github.com/shopspring/decimal"
)

// Defaults for the simulator.
const (
	DefaultMultiplier  = 1.0
	DefaultMaxFraction = 0.1
)

// DefaultBankroll is the starting bankroll.
var DefaultBankroll = decimal.NewFromInt(1000)

// Option applies a configuration option to the Simulator.
type Option func(*Simulator)

// WithBankroll sets the starting bankroll.
func WithBankroll(b decimal.Decimal) Option {
	return func(s *Simulator) {
		s.bankroll = b
	}
}

// WithKellyMultiplier scales every Kelly fraction, 0.5 being half Kelly.
func WithKellyMultiplier(m float64) Option {
	return func(s *Simulator) {
		s.multiplier = m
	}
}

// WithMaxFraction caps the stake of any one bet as a share of bankroll.
func WithMaxFraction(f float64) Option {
	return func(s *Simulator) {
		s.maxFraction = f
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}
