package portfolio

import (
	"errors"
	"fmt"
)

var (
	// ErrDoubleSidedBet is returned when Kelly recommends both sides of one
	// contest. It signals inconsistent prices or probabilities.
	ErrDoubleSidedBet = errors.New("portfolio: kelly recommends both sides")

	// ErrInvalidConfig is returned for an unusable simulator setting.
	ErrInvalidConfig = errors.New("portfolio: invalid configuration")

	// ErrDuplicateOffer is returned when one contest is offered twice
	// while a bet on it is open.
	ErrDuplicateOffer = errors.New("portfolio: duplicate offer")

	// ErrUnknownBet is returned when settling a contest with no open bet.
	ErrUnknownBet = errors.New("portfolio: no open bet")
)

// DoubleSidedError names the contest and both fractions.
type DoubleSidedError struct {
	ContestID string
	SelfID    string
	OtherID   string
	Prob      float64
	SelfOdds  float64
	OtherOdds float64
	SelfFrac  float64
	OtherFrac float64
}

func (e *DoubleSidedError) Error() string {
	return fmt.Sprintf("contest %s (%s vs %s): p=%.4f odds %.3f/%.3f give fractions %.4f and %.4f",
		e.ContestID, e.SelfID, e.OtherID, e.Prob, e.SelfOdds, e.OtherOdds, e.SelfFrac, e.OtherFrac)
}

func (e *DoubleSidedError) Unwrap() error { return ErrDoubleSidedBet }
