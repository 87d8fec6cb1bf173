package backtest

import "errors"

var (
	// ErrInvalidFolds is returned for a non-positive fold count.
	ErrInvalidFolds = errors.New("backtest: folds must be positive")

	// ErrTooFewDates is returned when there are fewer distinct dates than
	// folds plus the warm-up chunk.
	ErrTooFewDates = errors.New("backtest: not enough distinct dates for the requested folds")

	// ErrFeatureWidth is returned when samples disagree on feature count.
	ErrFeatureWidth = errors.New("backtest: inconsistent feature width")
)
