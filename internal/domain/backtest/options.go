package backtest

import (
	"github.com/okian/fightrank/pkg/logger"
)

// DefaultFolds is the number of scored folds.
const DefaultFolds = 5

// Option applies a configuration option to the Harness.
type Option func(*Harness)

// WithFolds sets the number of scored folds. Validation happens in New.
func WithFolds(n int) Option {
	return func(h *Harness) {
		h.folds = n
	}
}

// WithClassifier sets the model factory. Each fold gets a fresh model.
func WithClassifier(f Factory) Option {
	return func(h *Harness) {
		if f != nil {
			h.factory = f
		}
	}
}

// WithConcurrency bounds how many folds are fitted at once.
func WithConcurrency(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}
