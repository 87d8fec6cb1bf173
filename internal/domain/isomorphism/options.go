package isomorphism

import (
	"github.com/okian/fightrank/pkg/logger"
)

// DefaultIterations bounds the propagation loop.
const DefaultIterations = 20

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSeed adds already-known mappings. They are checked for conflicts
// like any other evidence.
func WithSeed(seed map[string]string) Option {
	return func(e *Engine) {
		for aux, canon := range seed {
			if aux != "" && canon != "" {
				e.seed[aux] = canon
			}
		}
	}
}

// WithOverrides adds manual corrections. An overridden aux id is never
// remapped and its other evidence is ignored.
func WithOverrides(overrides map[string]string) Option {
	return func(e *Engine) {
		for aux, canon := range overrides {
			if aux != "" && canon != "" {
				e.overrides[aux] = canon
			}
		}
	}
}

// WithAliases sets the name alias table.
func WithAliases(aliases map[string]string) Option {
	return func(e *Engine) {
		e.names = NewNormalizer(aliases)
	}
}

// WithIterations sets the propagation budget.
func WithIterations(n int) Option {
	return func(e *Engine) {
		e.iterations = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
