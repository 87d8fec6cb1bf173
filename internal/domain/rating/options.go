package rating

import (
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/registry"
	"github.com/okian/fightrank/pkg/logger"
)

// Default learning rates per kind. Count targets move on the scale of raw
// counts, so their step is much smaller.
const (
	defaultPairLearningRate  = 1.0
	defaultCountLearningRate = 0.01
)

// SideFeatures extracts auxiliary covariates from a row. The weighted sum
// of the returned vector is added inside the link.
type SideFeatures func(row *model.Row) []float64

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithLearningRate sets alpha. Validation happens in New.
func WithLearningRate(alpha float64) Option {
	return func(e *Estimator) {
		e.alpha = alpha
		e.alphaSet = true
	}
}

// WithTarget names the outcome column for binary and real kinds.
func WithTarget(col string) Option {
	return func(e *Estimator) {
		e.target = col
	}
}

// WithCounts names the landed and attempted columns for count_ratio.
func WithCounts(landed, attempted string) Option {
	return func(e *Estimator) {
		e.landed = landed
		e.attempted = attempted
	}
}

// WithSideFeatures installs a side-feature extractor and its weights.
func WithSideFeatures(fn SideFeatures, weights []float64) Option {
	return func(e *Estimator) {
		e.side = fn
		e.sideWeights = append([]float64(nil), weights...)
	}
}

// WithSideColumns reads side features from numeric columns. Missing values
// contribute zero. Nil weights mean a weight of one per column.
func WithSideColumns(cols []string, weights []float64) Option {
	return func(e *Estimator) {
		if len(cols) == 0 {
			return
		}
		if weights == nil {
			weights = make([]float64, len(cols))
			for i := range weights {
				weights[i] = 1
			}
		}
		e.sideCols = append([]string(nil), cols...)
		e.side = SideColumns(cols...)
		e.sideWeights = append([]float64(nil), weights...)
	}
}

// WithUnknownPolicy controls Predict for ids absent from the fit.
func WithUnknownPolicy(p registry.Policy) Option {
	return func(e *Estimator) {
		e.policy = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}

// SideColumns builds a SideFeatures reading the named columns in order.
func SideColumns(cols ...string) SideFeatures {
	return func(row *model.Row) []float64 {
		out := make([]float64, len(cols))
		for i, c := range cols {
			if v, ok := row.Value(c); ok {
				out[i] = v
			}
		}
		return out
	}
}
