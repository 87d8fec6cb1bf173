package rating

import (
	"errors"
	"fmt"
)

// Sentinel kinds for estimator errors.
var (
	ErrInvalidConfig = errors.New("invalid rating config")

	ErrInvalidKind     = fmt.Errorf("%w: unknown target kind", ErrInvalidConfig)
	ErrLearningRate    = fmt.Errorf("%w: learning rate must be positive and finite", ErrInvalidConfig)
	ErrMissingColumn   = fmt.Errorf("%w: missing target column", ErrInvalidConfig)
	ErrFeatureMismatch = fmt.Errorf("%w: side feature length mismatch", ErrInvalidConfig)

	ErrNotFit        = errors.New("estimator is not fit")
	ErrFitInProgress = errors.New("fit already in progress")
)
