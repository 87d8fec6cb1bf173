package contest

// Option configures Double.
type Option func(*options)

type options struct {
	outcome   string
	sqrtDiffs []sqrtDiff
}

type sqrtDiff struct {
	target string
	stat   string
}

// WithOutcomeColumn names the binary outcome column (1 win, 0 loss,
// 0.5 draw). An empty name disables it.
func WithOutcomeColumn(col string) Option {
	return func(o *options) {
		o.outcome = col
	}
}

// WithSqrtDiff writes sqrt(self stat) - sqrt(other stat) into target, a
// symmetric real-valued outcome.
func WithSqrtDiff(target, stat string) Option {
	return func(o *options) {
		if target != "" && stat != "" {
			o.sqrtDiffs = append(o.sqrtDiffs, sqrtDiff{target: target, stat: stat})
		}
	}
}
