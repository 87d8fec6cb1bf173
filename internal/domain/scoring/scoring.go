// Package scoring evaluates probability forecasts against outcomes and
// against market prices.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/atgjack/prob"
)

// defaultClip keeps log-loss finite for forecasts of exactly 0 or 1.
const defaultClip = 1e-15

// Forecast is one predicted probability for the self side of a row.
type Forecast struct {
	ContestID string
	Date      time.Time
	Prob      float64
	Outcome   float64 // 1 win, 0 loss, 0.5 draw
	Known     bool
	Market    float64 // market-implied probability for the same side
	HasMarket bool
}

// Report aggregates the scores of a forecast set.
type Report struct {
	N        int // forecasts with a known outcome
	Skipped  int // forecasts without one
	LogLoss  float64
	Decided  int // known outcomes that were not draws
	Accuracy float64

	// Market comparison over forecasts that carry a market price.
	MarketN       int
	MarketLogLoss float64
	ModelLogLoss  float64 // model log-loss on the same subset
	Edge          float64 // MarketLogLoss - ModelLogLoss, positive favours the model
}

// Option applies a configuration option to Evaluate.
type Option func(*options)

type options struct {
	clip float64
}

// WithClip bounds probabilities to [eps, 1-eps] before taking logs.
func WithClip(eps float64) Option {
	return func(o *options) {
		if eps > 0 && eps < 0.5 {
			o.clip = eps
		}
	}
}

// Evaluate scores fs. Forecasts with unknown outcomes are counted in
// Skipped and take no part in any score. Empty sets score NaN.
func Evaluate(fs []Forecast, opts ...Option) Report {
	o := options{clip: defaultClip}
	for _, opt := range opts {
		opt(&o)
	}

	var r Report
	var ll, acc, mkt, mdl float64
	for i := range fs {
		f := &fs[i]
		if !f.Known || math.IsNaN(f.Prob) {
			r.Skipped++
			continue
		}
		r.N++
		l := crossEntropy(f.Prob, f.Outcome, o.clip)
		ll += l
		if hit, ok := correct(f.Prob, f.Outcome); ok {
			r.Decided++
			acc += hit
		}
		if f.HasMarket {
			r.MarketN++
			mkt += crossEntropy(f.Market, f.Outcome, o.clip)
			mdl += l
		}
	}

	r.LogLoss, r.Accuracy = math.NaN(), math.NaN()
	r.MarketLogLoss, r.ModelLogLoss, r.Edge = math.NaN(), math.NaN(), math.NaN()
	if r.N > 0 {
		r.LogLoss = ll / float64(r.N)
	}
	if r.Decided > 0 {
		r.Accuracy = acc / float64(r.Decided)
	}
	if r.MarketN > 0 {
		r.MarketLogLoss = mkt / float64(r.MarketN)
		r.ModelLogLoss = mdl / float64(r.MarketN)
		r.Edge = r.MarketLogLoss - r.ModelLogLoss
	}
	return r
}

// LogLoss is the mean binary cross-entropy over known outcomes.
func LogLoss(fs []Forecast) float64 { return Evaluate(fs).LogLoss }

// Accuracy is the hit rate over known, non-drawn outcomes. A forecast of
// exactly one half scores half a hit.
func Accuracy(fs []Forecast) float64 { return Evaluate(fs).Accuracy }

func crossEntropy(p, y, eps float64) float64 {
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func correct(p, y float64) (float64, bool) {
	if y == 0.5 {
		return 0, false
	}
	switch {
	case p == 0.5:
		return 0.5, true
	case (p > 0.5) == (y > 0.5):
		return 1, true
	default:
		return 0, true
	}
}

// SpreadProbability turns a predicted margin into a win probability under
// a zero-mean normal error with deviation sigma.
func SpreadProbability(spread, sigma float64) (float64, error) {
	if !(sigma > 0) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidSigma, sigma)
	}
	return prob.Normal{Mu: 0, Sigma: sigma}.Cdf(spread), nil
}

// ImpliedProbability is 1/odds for decimal odds.
func ImpliedProbability(odds float64) (float64, error) {
	if !(odds > 1) || math.IsInf(odds, 0) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidOdds, odds)
	}
	return 1 / odds, nil
}

// RemoveVig normalizes the implied probabilities of a two-way market so
// they sum to one.
func RemoveVig(oddsA, oddsB float64) (pA, pB float64, err error) {
	a, err := ImpliedProbability(oddsA)
	if err != nil {
		return 0, 0, err
	}
	b, err := ImpliedProbability(oddsB)
	if err != nil {
		return 0, 0, err
	}
	return a / (a + b), b / (a + b), nil
}
