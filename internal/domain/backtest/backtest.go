// Package backtest scores a forecasting model on expanding-window folds
// that never split a calendar day.
package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/scoring"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/okian/fightrank/pkg/metrics"
)

// Sample is one doubled row reduced to features and a label.
type Sample struct {
	ContestID string
	Date      time.Time
	X         []float64
	Label     float64 // 1 win, 0 loss, 0.5 draw
	HasLabel  bool
	Market    float64 // market-implied probability, when priced
	HasMarket bool
}

// Window is the date range of one fold, inclusive on both ends.
type Window struct {
	Index int
	Start time.Time
	End   time.Time
}

// Fold is the outcome of one window.
type Fold struct {
	Window
	Train     int
	Forecasts []scoring.Forecast
	Report    scoring.Report
}

// Report is the outcome of one Run.
type Report struct {
	RunID  string
	Folds  []Fold
	Pooled scoring.Report
}

// Harness runs the folds.
type Harness struct {
	folds       int
	factory     Factory
	concurrency int
	logger      logger.Logger
}

// New creates a Harness.
func New(opts ...Option) (*Harness, error) {
	h := &Harness{
		folds:       DefaultFolds,
		factory:     LogisticFactory,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.folds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFolds, h.folds)
	}
	if h.logger == nil {
		h.logger = logger.NamedOrNop("backtest")
	}
	return h, nil
}

// Split cuts the distinct days of samples into folds+1 contiguous chunks
// of near-equal size. The first chunk only ever trains; the rest are the
// returned windows.
func Split(samples []Sample, folds int) ([]Window, error) {
	if folds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFolds, folds)
	}
	seen := make(map[int64]time.Time)
	for i := range samples {
		d := contest.Day(samples[i].Date)
		seen[d.Unix()] = d
	}
	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	chunks := folds + 1
	if len(days) < chunks {
		return nil, fmt.Errorf("%w: %d dates, %d folds", ErrTooFewDates, len(days), folds)
	}
	out := make([]Window, 0, folds)
	for c := 1; c < chunks; c++ {
		lo := c * len(days) / chunks
		hi := (c+1)*len(days)/chunks - 1
		out = append(out, Window{Index: c - 1, Start: days[lo], End: days[hi]})
	}
	return out, nil
}

// Run fits one fresh model per window on every labelled sample dated
// strictly before the window and forecasts the window. Folds are
// independent and run concurrently.
func (h *Harness) Run(ctx context.Context, samples []Sample) (*Report, error) {
	if err := checkWidth(samples); err != nil {
		return nil, err
	}
	windows, err := Split(samples, h.folds)
	if err != nil {
		return nil, err
	}

	folds := make([]Fold, len(windows))
	errs := make([]error, len(windows))
	sem := make(chan struct{}, h.concurrency)
	var wg sync.WaitGroup
	for i := range windows {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			folds[i], errs[i] = h.fold(ctx, windows[i], samples)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", i, err)
		}
	}

	var pooled []scoring.Forecast
	for i := range folds {
		pooled = append(pooled, folds[i].Forecasts...)
		metrics.UpdateFoldLogLoss(strconv.Itoa(i), folds[i].Report.LogLoss)
	}
	rep := &Report{RunID: uuid.NewString(), Folds: folds, Pooled: scoring.Evaluate(pooled)}
	metrics.RecordBacktestRun()
	h.logger.Info(ctx, "backtest completed",
		logger.String("run_id", rep.RunID),
		logger.Int("folds", len(folds)),
		logger.Int("scored", rep.Pooled.N),
		logger.Float64("log_loss", rep.Pooled.LogLoss),
		logger.Float64("accuracy", rep.Pooled.Accuracy),
	)
	return rep, nil
}

func (h *Harness) fold(ctx context.Context, w Window, samples []Sample) (Fold, error) {
	var x [][]float64
	var y []float64
	for i := range samples {
		s := &samples[i]
		if s.HasLabel && contest.Day(s.Date).Before(w.Start) {
			x = append(x, s.X)
			y = append(y, s.Label)
		}
	}
	model := h.factory()
	if err := model.Fit(ctx, x, y); err != nil {
		return Fold{}, err
	}

	f := Fold{Window: w, Train: len(x)}
	for i := range samples {
		s := &samples[i]
		d := contest.Day(s.Date)
		if d.Before(w.Start) || d.After(w.End) {
			continue
		}
		f.Forecasts = append(f.Forecasts, scoring.Forecast{
			ContestID: s.ContestID,
			Date:      d,
			Prob:      model.Predict(s.X),
			Outcome:   s.Label,
			Known:     s.HasLabel,
			Market:    s.Market,
			HasMarket: s.HasMarket,
		})
	}
	f.Report = scoring.Evaluate(f.Forecasts)
	return f, nil
}

func checkWidth(samples []Sample) error {
	for i := 1; i < len(samples); i++ {
		if len(samples[i].X) != len(samples[0].X) {
			return fmt.Errorf("%w: sample %s has %d features, want %d",
				ErrFeatureWidth, samples[i].ContestID, len(samples[i].X), len(samples[0].X))
		}
	}
	return nil
}
