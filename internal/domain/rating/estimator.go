// Package rating implements the online paired rating estimator.
//
// A fit walks a doubled contest table one calendar day at a time. Every
// row of a day is predicted from the ratings as they stood before that
// day, and the day's updates are summed per entity and applied together,
// so the result does not depend on row order within a day.
package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/registry"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/okian/fightrank/pkg/metrics"
)

// State is the estimator lifecycle.
type State int

// Lifecycle states.
const (
	StateUnfit State = iota
	StateFitting
	StateFit
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateFitting:
		return "fitting"
	case StateFit:
		return "fit"
	default:
		return "unfit"
	}
}

// Prediction is the read-only output of Predict for one row.
type Prediction struct {
	ContestID   string
	SelfID      string
	OtherID     string
	Date        time.Time
	Predicted   float64
	Expected    float64
	HasExpected bool
	Self        Rating
	Other       Rating
}

// Estimator owns the ratings of one fit. Ratings are never shared across
// estimators.
type Estimator struct {
	mu    sync.RWMutex
	state State

	kind        Kind
	alpha       float64
	alphaSet    bool
	target      string
	landed      string
	attempted   string
	side        SideFeatures
	sideCols    []string
	sideWeights []float64
	policy      registry.Policy

	rule     rule
	reg      *registry.Registry
	ratings  *state
	snapshot *Snapshot

	logger logger.Logger
}

// New validates the configuration and returns an unfit estimator.
func New(kind Kind, opts ...Option) (*Estimator, error) {
	e := &Estimator{
		kind:   kind,
		policy: registry.Strict,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.NamedOrNop("rating")
	}

	if !kind.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}
	if !e.alphaSet {
		e.alpha = defaultPairLearningRate
		if kind == CountRatio {
			e.alpha = defaultCountLearningRate
		}
	}
	if !(e.alpha > 0) || math.IsInf(e.alpha, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrLearningRate, e.alpha)
	}
	switch kind {
	case Binary:
		if e.target == "" {
			e.target = contest.DefaultOutcomeColumn
		}
	case Real:
		if e.target == "" {
			return nil, fmt.Errorf("%w: real kind needs a target", ErrMissingColumn)
		}
	case CountRatio:
		if e.landed == "" || e.attempted == "" {
			return nil, fmt.Errorf("%w: count_ratio needs landed and attempted", ErrMissingColumn)
		}
	}
	if e.sideCols != nil && len(e.sideCols) != len(e.sideWeights) {
		return nil, fmt.Errorf("%w: %d columns, %d weights", ErrFeatureMismatch, len(e.sideCols), len(e.sideWeights))
	}
	if e.side != nil && len(e.sideWeights) == 0 {
		return nil, fmt.Errorf("%w: side features without weights", ErrFeatureMismatch)
	}

	return e, nil
}

// Kind returns the configured target kind.
func (e *Estimator) Kind() Kind { return e.kind }

// State returns the current lifecycle state.
func (e *Estimator) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Snapshot returns the output of the last successful fit, or nil.
func (e *Estimator) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Registry returns the registry of the last successful fit, or nil.
func (e *Estimator) Registry() *registry.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg
}

// Fit rebuilds every rating from scratch over table. A table that breaks
// the doubling invariant is rejected before any rating is touched. A failed
// fit leaves the previous fit in place.
func (e *Estimator) Fit(ctx context.Context, table model.Table) (*Snapshot, error) {
	e.mu.Lock()
	if e.state == StateFitting {
		e.mu.Unlock()
		return nil, ErrFitInProgress
	}
	prev := e.state
	e.state = StateFitting
	e.mu.Unlock()

	start := time.Now()
	kind := e.kind.String()
	metrics.RecordFitStarted(kind)

	f, err := e.fit(ctx, table)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = prev
		metrics.RecordFitFailed(kind, failureReason(err))
		e.logger.Error(ctx, "fit failed", logger.String("kind", kind), logger.Int("rows", len(table)), logger.Error(err))
		return nil, err
	}
	e.rule, e.reg, e.ratings, e.snapshot = f.rule, f.reg, f.ratings, f.snapshot
	e.state = StateFit

	ms := float64(time.Since(start).Milliseconds())
	metrics.RecordFitCompleted(kind, ms)
	e.logger.Info(ctx, "fit completed",
		logger.String("run_id", f.snapshot.RunID),
		logger.String("kind", kind),
		logger.Int("rows", len(table)),
		logger.Int("entities", f.reg.Len()),
		logger.Float64("duration_ms", ms),
	)
	return f.snapshot, nil
}

// fitted is everything a successful fit installs at once.
type fitted struct {
	rule     rule
	reg      *registry.Registry
	ratings  *state
	snapshot *Snapshot
}

func (e *Estimator) fit(ctx context.Context, table model.Table) (*fitted, error) {
	if err := contest.Validate(table); err != nil {
		var de *contest.DoublingError
		if errors.As(err, &de) {
			metrics.RecordDoublingViolations(len(de.Violations))
		}
		return nil, fmt.Errorf("validate contest table: %w", err)
	}

	sorted := contest.Sorted(table)
	reg := registry.New(sorted.EntityIDs(), registry.WithPolicy(e.policy))
	n := reg.Len() + 1

	rows := make([]obs, len(sorted))
	nulls := 0
	for i := range sorted {
		o, err := e.observe(reg, &sorted[i])
		if err != nil {
			return nil, err
		}
		rows[i] = o
		if !o.hasY {
			nulls++
		}
	}
	rl := newRule(e.kind, e.alpha)
	rl.prepare(rows, n)

	snap := &Snapshot{
		RunID:     uuid.NewString(),
		Kind:      e.kind,
		Rows:      make([]Row, len(sorted)),
		entities:  make(map[string]*history, reg.Len()),
		offPinned: make(map[string]bool),
		defPinned: make(map[string]bool),
	}
	if cr, ok := rl.(*countRule); ok {
		snap.Intercept = cr.intercept
		pinned := 0
		for i := 0; i < reg.Len(); i++ {
			id := reg.ID(i)
			snap.offPinned[id] = cr.offPinned[i]
			snap.defPinned[id] = cr.defPinned[i]
			if cr.offPinned[i] {
				pinned++
			}
			if cr.defPinned[i] {
				pinned++
			}
		}
		metrics.RecordPinnedCells(pinned)
	}

	st := newState(n)
	acc := newDeltas(n)
	batches := contest.Batches(sorted)
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fit interrupted at %s: %w", b.Date.Format("2006-01-02"), err)
		}

		for i := b.Start; i < b.End; i++ {
			r := &rows[i]
			pred := rl.predict(st, r)
			out := &snap.Rows[i]
			*out = Row{
				ContestID:   sorted[i].ContestID,
				SelfID:      sorted[i].SelfID,
				OtherID:     sorted[i].OtherID,
				Date:        b.Date,
				SelfBefore:  st.rating(e.kind, r.self),
				OtherBefore: st.rating(e.kind, r.other),
				Predicted:   pred,
				Observed:    r.y,
				HasObserved: r.hasY,
			}
			if e.kind == CountRatio && r.attempted > 0 {
				out.Expected = pred * r.attempted
				out.HasExpected = true
			}
			if r.hasY {
				rl.accumulate(acc, r, pred)
			}
		}

		acc.apply(st)

		seen := make(map[int]struct{}, 2*(b.End-b.Start))
		for i := b.Start; i < b.End; i++ {
			r := &rows[i]
			out := &snap.Rows[i]
			out.SelfAfter = st.rating(e.kind, r.self)
			out.OtherAfter = st.rating(e.kind, r.other)
			if _, ok := seen[r.self]; !ok {
				seen[r.self] = struct{}{}
				snap.record(sorted[i].SelfID, b.Date, out.SelfAfter)
			}
		}
	}

	metrics.RecordRowsProcessed(len(sorted))
	metrics.RecordNullOutcomes(nulls)
	metrics.RecordDateBatches(len(batches))
	return &fitted{rule: rl, reg: reg, ratings: st, snapshot: snap}, nil
}

// observe resolves row against reg and reads its outcome and side offset.
func (e *Estimator) observe(reg *registry.Registry, row *model.Row) (obs, error) {
	self, err := reg.Index(row.SelfID)
	if err != nil {
		return obs{}, err
	}
	other, err := reg.Index(row.OtherID)
	if err != nil {
		return obs{}, err
	}
	o := obs{self: self, other: other}
	if self == reg.Unknown() || other == reg.Unknown() {
		metrics.RecordUnknownEntity()
	}

	if e.side != nil {
		x := e.side(row)
		if len(x) != len(e.sideWeights) {
			return obs{}, fmt.Errorf("%w: contest %s (%s vs %s) has %d side features, want %d",
				ErrFeatureMismatch, row.ContestID, row.SelfID, row.OtherID, len(x), len(e.sideWeights))
		}
		for i, v := range x {
			if !math.IsNaN(v) {
				o.side += e.sideWeights[i] * v
			}
		}
	}

	if e.kind == CountRatio {
		landed, okL := row.Value(e.landed)
		attempted, okA := row.Value(e.attempted)
		o.attempted = attempted
		if okL && okA && attempted > 0 {
			o.y = landed
			o.hasY = true
		}
		return o, nil
	}

	if y, ok := row.Value(e.target); ok {
		o.y = y
		o.hasY = true
	}
	return o, nil
}

// Predict applies the link to rows using the fitted ratings. It never
// mutates estimator state.
func (e *Estimator) Predict(ctx context.Context, rows model.Table) ([]Prediction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateFit {
		return nil, ErrNotFit
	}

	out := make([]Prediction, len(rows))
	for i := range rows {
		row := &rows[i]
		o, err := e.observe(e.reg, row)
		if err != nil {
			return nil, fmt.Errorf("predict contest %s: %w", row.ContestID, err)
		}
		pred := e.rule.predict(e.ratings, &o)
		out[i] = Prediction{
			ContestID: row.ContestID,
			SelfID:    row.SelfID,
			OtherID:   row.OtherID,
			Date:      contest.Day(row.Date),
			Predicted: pred,
			Self:      e.ratings.rating(e.kind, o.self),
			Other:     e.ratings.rating(e.kind, o.other),
		}
		if e.kind == CountRatio && o.attempted > 0 {
			out[i].Expected = pred * o.attempted
			out[i].HasExpected = true
		}
	}
	e.logger.Debug(ctx, "predicted", logger.Int("rows", len(rows)))
	return out, nil
}

// FitPredict fits on train and then predicts test.
func (e *Estimator) FitPredict(ctx context.Context, train, test model.Table) (*Snapshot, []Prediction, error) {
	snap, err := e.Fit(ctx, train)
	if err != nil {
		return nil, nil, err
	}
	preds, err := e.Predict(ctx, test)
	if err != nil {
		return snap, nil, err
	}
	return snap, preds, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, contest.ErrDoubling):
		return "doubling"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	default:
		return "other"
	}
}
