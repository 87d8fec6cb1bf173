package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fightrank/internal/adapters/mq/queue"
	"github.com/okian/fightrank/internal/config"
	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/rating"
	"github.com/okian/fightrank/pkg/logger"
)

// fitSpec is one target fitted per run.
type fitSpec struct {
	target string
	kind   rating.Kind
	opts   []rating.Option
}

// plan is what one run fits and how the doubled table is built.
type plan struct {
	specs   []fitSpec
	double  []contest.Option
	primary string // target published to the ranking
	outcome string // binary win/loss column, also the backtest label
}

// plan derives the fits from the configuration. A non-binary target also
// gets a binary fit on the outcome column; the backtest reads ratings from
// that one.
func (s *Service) plan() (plan, error) {
	kind, err := s.cfg.Kind()
	if err != nil {
		return plan{}, err
	}
	policy, err := s.cfg.Policy()
	if err != nil {
		return plan{}, err
	}

	common := []rating.Option{
		rating.WithUnknownPolicy(policy),
		rating.WithSideColumns(s.cfg.SideColumns, nil),
	}
	if s.cfg.LearningRate > 0 {
		common = append(common, rating.WithLearningRate(s.cfg.LearningRate))
	}

	p := plan{outcome: contest.DefaultOutcomeColumn}
	switch kind {
	case rating.Binary:
		p.outcome = s.cfg.TargetColumn
		p.specs = append(p.specs, fitSpec{
			target: s.cfg.TargetColumn,
			kind:   kind,
			opts:   slices.Concat(common, []rating.Option{rating.WithTarget(s.cfg.TargetColumn)}),
		})
	case rating.Real:
		if s.cfg.LandedColumn != "" {
			p.double = append(p.double, contest.WithSqrtDiff(s.cfg.TargetColumn, s.cfg.LandedColumn))
		}
		p.specs = append(p.specs, fitSpec{
			target: s.cfg.TargetColumn,
			kind:   kind,
			opts:   slices.Concat(common, []rating.Option{rating.WithTarget(s.cfg.TargetColumn)}),
		})
	case rating.CountRatio:
		p.specs = append(p.specs, fitSpec{
			target: s.cfg.LandedColumn,
			kind:   kind,
			opts:   slices.Concat(common, []rating.Option{rating.WithCounts(s.cfg.LandedColumn, s.cfg.AttemptedColumn)}),
		})
	}
	p.primary = p.specs[0].target

	if kind != rating.Binary {
		p.specs = append(p.specs, fitSpec{
			target: p.outcome,
			kind:   rating.Binary,
			opts:   []rating.Option{rating.WithTarget(p.outcome), rating.WithUnknownPolicy(policy)},
		})
	}
	seen := make(map[string]bool, len(p.specs))
	for _, spec := range p.specs {
		if seen[spec.target] {
			return plan{}, fmt.Errorf("%w: target %q fitted twice", config.ErrInvalidConfig, spec.target)
		}
		seen[spec.target] = true
	}
	p.double = append(p.double, contest.WithOutcomeColumn(p.outcome))
	return p, nil
}

// Fit submits one job per planned target and waits for all of them. Each
// job fits its own estimator; no two workers share rating state.
func (s *Service) Fit(ctx context.Context, table model.Table) (map[string]*rating.Snapshot, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	p, err := s.plan()
	if err != nil {
		return nil, err
	}
	return s.fit(ctx, p, table)
}

func (s *Service) fit(ctx context.Context, p plan, table model.Table) (map[string]*rating.Snapshot, error) {
	specs := make(map[string]fitSpec, len(p.specs))
	for _, spec := range p.specs {
		specs[spec.target] = spec
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	s.table = table
	s.specs = specs
	s.primary = p.primary
	s.snapshots = make(map[string]*rating.Snapshot, len(specs))
	jobs := s.jobs
	s.mu.Unlock()

	reply := make(chan error, len(p.specs))
	for _, spec := range p.specs {
		job := queue.Job{
			ID:        uuid.NewString(),
			Target:    spec.target,
			Submitted: time.Now(),
			Reply:     reply,
		}
		if err := jobs.Enqueue(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue fit %s: %w", spec.target, err)
		}
	}

	var errs []error
	for range p.specs {
		select {
		case err := <-reply:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.snapshots), nil
}

// runFit is the worker side of Fit.
func (s *Service) runFit(ctx context.Context, job queue.Job) error {
	ctx = logger.ContextWith(ctx, logger.String("job_id", job.ID), logger.String("target", job.Target))
	s.mu.RLock()
	spec, ok := s.specs[job.Target]
	table := s.table
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, job.Target)
	}

	est, err := rating.New(spec.kind, slices.Concat(spec.opts, []rating.Option{rating.WithLogger(s.logger.Named("rating"))})...)
	if err != nil {
		return err
	}
	snap, err := est.Fit(ctx, table)
	if err != nil {
		return err
	}
	if s.storage != nil {
		if err := s.storage.SaveSnapshot(ctx, spec.target, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	s.mu.Lock()
	s.snapshots[spec.target] = snap
	s.mu.Unlock()

	s.logger.Debug(ctx, "fit finished",
		logger.String("run_id", snap.RunID),
		logger.Int("rows", len(snap.Rows)),
	)
	return nil
}
