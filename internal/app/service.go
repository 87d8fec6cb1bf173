// Package service runs the rating pipeline and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/fightrank/internal/adapters/mq/queue"
	"github.com/okian/fightrank/internal/adapters/mq/worker"
	"github.com/okian/fightrank/internal/adapters/repository"
	"github.com/okian/fightrank/internal/config"
	"github.com/okian/fightrank/internal/domain/backtest"
	"github.com/okian/fightrank/internal/domain/isomorphism"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/portfolio"
	"github.com/okian/fightrank/internal/domain/rating"
	"github.com/okian/fightrank/internal/domain/types"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/okian/fightrank/pkg/metrics"
)

// Storage reads the pipeline inputs and persists its outputs. Optional
// inputs that are absent come back empty without an error.
type Storage interface {
	Contests(ctx context.Context) ([]model.Contest, error)
	Canon(ctx context.Context) ([]model.Contest, error)
	Aux(ctx context.Context) ([]model.Contest, error)
	Seed(ctx context.Context) (map[string]string, error)
	Aliases(ctx context.Context) (map[string]string, error)

	SaveResolution(ctx context.Context, res *isomorphism.Result) error
	SaveSnapshot(ctx context.Context, target string, snap *rating.Snapshot) error
	SaveBacktest(ctx context.Context, rep *backtest.Report) error
	SaveSimulation(ctx context.Context, res *portfolio.Result) error
}

// Service owns the fit queue, the worker pool and the published ranking.
type Service struct {
	mu    sync.RWMutex
	runMu sync.Mutex // serializes Fit and Run

	cfg      *config.Config
	storage  Storage
	rankings repository.Store
	jobs     *queue.InMemoryQueue
	pool     *worker.Pool

	// fit state shared with the runner; guarded by mu
	table     model.Table
	specs     map[string]fitSpec
	snapshots map[string]*rating.Snapshot
	primary   string

	// last pipeline outputs
	resolution *isomorphism.Result
	report     *backtest.Report
	simulation *portfolio.Result
	lastRun    time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStorage sets where inputs are read and outputs written.
func WithStorage(st Storage) Option {
	return func(s *Service) {
		s.storage = st
	}
}

// WithStore sets the ranking store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.rankings = st
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. The configuration is validated here.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		cfg:       config.New(),
		snapshots: make(map[string]*rating.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if s.logger == nil {
		s.logger = logger.NamedOrNop("service")
	}
	if s.rankings == nil {
		s.rankings = repository.NewTreapStore(repository.WithLogger(s.logger.Named("rankings")))
	}
	return s, nil
}

// Start creates the fit queue and launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.jobs, worker.RunnerFunc(s.runFit), worker.WithFitTimeout(s.cfg.FitTimeout))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.cfg.QueueSize),
	)
	return nil
}

// Stop closes the queue and waits for in-flight fits.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	pool := s.pool
	s.started = false
	s.mu.Unlock()

	// Workers take the read lock while fitting, so wait outside of it.
	ctx := context.Background()
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.logger.Info(ctx, "service stopped")
}

// TopN returns the top n ranked entities of the latest fit.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.rankings.TopN(ctx, n)
}

// Rank returns the ranking entry of one entity.
func (s *Service) Rank(ctx context.Context, entityID string) (types.Entry, error) {
	return s.rankings.Rank(ctx, entityID)
}

// Snapshot returns the snapshot of a fitted target of the latest run.
func (s *Service) Snapshot(target string) (*rating.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[target]
	return snap, ok
}

// History returns the rating path of one entity in the published fit,
// one point per contest with the rating it carried into it.
func (s *Service) History(_ context.Context, entityID string) ([]types.Point, error) {
	s.mu.RLock()
	snap := s.snapshots[s.primary]
	s.mu.RUnlock()
	if snap == nil {
		return nil, fmt.Errorf("history %s: %w", entityID, repository.ErrNotFound)
	}

	var out []types.Point
	for i := range snap.Rows {
		r := &snap.Rows[i]
		if r.SelfID != entityID {
			continue
		}
		out = append(out, types.Point{
			ContestID: r.ContestID,
			OtherID:   r.OtherID,
			Date:      r.Date,
			Before:    r.SelfBefore.Value,
			After:     r.SelfAfter.Value,
			Predicted: r.Predicted,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("history %s: %w", entityID, repository.ErrNotFound)
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
		"targetKind":  s.cfg.TargetKind,
		"ranked":      s.rankings.Count(ctx),
	}
	if s.jobs != nil {
		stats["queueLength"] = s.jobs.Len()
	}
	if !s.lastRun.IsZero() {
		stats["lastRun"] = s.lastRun.Format(time.RFC3339)
	}

	fits := make(map[string]string, len(s.snapshots))
	for target, snap := range s.snapshots {
		fits[target] = snap.RunID
	}
	stats["fits"] = fits

	if s.resolution != nil {
		stats["crosswalk"] = len(s.resolution.Crosswalk)
		stats["strays"] = len(s.resolution.Strays)
	}
	if s.report != nil {
		putFinite(stats, "backtestLogLoss", s.report.Pooled.LogLoss)
		putFinite(stats, "backtestAccuracy", s.report.Pooled.Accuracy)
	}
	if s.simulation != nil {
		stats["bankroll"] = s.simulation.Final.String()
		stats["maxDrawdown"] = s.simulation.MaxDrawdown.String()
		stats["openBets"] = s.simulation.Open
	}
	return stats
}

// putFinite skips scores left NaN by an empty evaluation set.
func putFinite(stats map[string]any, key string, v float64) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		stats[key] = v
	}
}

func (s *Service) requireStorage() error {
	if s.storage == nil {
		return fmt.Errorf("%w: no storage configured", ErrNotConfigured)
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, stage string, err error) {
	metrics.RecordErrorByComponent("service", stage)
	s.logger.Error(ctx, "pipeline stage failed", logger.String("stage", stage), logger.Error(err))
}
