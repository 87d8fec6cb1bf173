package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fightrank/internal/domain/backtest"
	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/features"
	"github.com/okian/fightrank/internal/domain/isomorphism"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/portfolio"
	"github.com/okian/fightrank/internal/domain/rating"
	"github.com/okian/fightrank/internal/domain/scoring"
	"github.com/okian/fightrank/internal/domain/types"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/shopspring/decimal"
)

// Run executes the pipeline once: resolve auxiliary ids, fit every
// target, publish the ranking, backtest and simulate staking. Data
// integrity errors stop the run and carry the offending rows.
func (s *Service) Run(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := s.requireStorage(); err != nil {
		return err
	}
	start := time.Now()
	ctx = logger.ContextWith(ctx, logger.String("pipeline_run", uuid.NewString()))

	res, err := s.resolve(ctx)
	if err != nil {
		s.recordFailure(ctx, "resolve", err)
		return fmt.Errorf("resolve identities: %w", err)
	}

	contests, err := s.storage.Contests(ctx)
	if err != nil {
		s.recordFailure(ctx, "load", err)
		return fmt.Errorf("load contests: %w", err)
	}
	p, err := s.plan()
	if err != nil {
		return err
	}
	table := contest.Double(contests, p.double...)

	snaps, err := s.fit(ctx, p, table)
	if err != nil {
		s.recordFailure(ctx, "fit", err)
		return fmt.Errorf("fit: %w", err)
	}
	if err := s.publish(ctx, snaps[p.primary]); err != nil {
		s.recordFailure(ctx, "publish", err)
		return fmt.Errorf("publish ranking: %w", err)
	}

	lead := leadRows(table)
	samples, err := s.samples(ctx, table, lead, snaps[p.outcome], p.outcome)
	if err != nil {
		s.recordFailure(ctx, "features", err)
		return fmt.Errorf("features: %w", err)
	}
	rep, err := s.backtest(ctx, samples)
	if err != nil {
		s.recordFailure(ctx, "backtest", err)
		return fmt.Errorf("backtest: %w", err)
	}
	var sim *portfolio.Result
	if rep != nil {
		if sim, err = s.simulate(ctx, rep, lead); err != nil {
			s.recordFailure(ctx, "portfolio", err)
			return fmt.Errorf("portfolio: %w", err)
		}
	}

	s.mu.Lock()
	s.resolution, s.report, s.simulation = res, rep, sim
	s.lastRun = time.Now()
	s.mu.Unlock()

	s.logger.Info(ctx, "pipeline finished",
		logger.Int("contests", len(contests)),
		logger.Int("entities", len(table.EntityIDs())),
		logger.Int("samples", len(samples)),
		logger.String("duration", time.Since(start).String()),
	)
	return nil
}

// resolve runs identity resolution when both a canon and an aux table are
// configured. It returns nil otherwise.
func (s *Service) resolve(ctx context.Context) (*isomorphism.Result, error) {
	canon, err := s.storage.Canon(ctx)
	if err != nil {
		return nil, err
	}
	aux, err := s.storage.Aux(ctx)
	if err != nil {
		return nil, err
	}
	if len(canon) == 0 || len(aux) == 0 {
		s.logger.Debug(ctx, "identity resolution skipped", logger.Int("canon", len(canon)), logger.Int("aux", len(aux)))
		return nil, nil
	}

	seed, err := s.storage.Seed(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := s.storage.Aliases(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := isomorphism.New(
		isomorphism.WithSeed(seed),
		isomorphism.WithAliases(aliases),
		isomorphism.WithIterations(s.cfg.IsoIterations),
		isomorphism.WithLogger(s.logger.Named("isomorphism")),
	)
	if err != nil {
		return nil, err
	}
	res, err := engine.Resolve(ctx, canon, aux)
	if err != nil {
		var conflict *isomorphism.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Error(ctx, "crosswalk conflict", logger.Int("conflicts", len(conflict.Conflicts)))
		}
		return nil, err
	}
	if err := s.storage.SaveResolution(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// publish replaces the ranking with the final ratings of snap.
func (s *Service) publish(ctx context.Context, snap *rating.Snapshot) error {
	if snap == nil {
		return nil
	}
	return s.rankings.ReplaceAll(ctx, standings(snap))
}

func standings(snap *rating.Snapshot) []types.Standing {
	contests := make(map[string]int)
	last := make(map[string]time.Time)
	for i := range snap.Rows {
		r := &snap.Rows[i]
		contests[r.SelfID]++
		if r.Date.After(last[r.SelfID]) {
			last[r.SelfID] = r.Date
		}
	}

	finals := snap.Finals()
	out := make([]types.Standing, 0, len(finals))
	for _, id := range snap.Entities() {
		r := finals[id]
		out = append(out, types.Standing{
			EntityID:    id,
			Rating:      r.Value,
			Offense:     r.Offense,
			Defense:     r.Defense,
			Contests:    contests[id],
			LastContest: last[id],
		})
	}
	return out
}

// leadRows keeps one row per contest, the one whose self id sorts first.
func leadRows(table model.Table) map[string]*model.Row {
	out := make(map[string]*model.Row, len(table)/2)
	for i := range table {
		r := &table[i]
		if r.SelfID < r.OtherID {
			out[r.ContestID] = r
		}
	}
	return out
}

// samples builds one backtest sample per contest from the causal rating
// difference and the rolling feature differences.
func (s *Service) samples(ctx context.Context, table model.Table, lead map[string]*model.Row, snap *rating.Snapshot, outcome string) ([]backtest.Sample, error) {
	ex := features.New(
		features.WithTopTier(s.cfg.TopTierPromotions...),
		features.WithDaysCeiling(s.cfg.DaysSinceCeiling),
		features.WithWeightColumn(s.cfg.WeightColumn),
		features.WithMinutesColumn(s.cfg.MinutesColumn),
		features.WithLogger(s.logger.Named("features")),
	)
	rows, err := ex.Extract(ctx, table)
	if err != nil {
		return nil, err
	}

	out := make([]backtest.Sample, 0, len(lead))
	for i := range rows {
		fr := &rows[i]
		row, ok := lead[fr.ContestID]
		if !ok || row.SelfID != fr.SelfID {
			continue
		}
		var diff float64
		if snap != nil {
			diff = snap.AsOf(fr.SelfID, fr.Date).Value - snap.AsOf(fr.OtherID, fr.Date).Value
		}
		smp := backtest.Sample{
			ContestID: fr.ContestID,
			Date:      fr.Date,
			X:         append([]float64{diff}, fr.Diff()...),
		}
		smp.Label, smp.HasLabel = row.Value(outcome)
		if a, b, ok := s.odds(row); ok {
			if pa, _, err := scoring.RemoveVig(a, b); err == nil {
				smp.Market, smp.HasMarket = pa, true
			}
		}
		out = append(out, smp)
	}
	return out, nil
}

func (s *Service) odds(row *model.Row) (self, other float64, ok bool) {
	self, okSelf := row.Value(s.cfg.OddsSelfColumn)
	other, okOther := row.Value(s.cfg.OddsOtherColumn)
	return self, other, okSelf && okOther
}

// backtest returns nil without an error when the table spans too few
// days for the configured folds.
func (s *Service) backtest(ctx context.Context, samples []backtest.Sample) (*backtest.Report, error) {
	h, err := backtest.New(
		backtest.WithFolds(s.cfg.CVFolds),
		backtest.WithConcurrency(s.cfg.WorkerCount),
		backtest.WithLogger(s.logger.Named("backtest")),
	)
	if err != nil {
		return nil, err
	}
	rep, err := h.Run(ctx, samples)
	if errors.Is(err, backtest.ErrTooFewDates) {
		s.logger.Warn(ctx, "backtest skipped", logger.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.storage.SaveBacktest(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// simulate stakes on the out-of-fold forecasts of priced contests.
func (s *Service) simulate(ctx context.Context, rep *backtest.Report, lead map[string]*model.Row) (*portfolio.Result, error) {
	var offers []portfolio.Offer
	for _, f := range rep.Folds {
		for _, fc := range f.Forecasts {
			row, ok := lead[fc.ContestID]
			if !ok {
				continue
			}
			a, b, ok := s.odds(row)
			if !ok {
				continue
			}
			offers = append(offers, portfolio.Offer{
				ContestID: fc.ContestID,
				Date:      fc.Date,
				SelfID:    row.SelfID,
				OtherID:   row.OtherID,
				Prob:      fc.Prob,
				SelfOdds:  a,
				OtherOdds: b,
				Outcome:   fc.Outcome,
				Known:     fc.Known,
			})
		}
	}
	if len(offers) == 0 {
		s.logger.Info(ctx, "no priced contests to stake on")
		return nil, nil
	}

	sim, err := portfolio.New(
		portfolio.WithBankroll(decimal.NewFromFloat(s.cfg.InitialBankroll)),
		portfolio.WithKellyMultiplier(s.cfg.KellyMultiplier),
		portfolio.WithMaxFraction(s.cfg.MaxBetFraction),
		portfolio.WithLogger(s.logger.Named("portfolio")),
	)
	if err != nil {
		return nil, err
	}
	res, err := sim.Run(ctx, offers)
	if err != nil {
		return nil, err
	}
	if err := s.storage.SaveSimulation(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}
