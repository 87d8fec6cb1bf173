// Package portfolio simulates Kelly staking on model forecasts.
//
// Each day the simulator sizes bets on that day's offers from the bankroll
// as it stands, then settles whatever outcomes are known. Bets on contests
// without an outcome stay open until Settle is called.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/okian/fightrank/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Offer is one upcoming contest with the model probability and the
// decimal odds on each side.
type Offer struct {
	ContestID string
	Date      time.Time
	SelfID    string
	OtherID   string
	Prob      float64 // model probability that self wins
	SelfOdds  float64
	OtherOdds float64
	Outcome   float64 // self outcome: 1 win, 0 loss, 0.5 draw
	Known     bool
}

// Status of a bet.
type Status string

// Bet statuses.
const (
	StatusOpen Status = "open"
	StatusWon  Status = "won"
	StatusLost Status = "lost"
	StatusPush Status = "push"
)

// Bet is one ledger line.
type Bet struct {
	ContestID string
	Date      time.Time
	EntityID  string // the side backed
	Self      bool   // true when backing the self side of the offer
	Prob      float64
	Odds      float64
	Fraction  float64 // applied fraction after multiplier, normalization and cap
	Stake     decimal.Decimal
	Profit    decimal.Decimal
	Status    Status
	Settled   time.Time
}

// Point is one entry of the equity curve.
type Point struct {
	Date     time.Time
	Bankroll decimal.Decimal
	Drawdown decimal.Decimal
}

// Result summarizes a Run.
type Result struct {
	RunID       string
	Ledger      []Bet
	Curve       []Point
	Final       decimal.Decimal
	MaxDrawdown decimal.Decimal
	Open        int
}

// Kelly returns the optimal fraction of bankroll for a bet that wins with
// probability p at decimal odds. Unprofitable bets return zero.
func Kelly(p, odds float64) float64 {
	if !(odds > 1) || math.IsNaN(p) {
		return 0
	}
	f := p - (1-p)/(odds-1)
	if f < 0 {
		return 0
	}
	return f
}

// Sides computes the Kelly fraction of both sides of o. Both being
// positive is an error.
func Sides(o Offer) (self, other float64, err error) {
	self = Kelly(o.Prob, o.SelfOdds)
	other = Kelly(1-o.Prob, o.OtherOdds)
	if self > 0 && other > 0 {
		return 0, 0, &DoubleSidedError{
			ContestID: o.ContestID, SelfID: o.SelfID, OtherID: o.OtherID,
			Prob: o.Prob, SelfOdds: o.SelfOdds, OtherOdds: o.OtherOdds,
			SelfFrac: self, OtherFrac: other,
		}
	}
	return self, other, nil
}

// Simulator tracks a bankroll across days.
type Simulator struct {
	mu          sync.Mutex
	runID       string
	bankroll    decimal.Decimal
	peak        decimal.Decimal
	maxDD       decimal.Decimal
	multiplier  float64
	maxFraction float64
	open        map[string]int // contest id -> ledger index
	ledger      []Bet
	curve       []Point
	logger      logger.Logger
}

// New creates a Simulator.
func New(opts ...Option) (*Simulator, error) {
	s := &Simulator{
		runID:       uuid.NewString(),
		bankroll:    DefaultBankroll,
		multiplier:  DefaultMultiplier,
		maxFraction: DefaultMaxFraction,
		open:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case !s.bankroll.IsPositive():
		return nil, fmt.Errorf("%w: bankroll must be positive, got %s", ErrInvalidConfig, s.bankroll)
	case !(s.multiplier > 0) || math.IsInf(s.multiplier, 0):
		return nil, fmt.Errorf("%w: kelly multiplier must be positive, got %v", ErrInvalidConfig, s.multiplier)
	case !(s.maxFraction > 0) || s.maxFraction > 1:
		return nil, fmt.Errorf("%w: max fraction must be in (0, 1], got %v", ErrInvalidConfig, s.maxFraction)
	}
	if s.logger == nil {
		s.logger = logger.NamedOrNop("portfolio")
	}
	s.peak = s.bankroll
	return s, nil
}

// Bankroll returns the settled bankroll.
func (s *Simulator) Bankroll() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bankroll
}

// Place sizes bets for one day of offers. Stakes are the bankroll times
// the multiplied Kelly fraction, divided by the number of bets placed that
// day and capped at the max fraction. Nothing is placed if any offer is
// double-sided or duplicated.
func (s *Simulator) Place(ctx context.Context, offers []Offer) ([]Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type pick struct {
		o    *Offer
		self bool
		f    float64
	}
	var picks []pick
	seen := make(map[string]struct{}, len(offers))
	for i := range offers {
		o := &offers[i]
		if _, ok := s.open[o.ContestID]; ok {
			return nil, fmt.Errorf("%w: contest %s already has an open bet", ErrDuplicateOffer, o.ContestID)
		}
		if _, ok := seen[o.ContestID]; ok {
			return nil, fmt.Errorf("%w: contest %s offered twice", ErrDuplicateOffer, o.ContestID)
		}
		seen[o.ContestID] = struct{}{}

		fs, fo, err := Sides(*o)
		if err != nil {
			metrics.RecordKellyDoubleSided()
			return nil, err
		}
		switch {
		case fs > 0:
			picks = append(picks, pick{o: o, self: true, f: fs})
		case fo > 0:
			picks = append(picks, pick{o: o, self: false, f: fo})
		}
	}
	if len(picks) == 0 {
		return nil, nil
	}

	n := float64(len(picks))
	out := make([]Bet, 0, len(picks))
	for _, p := range picks {
		frac := math.Min(p.f*s.multiplier/n, s.maxFraction)
		b := Bet{
			ContestID: p.o.ContestID,
			Date:      contest.Day(p.o.Date),
			Self:      p.self,
			Fraction:  frac,
			Stake:     s.bankroll.Mul(decimal.NewFromFloat(frac)).Round(2),
			Profit:    decimal.Zero,
			Status:    StatusOpen,
		}
		if p.self {
			b.EntityID, b.Prob, b.Odds = p.o.SelfID, p.o.Prob, p.o.SelfOdds
		} else {
			b.EntityID, b.Prob, b.Odds = p.o.OtherID, 1-p.o.Prob, p.o.OtherOdds
		}
		if !b.Stake.IsPositive() {
			continue
		}
		s.open[b.ContestID] = len(s.ledger)
		s.ledger = append(s.ledger, b)
		out = append(out, b)
		metrics.RecordBetPlaced()
	}
	s.logger.Debug(ctx, "bets placed", logger.Int("offers", len(offers)), logger.Int("bets", len(out)))
	return out, nil
}

// Settle closes the open bet on contestID given the self outcome of the
// original offer.
func (s *Simulator) Settle(ctx context.Context, contestID string, outcome float64, at time.Time) (Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.settle(contestID, outcome, at)
	if err != nil {
		return Bet{}, err
	}
	s.mark(at)
	s.logger.Debug(ctx, "bet settled", logger.String("contest_id", contestID), logger.String("status", string(b.Status)))
	return b, nil
}

func (s *Simulator) settle(contestID string, outcome float64, at time.Time) (Bet, error) {
	i, ok := s.open[contestID]
	if !ok {
		return Bet{}, fmt.Errorf("%w: contest %s", ErrUnknownBet, contestID)
	}
	b := &s.ledger[i]
	won := outcome
	if !b.Self {
		won = 1 - outcome
	}
	switch {
	case won == 0.5:
		b.Status, b.Profit = StatusPush, decimal.Zero
	case won > 0.5:
		b.Status = StatusWon
		b.Profit = b.Stake.Mul(decimal.NewFromFloat(b.Odds - 1)).Round(2)
	default:
		b.Status, b.Profit = StatusLost, b.Stake.Neg()
	}
	b.Settled = contest.Day(at)
	s.bankroll = s.bankroll.Add(b.Profit)
	delete(s.open, contestID)
	metrics.RecordBetSettled(string(b.Status))
	return *b, nil
}

// mark appends an equity point and tracks the running peak.
func (s *Simulator) mark(at time.Time) {
	if s.bankroll.GreaterThan(s.peak) {
		s.peak = s.bankroll
	}
	dd := decimal.Zero
	if s.peak.IsPositive() {
		dd = s.peak.Sub(s.bankroll).Div(s.peak)
	}
	if dd.GreaterThan(s.maxDD) {
		s.maxDD = dd
	}
	day := contest.Day(at)
	if n := len(s.curve); n > 0 && s.curve[n-1].Date.Equal(day) {
		s.curve[n-1] = Point{Date: day, Bankroll: s.bankroll, Drawdown: dd}
	} else {
		s.curve = append(s.curve, Point{Date: day, Bankroll: s.bankroll, Drawdown: dd})
	}
	metrics.UpdateBankroll(s.bankroll.InexactFloat64())
	metrics.UpdateMaxDrawdown(s.maxDD.InexactFloat64())
}

// Run walks offers day by day: place, then settle the day's known
// outcomes. Offers with unknown outcomes stay open in the result.
func (s *Simulator) Run(ctx context.Context, offers []Offer) (*Result, error) {
	byDay := make(map[int64][]Offer)
	var days []time.Time
	for _, o := range offers {
		d := contest.Day(o.Date)
		if _, ok := byDay[d.Unix()]; !ok {
			days = append(days, d)
		}
		byDay[d.Unix()] = append(byDay[d.Unix()], o)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation interrupted at %s: %w", d.Format(time.DateOnly), err)
		}
		batch := byDay[d.Unix()]
		bets, err := s.Place(ctx, batch)
		if err != nil {
			return nil, err
		}
		placed := make(map[string]struct{}, len(bets))
		for _, b := range bets {
			placed[b.ContestID] = struct{}{}
		}

		s.mu.Lock()
		for _, o := range batch {
			if _, ok := placed[o.ContestID]; !ok || !o.Known {
				continue
			}
			if _, err := s.settle(o.ContestID, o.Outcome, d); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
		s.mark(d)
		s.mu.Unlock()
	}
	return s.Result(ctx), nil
}

// Result returns a copy of the current ledger and curve.
func (s *Simulator) Result(ctx context.Context) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := &Result{
		RunID:       s.runID,
		Ledger:      append([]Bet(nil), s.ledger...),
		Curve:       append([]Point(nil), s.curve...),
		Final:       s.bankroll,
		MaxDrawdown: s.maxDD,
		Open:        len(s.open),
	}
	s.logger.Info(ctx, "simulation summary",
		logger.String("run_id", res.RunID),
		logger.Int("bets", len(res.Ledger)),
		logger.Int("open", res.Open),
		logger.String("bankroll", res.Final.StringFixed(2)),
		logger.String("max_drawdown", res.MaxDrawdown.StringFixed(4)),
	)
	return res
}
