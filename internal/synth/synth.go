// Package synth generates contest tables from hidden true powers. A fit on
// the output should recover the powers up to noise, which makes it the
// ground truth for end-to-end checks.
package synth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fightrank/internal/domain/model"
)

// Column names written by the generator.
const (
	StatLanded    = "sig_landed"
	StatAttempted = "sig_attempted"
	StatOdds      = "odds"
	StatWeight    = "weight"
	ValueMinutes  = "minutes"
	TournamentTag = "GP"
)

// baseline strike accuracy on the logit scale.
var baseAccuracy = math.Log(0.45 / 0.55)

// Fighter is one generated entity with its hidden parameters.
type Fighter struct {
	ID      string
	Name    string
	Power   float64
	Offense float64
	Defense float64
	Weight  float64
	Debut   time.Time
}

// Dataset is a generated league.
type Dataset struct {
	Fighters []Fighter
	Contests []model.Contest
}

// Powers returns the hidden power by fighter id.
func (d *Dataset) Powers() map[string]float64 {
	out := make(map[string]float64, len(d.Fighters))
	for _, f := range d.Fighters {
		out[f.ID] = f.Power
	}
	return out
}

// Generate builds a dataset from cfg.
func Generate(ctx context.Context, cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	g.population()

	for e := 0; e < cfg.Events; e++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation interrupted at event %d: %w", e, err)
		}
		g.event(e)
	}
	sort.SliceStable(g.contests, func(i, j int) bool { return g.contests[i].Date.Before(g.contests[j].Date) })
	return &Dataset{Fighters: g.fighters, Contests: g.contests}, nil
}

type generator struct {
	cfg      Config
	rng      *rand.Rand
	fighters []Fighter
	contests []model.Contest
}

func (g *generator) population() {
	g.fighters = make([]Fighter, g.cfg.Fighters)
	// Debuts cover the first 70% of the span so late events still have a
	// full field.
	debutSpan := max(1, g.cfg.Days*7/10)
	for i := range g.fighters {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("fightrank/%d/%d", g.cfg.Seed, i)))
		debut := g.cfg.Start
		if i >= 2*g.cfg.MaxBouts {
			debut = debut.AddDate(0, 0, g.rng.Intn(debutSpan))
		}
		off, def := g.rng.NormFloat64()*0.4, g.rng.NormFloat64()*0.4
		g.fighters[i] = Fighter{
			ID:      id.String(),
			Name:    g.name(),
			Power:   g.rng.NormFloat64(),
			Offense: off,
			Defense: def,
			Weight:  float64(125 + 10*g.rng.Intn(12)),
			Debut:   debut,
		}
	}
}

var (
	firstNames = []string{"José", "Jon", "Łukasz", "Israel", "Khabib", "Amanda", "Valentina", "Conor",
		"Renée", "Georges", "Zhang", "Cris", "Anderson", "Dustin", "Max", "Joanna", "Rose", "Islam"}
	lastNames = []string{"Aldo", "Jones", "Sajewski", "Adesanya", "Nurmagomedov", "Nunes", "Shevchenko",
		"McGregor", "Müller", "St-Pierre", "Weili", "Cyborg", "Silva", "Poirier", "Holloway", "Jędrzejczyk",
		"Namajunas", "Makhachev", "Pérez", "Ngannou"}
)

func (g *generator) name() string {
	return firstNames[g.rng.Intn(len(firstNames))] + " " + lastNames[g.rng.Intn(len(lastNames))]
}

// active returns the fighters that debuted on or before day, shuffled.
func (g *generator) active(day time.Time) []int {
	var out []int
	for i := range g.fighters {
		if !g.fighters[i].Debut.After(day) {
			out = append(out, i)
		}
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (g *generator) event(e int) {
	day := g.cfg.Start.AddDate(0, 0, e*g.cfg.Days/g.cfg.Events)
	promotion := g.cfg.Promotions[g.rng.Intn(len(g.cfg.Promotions))]
	pool := g.active(day)

	bouts := g.cfg.MinBouts + g.rng.Intn(g.cfg.MaxBouts-g.cfg.MinBouts+1)
	bouts = min(bouts, len(pool)/2)
	for b := 0; b < bouts; b++ {
		g.bout(day, promotion, pool[2*b], pool[2*b+1])
	}

	rest := pool[2*bouts:]
	if len(rest) >= 4 && g.rng.Float64() < g.cfg.TournamentRate {
		w1 := g.bout(day, TournamentTag, rest[0], rest[1])
		w2 := g.bout(day, TournamentTag, rest[2], rest[3])
		if w1 >= 0 && w2 >= 0 {
			g.bout(day, TournamentTag, w1, w2)
		}
	}
}

// bout appends one contest and returns the winner index, or -1 when the
// result is a draw or unrecorded.
func (g *generator) bout(day time.Time, promotion string, a, b int) int {
	fa, fb := &g.fighters[a], &g.fighters[b]
	p := logistic(fa.Power - fb.Power)

	c := model.Contest{
		Date:      day,
		Promotion: promotion,
		A:         model.Side{ID: fa.ID, Name: fa.Name, Stats: map[string]float64{}},
		B:         model.Side{ID: fb.ID, Name: fb.Name, Stats: map[string]float64{}},
		Values:    map[string]float64{ValueMinutes: float64(5 + g.rng.Intn(21))},
	}

	winner := -1
	switch u := g.rng.Float64(); {
	case u < g.cfg.DrawRate:
		c.Result = model.ResultDraw
	case u < g.cfg.DrawRate+(1-g.cfg.DrawRate)*p:
		c.Result = model.ResultAWin
		winner = a
	default:
		c.Result = model.ResultBWin
		winner = b
	}
	if g.rng.Float64() < g.cfg.NullRate {
		c.Result = model.ResultUnknown
		winner = -1
	}

	g.strikes(&c.A, fa, fb)
	g.strikes(&c.B, fb, fa)
	c.A.Stats[StatWeight] = fa.Weight
	c.B.Stats[StatWeight] = fb.Weight

	oa, ob := g.odds(p)
	c.A.Stats[StatOdds] = oa
	c.B.Stats[StatOdds] = ob

	g.contests = append(g.contests, c)
	return winner
}

// strikes draws landed/attempted for self against other, or leaves them
// out as unrecorded.
func (g *generator) strikes(side *model.Side, self, other *Fighter) {
	if g.rng.Float64() < g.cfg.NullRate {
		return
	}
	att := 20 + g.rng.Intn(100)
	acc := logistic(self.Offense - other.Defense + baseAccuracy)
	landed := 0
	for i := 0; i < att; i++ {
		if g.rng.Float64() < acc {
			landed++
		}
	}
	side.Stats[StatAttempted] = float64(att)
	side.Stats[StatLanded] = float64(landed)
}

// odds prices a noisy market view of p. The payout above stake shrinks by
// the overround and rounds down, so implied probabilities never sum below
// one.
func (g *generator) odds(p float64) (a, b float64) {
	m := logistic(logit(p) + g.rng.NormFloat64()*0.3)
	over := 1 + g.cfg.Vig
	return price(m, over), price(1-m, over)
}

func price(m, over float64) float64 {
	return 1 + math.Floor((1/m-1)/over*100)/100
}

// AuxView relabels a share of the dataset as an auxiliary source would
// publish it: foreign ids and spelling variants. It returns the aux
// contests and the true aux->canonical crosswalk.
func AuxView(d *Dataset, share float64, seed int64) ([]model.Contest, map[string]string) {
	rng := rand.New(rand.NewSource(seed))
	auxID := make(map[string]string, len(d.Fighters))
	truth := make(map[string]string, len(d.Fighters))
	for i, f := range d.Fighters {
		id := fmt.Sprintf("aux-%05d", i)
		auxID[f.ID] = id
		truth[id] = f.ID
	}

	var out []model.Contest
	used := make(map[string]bool)
	for _, c := range d.Contests {
		if rng.Float64() >= share {
			continue
		}
		ac := c
		ac.A = model.Side{ID: auxID[c.A.ID], Name: variant(rng, c.A.Name), Stats: c.A.Stats}
		ac.B = model.Side{ID: auxID[c.B.ID], Name: variant(rng, c.B.Name), Stats: c.B.Stats}
		used[ac.A.ID], used[ac.B.ID] = true, true
		out = append(out, ac)
	}
	for id := range truth {
		if !used[id] {
			delete(truth, id)
		}
	}
	return out, truth
}

// variant spells a name the way another source might.
func variant(rng *rand.Rand, name string) string {
	switch rng.Intn(4) {
	case 0:
		return strings.ToUpper(name)
	case 1:
		return "  " + strings.ReplaceAll(name, " ", "   ")
	default:
		return name
	}
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }
