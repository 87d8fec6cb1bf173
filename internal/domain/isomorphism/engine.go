// Package isomorphism maps entity ids of an auxiliary contest source onto
// the canonical id space.
//
// Exact name matches on the same day seed the crosswalk. Shared opponents
// on a shared day then extend it: if aux Y is known to be canon Yc, whoever
// Yc fought that day in the canon table is whoever Y fought in aux. Any aux
// id that ends up with two different canon targets stops the run.
package isomorphism

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fightrank/internal/domain/contest"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/okian/fightrank/pkg/metrics"
)

// Phases that produce mappings.
const (
	PhaseOverride   = "override"
	PhaseSeed       = "seed"
	PhaseJoin       = "join"
	PhasePropagate  = "propagate"
	PhaseTournament = "tournament"
)

// maxEvidence caps the rows kept per aux id for diagnostics.
const maxEvidence = 8

// Stats counts mappings per phase.
type Stats struct {
	Overrides  int
	Seeded     int
	Joined     int
	Propagated int
	Tournament int
	Iterations int
	Strays     int
}

// Result is the outcome of one Resolve call.
type Result struct {
	RunID         string
	Crosswalk     map[string]string
	Strays        []string
	StrayClusters [][]string
	Stats         Stats
}

// Entries returns the crosswalk ordered by aux id.
func (r *Result) Entries() []model.CrosswalkEntry {
	out := make([]model.CrosswalkEntry, 0, len(r.Crosswalk))
	for aux, canon := range r.Crosswalk {
		out = append(out, model.CrosswalkEntry{AuxID: aux, CanonID: canon})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuxID < out[j].AuxID })
	return out
}

// Engine resolves aux ids. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	seed       map[string]string
	overrides  map[string]string
	names      *Normalizer
	iterations int
	logger     logger.Logger
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		seed:       make(map[string]string),
		overrides:  make(map[string]string),
		names:      NewNormalizer(nil),
		iterations: DefaultIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.iterations <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIterations, e.iterations)
	}
	if e.logger == nil {
		e.logger = logger.NamedOrNop("isomorphism")
	}
	return e, nil
}

type nameKey struct {
	day   int64
	self  string
	other string
}

type idKey struct {
	day int64
	id  string
}

type proposal struct {
	aux   string
	canon string
	match Match
}

// run is the mutable state of one Resolve call.
type run struct {
	e        *Engine
	canon    model.Table
	aux      model.Table
	mapping  map[string]string
	evidence map[string][]Match
	auxNames map[string]string

	canonNames map[string]map[string]struct{}
	canonByOpp map[idKey][]int
	auxOpps    map[idKey]map[string]struct{}
	checked    map[int]bool
	stats      Stats
}

// Resolve builds the crosswalk from aux ids to canon ids.
func (e *Engine) Resolve(ctx context.Context, canon, aux []model.Contest) (*Result, error) {
	r := &run{
		e:          e,
		canon:      contest.Double(canon, contest.WithOutcomeColumn("")),
		aux:        contest.Double(aux, contest.WithOutcomeColumn("")),
		mapping:    make(map[string]string),
		evidence:   make(map[string][]Match),
		auxNames:   make(map[string]string),
		canonNames: make(map[string]map[string]struct{}),
		canonByOpp: make(map[idKey][]int),
		auxOpps:    make(map[idKey]map[string]struct{}),
		checked:    make(map[int]bool),
	}
	if err := contest.Validate(r.canon); err != nil {
		return nil, fmt.Errorf("validate canon table: %w", err)
	}
	if err := contest.Validate(r.aux); err != nil {
		return nil, fmt.Errorf("validate aux table: %w", err)
	}
	r.index()

	for a, c := range e.overrides {
		r.mapping[a] = c
		r.stats.Overrides++
	}
	for a, c := range e.seed {
		if _, ok := e.overrides[a]; ok {
			continue
		}
		r.mapping[a] = c
		r.stats.Seeded++
	}

	added, err := r.merge(r.join())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.stats.Joined = added

	for r.stats.Iterations < e.iterations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve interrupted: %w", err)
		}
		r.stats.Iterations++
		added, err := r.merge(r.propagate())
		if err != nil {
			return nil, r.fail(ctx, err)
		}
		r.stats.Propagated += added
		if added == 0 {
			break
		}
	}

	added, err = r.merge(r.tournament())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.stats.Tournament = added

	res := &Result{
		RunID:     uuid.NewString(),
		Crosswalk: r.mapping,
		Strays:    r.strays(),
	}
	clusters, err := strayClusters(res.Strays, r.aux)
	if err != nil {
		return nil, fmt.Errorf("cluster strays: %w", err)
	}
	res.StrayClusters = clusters
	r.stats.Strays = len(res.Strays)
	res.Stats = r.stats

	metrics.RecordIsomorphismMappings(PhaseOverride, r.stats.Overrides)
	metrics.RecordIsomorphismMappings(PhaseSeed, r.stats.Seeded)
	metrics.RecordIsomorphismMappings(PhaseJoin, r.stats.Joined)
	metrics.RecordIsomorphismMappings(PhasePropagate, r.stats.Propagated)
	metrics.RecordIsomorphismMappings(PhaseTournament, r.stats.Tournament)
	metrics.UpdateIsomorphismStrays(len(res.Strays))
	e.logger.Info(ctx, "crosswalk resolved",
		logger.String("run_id", res.RunID),
		logger.Int("mapped", len(res.Crosswalk)),
		logger.Int("joined", r.stats.Joined),
		logger.Int("propagated", r.stats.Propagated),
		logger.Int("tournament", r.stats.Tournament),
		logger.Int("strays", len(res.Strays)),
		logger.Int("iterations", r.stats.Iterations),
	)
	return res, nil
}

func (r *run) fail(ctx context.Context, err error) error {
	if ce, ok := err.(*ConflictError); ok {
		metrics.RecordIsomorphismConflicts(len(ce.Conflicts))
	}
	r.e.logger.Debug(ctx, "crosswalk aborted", logger.Error(err))
	return err
}

func (r *run) index() {
	for i := range r.canon {
		row := &r.canon[i]
		n := r.e.names.Normalize(row.SelfName)
		if n != "" {
			if r.canonNames[row.SelfID] == nil {
				r.canonNames[row.SelfID] = make(map[string]struct{})
			}
			r.canonNames[row.SelfID][n] = struct{}{}
		}
		k := idKey{day: row.Date.Unix(), id: row.OtherID}
		r.canonByOpp[k] = append(r.canonByOpp[k], i)
	}
	for i := range r.aux {
		row := &r.aux[i]
		if _, ok := r.auxNames[row.SelfID]; !ok {
			r.auxNames[row.SelfID] = row.SelfName
		}
		k := idKey{day: row.Date.Unix(), id: row.SelfID}
		if r.auxOpps[k] == nil {
			r.auxOpps[k] = make(map[string]struct{})
		}
		r.auxOpps[k][row.OtherID] = struct{}{}
	}
}

// join pairs rows whose day and both normalized names agree.
func (r *run) join() []proposal {
	byName := make(map[nameKey][]int)
	for i := range r.canon {
		row := &r.canon[i]
		k := nameKey{day: row.Date.Unix(), self: r.e.names.Normalize(row.SelfName), other: r.e.names.Normalize(row.OtherName)}
		if k.self == "" || k.other == "" {
			continue
		}
		byName[k] = append(byName[k], i)
	}

	var out []proposal
	for i := range r.aux {
		row := &r.aux[i]
		k := nameKey{day: row.Date.Unix(), self: r.e.names.Normalize(row.SelfName), other: r.e.names.Normalize(row.OtherName)}
		if k.self == "" || k.other == "" {
			continue
		}
		for _, j := range byName[k] {
			out = append(out, proposal{
				aux:   row.SelfID,
				canon: r.canon[j].SelfID,
				match: Match{Phase: PhaseJoin, Aux: *row, Canon: r.canon[j]},
			})
		}
	}
	return out
}

// candidates returns the distinct canon rows against canonOpp on day.
func (r *run) candidates(day time.Time, canonOpp string) []int {
	rows := r.canonByOpp[idKey{day: day.Unix(), id: canonOpp}]
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, j := range rows {
		id := r.canon[j].SelfID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, j)
	}
	return out
}

func (r *run) multi(day time.Time, auxID string) bool {
	return len(r.auxOpps[idKey{day: day.Unix(), id: auxID}]) > 1
}

// propagate proposes self ids for aux rows whose opponent is mapped.
// Rows of mapped entities are proposed too so disagreements surface.
// Same-day multi-opponent rows are left for the tournament pass.
func (r *run) propagate() []proposal {
	var out []proposal
	for i := range r.aux {
		if r.checked[i] {
			continue
		}
		row := &r.aux[i]
		if _, ok := r.e.overrides[row.SelfID]; ok {
			continue
		}
		yc, ok := r.mapping[row.OtherID]
		if !ok {
			continue
		}
		cands := r.candidates(row.Date, yc)
		if len(cands) != 1 || r.multi(row.Date, row.SelfID) || r.multi(row.Date, row.OtherID) {
			continue
		}
		r.checked[i] = true
		j := cands[0]
		out = append(out, proposal{
			aux:   row.SelfID,
			canon: r.canon[j].SelfID,
			match: Match{Phase: PhasePropagate, Aux: *row, Canon: r.canon[j]},
		})
	}
	return out
}

// tournament handles the rows propagate skipped. Per unmapped aux id it
// intersects the canon candidates of those rows. Ties fall back to name
// equality.
func (r *run) tournament() []proposal {
	type acc struct {
		cands map[string]int // canon id -> canon row
		rows  []int
	}
	byAux := make(map[string]*acc)
	var order []string
	for i := range r.aux {
		row := &r.aux[i]
		if _, ok := r.mapping[row.SelfID]; ok {
			continue
		}
		yc, ok := r.mapping[row.OtherID]
		if !ok {
			continue
		}
		cands := r.candidates(row.Date, yc)
		if len(cands) == 0 {
			continue
		}
		if len(cands) == 1 && !r.multi(row.Date, row.SelfID) && !r.multi(row.Date, row.OtherID) {
			continue
		}
		set := make(map[string]int, len(cands))
		for _, j := range cands {
			set[r.canon[j].SelfID] = j
		}
		a, ok := byAux[row.SelfID]
		if !ok {
			byAux[row.SelfID] = &acc{cands: set, rows: []int{i}}
			order = append(order, row.SelfID)
			continue
		}
		a.rows = append(a.rows, i)
		for id := range a.cands {
			if _, ok := set[id]; !ok {
				delete(a.cands, id)
			}
		}
	}

	var out []proposal
	for _, auxID := range order {
		a := byAux[auxID]
		if len(a.cands) > 1 {
			want := r.e.names.Normalize(r.auxNames[auxID])
			for id := range a.cands {
				if _, ok := r.canonNames[id][want]; !ok || want == "" {
					delete(a.cands, id)
				}
			}
		}
		if len(a.cands) != 1 {
			continue
		}
		for id, j := range a.cands {
			out = append(out, proposal{
				aux:   auxID,
				canon: id,
				match: Match{Phase: PhaseTournament, Aux: r.aux[a.rows[0]], Canon: r.canon[j]},
			})
		}
	}
	return out
}

// merge folds proposals into the mapping. Nothing is merged if any aux id
// ends up with more than one target.
func (r *run) merge(proposals []proposal) (int, error) {
	targets := make(map[string]map[string]struct{})
	var order []string
	for _, p := range proposals {
		if _, ok := r.e.overrides[p.aux]; ok {
			continue
		}
		t, ok := targets[p.aux]
		if !ok {
			t = make(map[string]struct{}, 2)
			if prev, mapped := r.mapping[p.aux]; mapped {
				t[prev] = struct{}{}
			}
			targets[p.aux] = t
			order = append(order, p.aux)
		}
		t[p.canon] = struct{}{}
		if len(r.evidence[p.aux]) < maxEvidence {
			r.evidence[p.aux] = append(r.evidence[p.aux], p.match)
		}
	}

	var conflicts []Conflict
	for _, aux := range order {
		if len(targets[aux]) > 1 {
			ids := make([]string, 0, len(targets[aux]))
			for id := range targets[aux] {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			conflicts = append(conflicts, Conflict{
				AuxID:    aux,
				AuxName:  r.auxNames[aux],
				Targets:  ids,
				Evidence: r.evidence[aux],
			})
		}
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].AuxID < conflicts[j].AuxID })
		return 0, &ConflictError{Conflicts: conflicts}
	}

	added := 0
	for _, aux := range order {
		if _, ok := r.mapping[aux]; ok {
			continue
		}
		for id := range targets[aux] {
			r.mapping[aux] = id
		}
		added++
	}
	return added, nil
}

func (r *run) strays() []string {
	var out []string
	seen := make(map[string]struct{})
	for i := range r.aux {
		id := r.aux[i].SelfID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := r.mapping[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
