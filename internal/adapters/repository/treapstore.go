package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/segmentio/fasthash/jody"

	"github.com/okian/fightrank/internal/domain/types"
	"github.com/okian/fightrank/pkg/logger"
	"github.com/okian/fightrank/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: rating DESC, then entity id ASC. "less" means ranks earlier so
// the in-order walk is the ranking from best to worst. Priorities are a
// hash of the id, which keeps the tree balanced whatever the ratings are.

// ratingScale controls fixed-point scaling from float64. Ratings live on a
// logit scale, nine decimals are plenty.
const ratingScale = 1_000_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	switch {
	case math.IsNaN(x), math.IsInf(x, -1):
		return ratingFP(math.MinInt64)
	case math.IsInf(x, 1):
		return ratingFP(math.MaxInt64)
	}
	scaled := x * ratingScale
	if scaled >= float64(math.MaxInt64) {
		return ratingFP(math.MaxInt64)
	}
	if scaled <= float64(math.MinInt64) {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(scaled))
}

type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, r ratingFP) *node {
	if n == nil {
		return &node{id: id, rating: r, prio: jody.HashString64(id), size: 1}
	}
	if less(r, id, n.rating, n.id) {
		n.left = insert(n.left, id, r)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, r)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, r ratingFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case r == n.rating && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, r)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, r)
		}
	case less(r, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, r)
	default:
		n.right = deleteNode(n.right, id, r)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes rate strictly higher than r.
func countAbove(n *node, r ratingFP) int {
	c := 0
	for n != nil {
		if n.rating > r {
			c += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collectTopN appends up to limit ids in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

type record struct {
	rating   ratingFP
	standing types.Standing
}

// TreapStore is a Store guarded by a single RWMutex.
type TreapStore struct {
	mu     sync.RWMutex
	root   *node
	byID   map[string]record
	logger logger.Logger
}

// NewTreapStore constructs an empty store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:   make(map[string]record),
		logger: logger.NamedOrNop("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert implements Store.
func (s *TreapStore) Upsert(ctx context.Context, st types.Standing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st.EntityID == "" {
		return ErrInvalidID
	}
	start := time.Now()

	s.mu.Lock()
	s.put(st)
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRankedEntities(n)
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// ReplaceAll implements Store. Nothing changes when a standing has an empty id.
func (s *TreapStore) ReplaceAll(ctx context.Context, standings []types.Standing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range standings {
		if standings[i].EntityID == "" {
			return fmt.Errorf("standing %d: %w", i, ErrInvalidID)
		}
	}
	start := time.Now()

	s.mu.Lock()
	s.root = nil
	s.byID = make(map[string]record, len(standings))
	for i := range standings {
		s.put(standings[i])
	}
	n := len(s.byID)
	s.mu.Unlock()

	s.logger.Info(ctx, "ranking replaced", logger.Int("entities", n))
	metrics.UpdateRankedEntities(n)
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// put must be called with the write lock held.
func (s *TreapStore) put(st types.Standing) {
	if old, ok := s.byID[st.EntityID]; ok {
		s.root = deleteNode(s.root, st.EntityID, old.rating)
	}
	r := toFixedPoint(st.Rating)
	s.root = insert(s.root, st.EntityID, r)
	s.byID[st.EntityID] = record{rating: r, standing: st}
}

// Rank returns the entry of one entity in O(log n).
func (s *TreapStore) Rank(ctx context.Context, entityID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[entityID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: 1 + countAbove(s.root, rec.rating), Standing: rec.standing}, nil
}

// TopN returns the best n entries. Equal ratings share a rank.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &ids)

	out := make([]Entry, len(ids))
	var prev ratingFP
	for i, id := range ids {
		rec := s.byID[id]
		rank := i + 1
		if i > 0 && rec.rating == prev {
			rank = out[i-1].Rank
		}
		out[i] = Entry{Rank: rank, Standing: rec.standing}
		prev = rec.rating
	}
	return out, nil
}

// Count returns the number of ranked entities.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
