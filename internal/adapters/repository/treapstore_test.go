package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/fightrank/internal/domain/types"
)

func standing(id string, r float64) types.Standing {
	return types.Standing{EntityID: id, Rating: r, Contests: 1}
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Upsert(ctx, standing("jones", 1.5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, "jones")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Rating != 1.5 {
		t.Errorf("expected rank 1 rating 1.5, got %d %f", entry.Rank, entry.Rating)
	}

	if _, err := store.Rank(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if err := store.Upsert(ctx, standing("", 1)); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestTreapStore_UpsertMovesEntity(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	for id, r := range map[string]float64{"a": 3, "b": 2, "c": 1} {
		if err := store.Upsert(ctx, standing(id, r)); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Upsert(ctx, standing("c", 5)); err != nil {
		t.Fatal(err)
	}
	if store.Count(ctx) != 3 {
		t.Fatalf("upsert must not duplicate, count %d", store.Count(ctx))
	}
	top, _ := store.TopN(ctx, 3)
	got := []string{top[0].EntityID, top[1].EntityID, top[2].EntityID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestTreapStore_TiesShareRank(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	err := store.ReplaceAll(ctx, []types.Standing{
		standing("d", 0.5), standing("b", 1), standing("a", 1), standing("c", 2),
	})
	if err != nil {
		t.Fatal(err)
	}

	top, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(top))
	}
	wantIDs := []string{"c", "a", "b", "d"}
	wantRanks := []int{1, 2, 2, 4}
	for i := range top {
		if top[i].EntityID != wantIDs[i] || top[i].Rank != wantRanks[i] {
			t.Errorf("position %d: got %s/%d, want %s/%d", i, top[i].EntityID, top[i].Rank, wantIDs[i], wantRanks[i])
		}
	}

	for i, id := range wantIDs {
		e, err := store.Rank(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if e.Rank != wantRanks[i] {
			t.Errorf("Rank(%s) = %d, TopN says %d", id, e.Rank, wantRanks[i])
		}
	}
}

func TestTreapStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	_ = store.Upsert(ctx, standing("old", 9))

	if err := store.ReplaceAll(ctx, []types.Standing{standing("x", 1), standing("", 2)}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := store.Rank(ctx, "old"); err != nil {
		t.Fatalf("failed replace must keep the previous ranking: %v", err)
	}

	if err := store.ReplaceAll(ctx, []types.Standing{standing("x", 1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Rank(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old entity should be gone, got %v", err)
	}
	if store.Count(ctx) != 1 {
		t.Errorf("expected 1 entity, got %d", store.Count(ctx))
	}
}

func TestTreapStore_NonFiniteRatings(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	_ = store.ReplaceAll(ctx, []types.Standing{
		standing("nan", math.NaN()), standing("low", -3), standing("inf", math.Inf(1)),
	})

	top, _ := store.TopN(ctx, 3)
	if top[0].EntityID != "inf" || top[2].EntityID != "nan" {
		t.Errorf("unexpected order %s %s %s", top[0].EntityID, top[1].EntityID, top[2].EntityID)
	}
}

func TestTreapStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewTreapStore()
	if err := store.Upsert(ctx, standing("a", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := store.TopN(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTreapStore_MatchesSortedReference(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	rng := rand.New(rand.NewSource(7))

	ref := make(map[string]float64)
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("e%03d", rng.Intn(500))
		r := float64(rng.Intn(40)) / 8
		ref[id] = r
		if err := store.Upsert(ctx, standing(id, r)); err != nil {
			t.Fatal(err)
		}
	}

	ids := make([]string, 0, len(ref))
	for id := range ref {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ref[ids[i]] != ref[ids[j]] {
			return ref[ids[i]] > ref[ids[j]]
		}
		return ids[i] < ids[j]
	})

	top, err := store.TopN(ctx, len(ids))
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != len(ids) {
		t.Fatalf("expected %d entries, got %d", len(ids), len(top))
	}
	for i := range ids {
		if top[i].EntityID != ids[i] {
			t.Fatalf("position %d: got %s want %s", i, top[i].EntityID, ids[i])
		}
		e, _ := store.Rank(ctx, ids[i])
		if e.Rank != top[i].Rank {
			t.Fatalf("rank mismatch for %s: %d vs %d", ids[i], e.Rank, top[i].Rank)
		}
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = store.Upsert(ctx, standing(fmt.Sprintf("w%d-%d", w, i%50), float64(i)))
				_, _ = store.TopN(ctx, 5)
			}
		}(w)
	}
	wg.Wait()

	if store.Count(ctx) != 400 {
		t.Errorf("expected 400 entities, got %d", store.Count(ctx))
	}
}
