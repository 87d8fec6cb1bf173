// Package repository keeps the power ranking built from the final ratings
// of the latest fit.
package repository

import (
	"context"

	"github.com/okian/fightrank/internal/domain/types"
)

// Entry is a ranked standing.
type Entry = types.Entry

// Store provides read/write access to the ranking.
type Store interface {
	// Upsert sets the standing of one entity, replacing any previous one.
	Upsert(ctx context.Context, s types.Standing) error

	// ReplaceAll swaps the whole ranking in one step.
	ReplaceAll(ctx context.Context, standings []types.Standing) error

	// Rank returns the entry of one entity or ErrNotFound.
	Rank(ctx context.Context, entityID string) (Entry, error)

	// TopN returns the best n entries, rating desc then id asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked entities.
	Count(ctx context.Context) int
}
