package storage

import (
	"context"

	"github.com/opsmesh/contexture/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// EntityRepository provides operations for managing canonical entities.
// Entities are keyed by their globally unique string ID; writing an existing
// ID replaces the stored record in place.
type EntityRepository interface {
	Repository

	// UpsertEntities writes one or more entities, replacing existing records
	// with the same ID. Sets InsertedAt on first write and UpdatedAt always.
	UpsertEntities(ctx context.Context, entities ...*core.Entity) error

	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id string) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing IDs).
	GetEntities(ctx context.Context, ids ...string) ([]*core.Entity, error)

	// ListEntities returns every stored entity. Used by full rebuild runs.
	ListEntities(ctx context.Context) ([]*core.Entity, error)

	// DeleteEntities removes entities by ID.
	// Returns ErrNotFound if any entity doesn't exist.
	DeleteEntities(ctx context.Context, ids ...string) error

	// FindSimilar finds entities whose vectors are similar to the given vector.
	// Returns matches with cosine similarity >= minSimilarity, up to limit,
	// ordered by score descending with ties broken by most recent timestamp.
	// IDs in exclude are skipped.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, exclude map[string]bool) ([]core.SimilarityMatch, error)
}

// SummaryRepository provides operations for weekly summary entries.
// Summaries form the second logical vector collection; they are upserted by
// week key on every aggregation run.
type SummaryRepository interface {
	Repository

	// UpsertSummary writes a summary, replacing any existing entry for the
	// same week key.
	UpsertSummary(ctx context.Context, summary *core.WeeklySummary) error

	// GetSummary retrieves a summary by week key.
	// Returns ErrNotFound if no summary exists for that week.
	GetSummary(ctx context.Context, weekKey string) (*core.WeeklySummary, error)

	// ListSummaries returns every stored weekly summary.
	ListSummaries(ctx context.Context) ([]*core.WeeklySummary, error)

	// FindSimilar finds summaries whose vectors are similar to the given
	// vector, same contract as EntityRepository.FindSimilar.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error)
}

// ConnectionRepository provides operations for the cross-reference graph.
// The row set is replaced wholesale by rebuild runs; readers must never
// observe a partially written generation.
type ConnectionRepository interface {
	Repository

	// ReplaceAll atomically replaces the full connection set with conns.
	// Rows are written into a fresh generation which becomes visible in a
	// single pointer flip; the previous generation is then discarded.
	ReplaceAll(ctx context.Context, conns []*core.Connection) error

	// ConnectionsFrom returns all outgoing connections of an entity, ordered
	// by confidence descending. An unknown entity yields an empty slice.
	ConnectionsFrom(ctx context.Context, entityID string) ([]*core.Connection, error)

	// ListConnections returns every connection row of the current generation.
	ListConnections(ctx context.Context) ([]*core.Connection, error)
}
