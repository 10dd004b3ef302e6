package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
)

func newTestEntity(id string, ts time.Time) *core.Entity {
	return &core.Entity{
		ID:        id,
		Source:    core.SourceTicket,
		Type:      "ticket",
		Title:     "Ticket " + id,
		Content:   "content of " + id,
		Author:    "alice",
		Timestamp: ts,
	}
}

func TestEntityRepository_UpsertAndGet(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	entity := newTestEntity("ticket_OPS-1", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	entity.Refs = []core.Ref{{Kind: core.RefIncident, Key: "INC100"}}
	entity.Vector = []float32{0.6, 0.8}

	require.NoError(t, entityRepo.UpsertEntities(ctx, entity))
	require.False(t, entity.InsertedAt.IsZero())

	got, err := entityRepo.GetEntity(ctx, "ticket_OPS-1")
	require.NoError(t, err)
	assert.Equal(t, entity.Title, got.Title)
	assert.Equal(t, entity.Refs, got.Refs)
	assert.Equal(t, entity.Vector, got.Vector)
	assert.Equal(t, core.SourceTicket, got.Source)
}

func TestEntityRepository_GetMissing(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = entityRepo.GetEntity(context.Background(), "chat_nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEntityRepository_UpsertReplacesInPlace(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	entity := newTestEntity("chat_t1", time.Now().UTC())
	require.NoError(t, entityRepo.UpsertEntities(ctx, entity))
	firstInserted := entity.InsertedAt

	updated := newTestEntity("chat_t1", time.Now().UTC())
	updated.Content = "revised content"
	require.NoError(t, entityRepo.UpsertEntities(ctx, updated))

	all, err := entityRepo.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "revised content", all[0].Content)
	assert.Equal(t, firstInserted, all[0].InsertedAt)
	assert.True(t, all[0].UpdatedAt.Compare(firstInserted) >= 0)
}

func TestEntityRepository_UpsertLargeBatch(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	total := 2*writeBatchSize + 17
	entities := make([]*core.Entity, total)
	for i := range entities {
		entities[i] = newTestEntity(fmt.Sprintf("doc_big%04d", i), time.Now().UTC())
		entities[i].Vector = []float32{1, 0}
	}

	require.NoError(t, entityRepo.UpsertEntities(ctx, entities...))

	all, err := entityRepo.ListEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, total)
}

func TestEntityRepository_GetEntitiesSkipsMissing(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		newTestEntity("ticket_A-1", time.Now().UTC()),
		newTestEntity("ticket_A-2", time.Now().UTC()),
	))

	got, err := entityRepo.GetEntities(ctx, "ticket_A-1", "ticket_missing", "ticket_A-2")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEntityRepository_Delete(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, entityRepo.UpsertEntities(ctx, newTestEntity("chat_d1", time.Now().UTC())))
	require.NoError(t, entityRepo.DeleteEntities(ctx, "chat_d1"))

	_, err = entityRepo.GetEntity(ctx, "chat_d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = entityRepo.DeleteEntities(ctx, "chat_d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEntityRepository_FindSimilar(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	near := newTestEntity("doc_near", time.Now().UTC())
	near.Vector = []float32{1, 0}
	mid := newTestEntity("doc_mid", time.Now().UTC())
	mid.Vector = []float32{0.6, 0.8}
	far := newTestEntity("doc_far", time.Now().UTC())
	far.Vector = []float32{0, 1}
	noVec := newTestEntity("doc_novec", time.Now().UTC())

	require.NoError(t, entityRepo.UpsertEntities(ctx, near, mid, far, noVec))

	matches, err := entityRepo.FindSimilar(ctx, []float32{1, 0}, 0.5, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc_near", matches[0].ID)
	assert.Equal(t, "doc_mid", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)

	// Excluded IDs never surface, whatever their score.
	matches, err = entityRepo.FindSimilar(ctx, []float32{1, 0}, 0.5, 10, map[string]bool{"doc_near": true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc_mid", matches[0].ID)
}

func TestEntityRepository_FindSimilarTieBreaksOnRecency(t *testing.T) {
	entityRepo, _, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	older := newTestEntity("chat_older", time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	older.Vector = []float32{1, 0}
	newer := newTestEntity("chat_newer", time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC))
	newer.Vector = []float32{1, 0}

	require.NoError(t, entityRepo.UpsertEntities(ctx, older, newer))

	matches, err := entityRepo.FindSimilar(ctx, []float32{1, 0}, 0.9, 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "chat_newer", matches[0].ID)
	assert.Equal(t, "chat_older", matches[1].ID)
}
