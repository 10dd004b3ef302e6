package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
	badgerstore "github.com/opsmesh/contexture/storage/badger"
)

func newTestBuilder(t *testing.T, opts ...Option) (*Builder, storage.EntityRepository) {
	t.Helper()

	entityRepo, _, connRepo, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)

	builder, err := NewBuilder(entityRepo, connRepo, append([]Option{WithWorkers(2)}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		builder.Release()
		backend.Close()
	})
	return builder, entityRepo
}

func graphEntity(id string, src core.Source, refs []core.Ref, vector []float32) *core.Entity {
	return &core.Entity{
		ID:        id,
		Source:    src,
		Type:      string(src),
		Title:     "title " + id,
		Content:   "content " + id,
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Refs:      refs,
		Vector:    vector,
	}
}

func findEdge(conns []*core.Connection, targetID string, kind core.ConnectionKind) *core.Connection {
	for _, conn := range conns {
		if conn.TargetID == targetID && conn.Kind == kind {
			return conn
		}
	}
	return nil
}

func TestRebuildExactMatchEdges(t *testing.T) {
	builder, entityRepo := newTestBuilder(t)
	ctx := context.Background()

	incRef := []core.Ref{{Kind: core.RefIncident, Key: "INC001"}}
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("chat_t1", core.SourceChat, incRef, nil),
		graphEntity("ticket_OPS-1", core.SourceTicket, incRef, nil),
		graphEntity("code_change_482", core.SourceCodeChange, incRef, nil),
		graphEntity("doc_unrelated", core.SourceDocument, nil, nil),
	))

	stats, err := builder.Rebuild(ctx)
	require.NoError(t, err)
	// Three members sharing INC001 produce three pairs, six directed edges.
	assert.Equal(t, 6, stats.ExactEdges)
	assert.Zero(t, stats.SimilarityEdges)

	conns := builder.ConnectionsFrom("chat_t1")
	require.Len(t, conns, 2)
	edge := findEdge(conns, "ticket_OPS-1", core.ConnSharedIncident)
	require.NotNil(t, edge)
	assert.Equal(t, float32(1.0), edge.Confidence)
	assert.Equal(t, "shared_incident:INC001", edge.MatchReason)
	assert.Equal(t, core.SourceChat, edge.SourceType)
	assert.Equal(t, core.SourceTicket, edge.TargetType)

	// Inverse edge exists with equal confidence.
	inverse := findEdge(builder.ConnectionsFrom("ticket_OPS-1"), "chat_t1", core.ConnSharedIncident)
	require.NotNil(t, inverse)
	assert.Equal(t, edge.Confidence, inverse.Confidence)
	assert.Equal(t, edge.MatchReason, inverse.MatchReason)

	assert.Empty(t, builder.ConnectionsFrom("doc_unrelated"))
}

func TestRebuildSimilarityEdges(t *testing.T) {
	builder, entityRepo := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("doc_a", core.SourceDocument, nil, []float32{1, 0}),
		graphEntity("doc_b", core.SourceDocument, nil, []float32{0.994, 0.109}),
		graphEntity("doc_far", core.SourceDocument, nil, []float32{0, 1}),
	))

	stats, err := builder.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SimilarityEdges)

	edge := findEdge(builder.ConnectionsFrom("doc_a"), "doc_b", core.ConnVectorSimilarity)
	require.NotNil(t, edge)
	assert.InDelta(t, 0.994, edge.Confidence, 0.01)
	assert.Contains(t, edge.MatchReason, "vector_similarity:")

	inverse := findEdge(builder.ConnectionsFrom("doc_b"), "doc_a", core.ConnVectorSimilarity)
	require.NotNil(t, inverse)

	assert.Empty(t, builder.ConnectionsFrom("doc_far"))
}

func TestRebuildExactPartnersExcludedFromSimilarity(t *testing.T) {
	builder, entityRepo := newTestBuilder(t)
	ctx := context.Background()

	incRef := []core.Ref{{Kind: core.RefIncident, Key: "INC002"}}
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("chat_t1", core.SourceChat, incRef, []float32{1, 0}),
		graphEntity("ticket_OPS-2", core.SourceTicket, incRef, []float32{1, 0}),
	))

	_, err := builder.Rebuild(ctx)
	require.NoError(t, err)

	conns := builder.ConnectionsFrom("chat_t1")
	require.Len(t, conns, 1)
	assert.Equal(t, core.ConnSharedIncident, conns[0].Kind)
}

func TestRebuildThresholdFiltersWeakMatches(t *testing.T) {
	builder, entityRepo := newTestBuilder(t, WithSimilarityThreshold(0.95))
	ctx := context.Background()

	// Cosine 0.6 and 0.994 against doc_a; only the latter clears 0.95.
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("doc_a", core.SourceDocument, nil, []float32{1, 0}),
		graphEntity("doc_b", core.SourceDocument, nil, []float32{0.994, 0.109}),
		graphEntity("doc_c", core.SourceDocument, nil, []float32{0.6, 0.8}),
	))

	_, err := builder.Rebuild(ctx)
	require.NoError(t, err)

	conns := builder.ConnectionsFrom("doc_a")
	require.Len(t, conns, 1)
	assert.Equal(t, "doc_b", conns[0].TargetID)
}

func TestRebuildPrunesStaleEdges(t *testing.T) {
	builder, entityRepo := newTestBuilder(t)
	ctx := context.Background()

	incRef := []core.Ref{{Kind: core.RefIncident, Key: "INC003"}}
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("chat_t1", core.SourceChat, incRef, nil),
		graphEntity("ticket_OPS-3", core.SourceTicket, incRef, nil),
	))

	stats, err := builder.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEdges)

	require.NoError(t, entityRepo.DeleteEntities(ctx, "ticket_OPS-3"))

	stats, err = builder.Rebuild(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEdges)
	assert.Equal(t, 2, stats.PrunedEdges)
	assert.Empty(t, builder.ConnectionsFrom("chat_t1"))
}

func TestRebuildCancelledLeavesSnapshotIntact(t *testing.T) {
	builder, entityRepo := newTestBuilder(t)
	ctx := context.Background()

	incRef := []core.Ref{{Kind: core.RefIncident, Key: "INC004"}}
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("chat_t1", core.SourceChat, incRef, []float32{1, 0}),
		graphEntity("ticket_OPS-4", core.SourceTicket, incRef, []float32{0, 1}),
	))

	_, err := builder.Rebuild(ctx)
	require.NoError(t, err)
	before := builder.Snapshot()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = builder.Rebuild(cancelled)
	require.Error(t, err)
	assert.Same(t, before, builder.Snapshot())
}

func TestLoadHydratesSnapshotFromStorage(t *testing.T) {
	entityRepo, _, connRepo, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	incRef := []core.Ref{{Kind: core.RefIncident, Key: "INC005"}}
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		graphEntity("chat_t1", core.SourceChat, incRef, nil),
		graphEntity("ticket_OPS-5", core.SourceTicket, incRef, nil),
	))

	first, err := NewBuilder(entityRepo, connRepo)
	require.NoError(t, err)
	_, err = first.Rebuild(ctx)
	require.NoError(t, err)
	first.Release()

	// A fresh builder starts empty until it loads the persisted graph.
	second, err := NewBuilder(entityRepo, connRepo)
	require.NoError(t, err)
	defer second.Release()

	assert.Zero(t, second.Snapshot().Size())
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, 2, second.Snapshot().Size())
	assert.Len(t, second.ConnectionsFrom("chat_t1"), 1)
}

func TestSnapshotOrdersByConfidence(t *testing.T) {
	snapshot := newSnapshot([]*core.Connection{
		{SourceID: "a", TargetID: "b", Kind: core.ConnVectorSimilarity, Confidence: 0.75},
		{SourceID: "a", TargetID: "c", Kind: core.ConnSharedTicket, Confidence: 1.0},
		{SourceID: "a", TargetID: "d", Kind: core.ConnVectorSimilarity, Confidence: 0.9},
	})

	conns := snapshot.ConnectionsFrom("a")
	require.Len(t, conns, 3)
	assert.Equal(t, "c", conns[0].TargetID)
	assert.Equal(t, "d", conns[1].TargetID)
	assert.Equal(t, "b", conns[2].TargetID)
	assert.Nil(t, snapshot.ConnectionsFrom("unknown"))
}
