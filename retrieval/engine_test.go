package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmesh/contexture/ai/mock"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
	badgerstore "github.com/opsmesh/contexture/storage/badger"
)

// stubConnections backs the engine with a fixed adjacency map.
type stubConnections struct {
	bySource map[string][]*core.Connection
}

func (s *stubConnections) ConnectionsFrom(entityID string) []*core.Connection {
	return s.bySource[entityID]
}

func (s *stubConnections) addPair(conn *core.Connection) {
	s.bySource[conn.SourceID] = append(s.bySource[conn.SourceID], conn)
	inverse := conn.Inverse()
	s.bySource[inverse.SourceID] = append(s.bySource[inverse.SourceID], inverse)
}

type testFixture struct {
	engine      *Engine
	provider    *mock.MockProvider
	entityRepo  storage.EntityRepository
	summaryRepo storage.SummaryRepository
	conns       *stubConnections
}

func newFixture(t *testing.T, opts ...Option) *testFixture {
	t.Helper()

	entityRepo, summaryRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	provider := mock.NewMockProvider()
	// Pin the query embedding so tests control rankings via entity vectors.
	provider.MockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	conns := &stubConnections{bySource: make(map[string][]*core.Connection)}
	engine, err := NewEngine(entityRepo, summaryRepo, conns, provider, opts...)
	require.NoError(t, err)

	return &testFixture{
		engine:      engine,
		provider:    provider,
		entityRepo:  entityRepo,
		summaryRepo: summaryRepo,
		conns:       conns,
	}
}

func retrievalEntity(id string, src core.Source, vector []float32, ts time.Time) *core.Entity {
	return &core.Entity{
		ID:        id,
		Source:    src,
		Title:     "title " + id,
		Content:   "content " + id,
		Timestamp: ts,
		Vector:    vector,
	}
}

func TestSearchRanksClosestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("doc_close", core.SourceDocument, []float32{1, 0}, ts),
		retrievalEntity("doc_mid", core.SourceDocument, []float32{0.6, 0.8}, ts),
		retrievalEntity("chat_far", core.SourceChat, []float32{0, 1}, ts),
	))

	hits, err := f.engine.Search(ctx, "gateway timeout", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc_close", hits[0].ID)
	assert.Equal(t, "doc_mid", hits[1].ID)
	assert.Equal(t, "2025-W11", hits[0].WeekKey)
	assert.NotEmpty(t, hits[0].Snippet)
}

func TestSearchBlendsWeeklySummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("doc_a", core.SourceDocument, []float32{0.6, 0.8}, time.Now().UTC())))
	require.NoError(t, f.summaryRepo.UpsertSummary(ctx, &core.WeeklySummary{
		WeekKey:     "2025-W11",
		SummaryText: "Gateway incident week.",
		Sources:     []core.Source{core.SourceDocument},
		Vector:      []float32{1, 0},
	}))

	hits, err := f.engine.Search(ctx, "incident", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "weekly_summary_2025-W11", hits[0].ID)
	assert.Equal(t, core.SourceSummary, hits[0].Source)
	assert.Equal(t, "2025-W11", hits[0].WeekKey)
	assert.Equal(t, "doc_a", hits[1].ID)
}

func TestSearchScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("doc_a", core.SourceDocument, []float32{0.6, 0.8}, time.Now().UTC())))
	require.NoError(t, f.summaryRepo.UpsertSummary(ctx, &core.WeeklySummary{
		WeekKey:     "2025-W11",
		SummaryText: "Gateway incident week.",
		Sources:     []core.Source{core.SourceDocument},
		Vector:      []float32{1, 0},
	}))

	hits, err := f.engine.SearchScoped(ctx, "incident", 5, ScopeEntities)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc_a", hits[0].ID)

	hits, err = f.engine.SearchScoped(ctx, "incident", 5, ScopeSummaries)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.SourceSummary, hits[0].Source)
}

func TestSearchEmptyIndex(t *testing.T) {
	f := newFixture(t)

	hits, err := f.engine.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestConnectionsDepthZeroSeedsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("chat_t1", core.SourceChat, []float32{1, 0}, ts),
		retrievalEntity("ticket_OPS-1", core.SourceTicket, []float32{0, 1}, ts),
	))
	f.conns.addPair(&core.Connection{
		SourceID: "chat_t1", SourceType: core.SourceChat,
		TargetID: "ticket_OPS-1", TargetType: core.SourceTicket,
		Kind: core.ConnSharedIncident, Confidence: 1.0, MatchReason: "shared_incident:INC001",
	})

	graph, err := f.engine.Connections(ctx, "gateway", 1, 0)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "chat_t1", graph.Nodes[0].ID)
	assert.True(t, graph.Nodes[0].Seed)
	assert.Empty(t, graph.Edges)
}

func TestConnectionsTraversesToDepth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("chat_t1", core.SourceChat, []float32{1, 0}, ts),
		retrievalEntity("ticket_OPS-1", core.SourceTicket, []float32{0, 1}, ts),
		retrievalEntity("code_change_482", core.SourceCodeChange, []float32{0, 1}, ts),
	))
	f.conns.addPair(&core.Connection{
		SourceID: "chat_t1", SourceType: core.SourceChat,
		TargetID: "ticket_OPS-1", TargetType: core.SourceTicket,
		Kind: core.ConnSharedIncident, Confidence: 1.0, MatchReason: "shared_incident:INC001",
	})
	f.conns.addPair(&core.Connection{
		SourceID: "ticket_OPS-1", SourceType: core.SourceTicket,
		TargetID: "code_change_482", TargetType: core.SourceCodeChange,
		Kind: core.ConnSharedTicket, Confidence: 1.0, MatchReason: "shared_ticket:OPS-1",
	})

	graph, err := f.engine.Connections(ctx, "gateway", 1, 1)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)

	graph, err = f.engine.Connections(ctx, "gateway", 1, 2)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 3)
	require.Len(t, graph.Edges, 2)

	depths := map[string]int{}
	for _, node := range graph.Nodes {
		depths[node.ID] = node.Depth
	}
	assert.Equal(t, 0, depths["chat_t1"])
	assert.Equal(t, 1, depths["ticket_OPS-1"])
	assert.Equal(t, 2, depths["code_change_482"])
}

func TestConnectionsMergesParallelEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("chat_t1", core.SourceChat, []float32{1, 0}, ts),
		retrievalEntity("doc_a", core.SourceDocument, []float32{0, 1}, ts),
	))
	f.conns.addPair(&core.Connection{
		SourceID: "chat_t1", SourceType: core.SourceChat,
		TargetID: "doc_a", TargetType: core.SourceDocument,
		Kind: core.ConnSharedIncident, Confidence: 1.0, MatchReason: "shared_incident:INC001",
	})
	f.conns.addPair(&core.Connection{
		SourceID: "chat_t1", SourceType: core.SourceChat,
		TargetID: "doc_a", TargetType: core.SourceDocument,
		Kind: core.ConnVectorSimilarity, Confidence: 0.82, MatchReason: "vector_similarity:0.820",
	})

	graph, err := f.engine.Connections(ctx, "gateway", 1, 1)
	require.NoError(t, err)
	require.Len(t, graph.Edges, 1)
	edge := graph.Edges[0]
	assert.Equal(t, float32(1.0), edge.Confidence)
	assert.Equal(t, core.ConnSharedIncident, edge.Kind)
	assert.ElementsMatch(t, []string{"shared_incident:INC001", "vector_similarity:0.820"}, edge.MatchReasons)
}

func TestConnectionsNodeCap(t *testing.T) {
	f := newFixture(t, WithMaxNodes(3))
	ctx := context.Background()

	ts := time.Now().UTC()
	entities := []*core.Entity{retrievalEntity("chat_seed", core.SourceChat, []float32{1, 0}, ts)}
	for _, id := range []string{"doc_a", "doc_b", "doc_c", "doc_d"} {
		entities = append(entities, retrievalEntity(id, core.SourceDocument, []float32{0, 1}, ts))
		f.conns.addPair(&core.Connection{
			SourceID: "chat_seed", SourceType: core.SourceChat,
			TargetID: id, TargetType: core.SourceDocument,
			Kind: core.ConnVectorSimilarity, Confidence: 0.8, MatchReason: "vector_similarity:0.800",
		})
	}
	require.NoError(t, f.entityRepo.UpsertEntities(ctx, entities...))

	graph, err := f.engine.Connections(ctx, "gateway", 1, 1)
	require.NoError(t, err)
	assert.Len(t, graph.Nodes, 3)
}

func TestEntityDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.entityRepo.UpsertEntities(ctx,
		retrievalEntity("ticket_OPS-1", core.SourceTicket, []float32{1, 0}, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
		retrievalEntity("chat_t1", core.SourceChat, []float32{0, 1}, time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)),
		retrievalEntity("doc_a", core.SourceDocument, []float32{0, 1}, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)),
	))
	f.conns.addPair(&core.Connection{
		SourceID: "ticket_OPS-1", SourceType: core.SourceTicket,
		TargetID: "chat_t1", TargetType: core.SourceChat,
		Kind: core.ConnSharedIncident, Confidence: 1.0, MatchReason: "shared_incident:INC001",
	})
	f.conns.addPair(&core.Connection{
		SourceID: "ticket_OPS-1", SourceType: core.SourceTicket,
		TargetID: "doc_a", TargetType: core.SourceDocument,
		Kind: core.ConnVectorSimilarity, Confidence: 0.78, MatchReason: "vector_similarity:0.780",
	})

	detail, err := f.engine.Entity(ctx, "ticket_OPS-1")
	require.NoError(t, err)
	assert.Equal(t, "ticket_OPS-1", detail.Entity.ID)

	require.Len(t, detail.ConnectionsBySource[core.SourceChat], 1)
	require.Len(t, detail.ConnectionsBySource[core.SourceDocument], 1)
	assert.Equal(t, "chat_t1", detail.ConnectionsBySource[core.SourceChat][0].ID)

	// Timeline covers the entity and its neighbors in chronological order.
	require.Len(t, detail.Timeline, 3)
	assert.Equal(t, "chat_t1", detail.Timeline[0].ID)
	assert.Equal(t, "ticket_OPS-1", detail.Timeline[1].ID)
	assert.Equal(t, "doc_a", detail.Timeline[2].ID)
}

func TestEntityNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Entity(context.Background(), "chat_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
