package weekly

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmesh/contexture/ai"
	"github.com/opsmesh/contexture/ai/mock"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
	badgerstore "github.com/opsmesh/contexture/storage/badger"
)

func newTestAggregator(t *testing.T) (*Aggregator, *mock.MockProvider, storage.EntityRepository, storage.SummaryRepository) {
	t.Helper()

	entityRepo, summaryRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)

	provider := mock.NewMockProvider()
	aggregator, err := NewAggregator(entityRepo, summaryRepo, provider)
	require.NoError(t, err)

	t.Cleanup(func() { backend.Close() })
	return aggregator, provider, entityRepo, summaryRepo
}

func weekEntity(id string, src core.Source, ts time.Time) *core.Entity {
	return &core.Entity{
		ID:        id,
		Source:    src,
		Title:     "title " + id,
		Content:   "content " + id,
		Author:    "alice",
		Timestamp: ts,
	}
}

func TestRunBucketsEntitiesByISOWeek(t *testing.T) {
	aggregator, _, entityRepo, summaryRepo := newTestAggregator(t)
	ctx := context.Background()

	// Monday W11 and Sunday W11 share a week; the next Monday starts W12.
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		weekEntity("chat_t1", core.SourceChat, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)),
		weekEntity("ticket_OPS-1", core.SourceTicket, time.Date(2025, 3, 16, 23, 0, 0, 0, time.UTC)),
		weekEntity("doc_d1", core.SourceDocument, time.Date(2025, 3, 17, 8, 0, 0, 0, time.UTC)),
	))

	stats, err := aggregator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Weeks)
	assert.Equal(t, 3, stats.Entities)
	assert.Zero(t, stats.Placeholders)

	w11, err := summaryRepo.GetSummary(ctx, "2025-W11")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chat_t1", "ticket_OPS-1"}, w11.EntityIDs)
	assert.Equal(t, []core.Source{core.SourceChat, core.SourceTicket}, w11.Sources)
	assert.NotEmpty(t, w11.SummaryText)
	assert.NotEmpty(t, w11.Vector)

	w12, err := summaryRepo.GetSummary(ctx, "2025-W12")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_d1"}, w12.EntityIDs)
}

func TestRunEveryEntityInExactlyOneWeek(t *testing.T) {
	aggregator, _, entityRepo, summaryRepo := newTestAggregator(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var want []string
	for i := 0; i < 40; i++ {
		entity := weekEntity(core.EntityID(core.SourceChat, fmt.Sprintf("t%d", i)), core.SourceChat, base.AddDate(0, 0, i*3))
		want = append(want, entity.ID)
		require.NoError(t, entityRepo.UpsertEntities(ctx, entity))
	}

	_, err := aggregator.Run(ctx)
	require.NoError(t, err)

	summaries, err := summaryRepo.ListSummaries(ctx)
	require.NoError(t, err)

	var got []string
	for _, summary := range summaries {
		got = append(got, summary.EntityIDs...)
	}
	assert.ElementsMatch(t, want, got)
}

func TestRunPlaceholderOnSummarizerFailure(t *testing.T) {
	aggregator, provider, entityRepo, summaryRepo := newTestAggregator(t)
	provider.MockSummarizer.SummarizeFunc = func(ctx context.Context, req ai.SummaryRequest) (string, error) {
		return "", errors.New("model unavailable")
	}

	ctx := context.Background()
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		weekEntity("chat_t1", core.SourceChat, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)),
		weekEntity("ticket_OPS-1", core.SourceTicket, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)),
	))

	stats, err := aggregator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Placeholders)

	summary, err := summaryRepo.GetSummary(ctx, "2025-W11")
	require.NoError(t, err)
	assert.Equal(t, "Weekly summary for 2025-W11: 2 entities from chat, ticket.", summary.SummaryText)
	assert.Equal(t, []core.Source{core.SourceChat, core.SourceTicket}, summary.Sources)
}

func TestRunRetriesTransientEmbeddingFailure(t *testing.T) {
	entityRepo, summaryRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	provider := mock.NewMockProvider()
	calls := 0
	provider.MockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("embedding service unavailable")
		}
		return []float32{1, 0}, nil
	}

	aggregator, err := NewAggregator(entityRepo, summaryRepo, provider, WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		weekEntity("chat_t1", core.SourceChat, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))))

	_, err = aggregator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	summary, err := summaryRepo.GetSummary(ctx, "2025-W11")
	require.NoError(t, err)
	assert.NotEmpty(t, summary.Vector, "vector stored once the retry succeeds")
}

func TestRunIdempotentPerWeek(t *testing.T) {
	aggregator, _, entityRepo, summaryRepo := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, entityRepo.UpsertEntities(ctx,
		weekEntity("chat_t1", core.SourceChat, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))))

	_, err := aggregator.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, entityRepo.UpsertEntities(ctx,
		weekEntity("doc_d1", core.SourceDocument, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))))

	_, err = aggregator.Run(ctx)
	require.NoError(t, err)

	summaries, err := summaryRepo.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.ElementsMatch(t, []string{"chat_t1", "doc_d1"}, summaries[0].EntityIDs)
}

func TestRunCancelledBetweenWeeks(t *testing.T) {
	aggregator, _, entityRepo, _ := newTestAggregator(t)

	ctx := context.Background()
	require.NoError(t, entityRepo.UpsertEntities(ctx,
		weekEntity("chat_t1", core.SourceChat, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := aggregator.Run(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
