package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
)

func TestSummaryRepository_UpsertByWeekKey(t *testing.T) {
	_, summaryRepo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	summary := &core.WeeklySummary{
		WeekKey:     "2025-W11",
		EntityIDs:   []string{"chat_t1", "ticket_OPS-1"},
		SummaryText: "Payment gateway incident dominated the week.",
		Sources:     []core.Source{core.SourceChat, core.SourceTicket},
		Vector:      []float32{0.6, 0.8},
	}
	require.NoError(t, summaryRepo.UpsertSummary(ctx, summary))
	firstInserted := summary.InsertedAt

	// Re-aggregating the same week replaces the entry, not adds one.
	revised := &core.WeeklySummary{
		WeekKey:     "2025-W11",
		EntityIDs:   []string{"chat_t1", "ticket_OPS-1", "doc_postmortem"},
		SummaryText: "Payment gateway incident and its postmortem.",
		Sources:     []core.Source{core.SourceChat, core.SourceTicket, core.SourceDocument},
	}
	require.NoError(t, summaryRepo.UpsertSummary(ctx, revised))

	all, err := summaryRepo.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].EntityIDs, 3)
	assert.Equal(t, firstInserted, all[0].InsertedAt)
}

func TestSummaryRepository_GetMissing(t *testing.T) {
	_, summaryRepo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = summaryRepo.GetSummary(context.Background(), "2025-W01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSummaryRepository_FindSimilar(t *testing.T) {
	_, summaryRepo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	require.NoError(t, summaryRepo.UpsertSummary(ctx, &core.WeeklySummary{
		WeekKey: "2025-W10", SummaryText: "deploys", Vector: []float32{1, 0},
	}))
	require.NoError(t, summaryRepo.UpsertSummary(ctx, &core.WeeklySummary{
		WeekKey: "2025-W11", SummaryText: "incidents", Vector: []float32{0, 1},
	}))

	matches, err := summaryRepo.FindSimilar(ctx, []float32{1, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "2025-W10", matches[0].ID)
}
