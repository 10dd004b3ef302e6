package mock

import (
	"context"
	"fmt"

	"github.com/opsmesh/contexture/ai"
)

// MockSummarizer is a test double for ai.Summarizer.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, returns a deterministic canned summary.
	SummarizeFunc func(ctx context.Context, req ai.SummaryRequest) (string, error)

	callCount int
}

// NewMockSummarizer creates a mock summarizer with default canned behavior.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize returns a deterministic summary mentioning the week and item count.
func (m *MockSummarizer) Summarize(ctx context.Context, req ai.SummaryRequest) (string, error) {
	m.callCount++

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, req)
	}

	return fmt.Sprintf("Summary of %s covering %d items.", req.WeekKey, len(req.Items)), nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	return m.callCount
}
