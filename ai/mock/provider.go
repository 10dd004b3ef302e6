package mock

import "github.com/opsmesh/contexture/ai"

// MockProvider is a test double for ai.AIProvider, aggregating the mock
// embedder and summarizer.
type MockProvider struct {
	MockEmbedder   *MockEmbedder
	MockSummarizer *MockSummarizer
}

var _ ai.AIProvider = (*MockProvider)(nil)

// NewMockProvider creates a provider with default deterministic mocks.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		MockEmbedder:   NewMockEmbedder(),
		MockSummarizer: NewMockSummarizer(),
	}
}

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.MockEmbedder
}

// Summarizer returns the mock summarization service.
func (p *MockProvider) Summarizer() ai.Summarizer {
	return p.MockSummarizer
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}
