package ai

import (
	"context"
	"time"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use, deterministic for a
// given text, and must always return vectors of the configured dimension.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer turns one week's worth of entities into prose. It is the boundary
// to the external text-generation collaborator; implementations must be
// thread-safe. Callers apply their own timeout and fall back to a placeholder
// summary on error.
type Summarizer interface {
	// Summarize produces a short prose summary of the week's activity.
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// SummaryRequest carries the inputs for one weekly summary.
type SummaryRequest struct {
	WeekKey string
	// Items holds per-entity lines grouped for the prompt: source, title.
	Items []SummaryItem
}

// SummaryItem is one entity's contribution to a weekly summary prompt.
type SummaryItem struct {
	Source    string
	Title     string
	Author    string
	Timestamp time.Time
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and Summarizer
// instances, ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Summarizer returns the weekly summarization service.
	// The returned Summarizer is safe for concurrent use.
	Summarizer() Summarizer

	// Close releases resources held by the provider and its services.
	Close() error
}
