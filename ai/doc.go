// Package ai defines the AI service boundary: text embedding for semantic
// search and weekly summarization. Implementations live in subpackages
// (openai for OpenAI-compatible APIs, mock for tests) and are injected into
// the ingestion, graph, and retrieval layers; there is no ambient global
// model instance.
package ai
