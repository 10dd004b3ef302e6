// Package openai provides ai.Embedder and ai.Summarizer implementations
// backed by OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM) via
// langchaingo.
package openai
