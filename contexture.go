// Copyright 2025 Opsmesh Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package contexture assembles the platform: storage, AI services, ingestion,
// the connection graph, weekly summaries, and retrieval behind one handle.
package contexture

import (
	"log/slog"

	"github.com/opsmesh/contexture/ai"
	"github.com/opsmesh/contexture/ai/mock"
	"github.com/opsmesh/contexture/ai/openai"
	"github.com/opsmesh/contexture/graph"
	"github.com/opsmesh/contexture/ingestion"
	"github.com/opsmesh/contexture/retrieval"
	"github.com/opsmesh/contexture/storage"
	"github.com/opsmesh/contexture/storage/badger"
	"github.com/opsmesh/contexture/weekly"
)

// Platform owns the storage backend, the AI provider, and the repositories,
// and hands out the processing components built on them.
type Platform struct {
	backend        *badger.Backend
	entityRepo     storage.EntityRepository
	summaryRepo    storage.SummaryRepository
	connectionRepo storage.ConnectionRepository
	provider       ai.AIProvider
	logger         *slog.Logger
}

// PlatformOption configures a Platform.
type PlatformOption func(*platformOptions)

type platformOptions struct {
	aiConfig *ai.Config
	inMemory bool
	mockAI   bool
}

// WithAIConfig overrides the AI service configuration.
func WithAIConfig(config *ai.Config) PlatformOption {
	return func(o *platformOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithInMemoryStorage keeps all data in memory. Intended for tests and
// experiments.
func WithInMemoryStorage() PlatformOption {
	return func(o *platformOptions) {
		o.inMemory = true
	}
}

// WithMockAI swaps the AI provider for deterministic test doubles.
func WithMockAI() PlatformOption {
	return func(o *platformOptions) {
		o.mockAI = true
	}
}

// NewPlatform opens the database at filePath and wires up the repositories
// and AI services.
func NewPlatform(filePath string, opts ...PlatformOption) (*Platform, error) {
	options := &platformOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	var provider ai.AIProvider
	if options.mockAI {
		provider = mock.NewMockProvider()
	} else {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Platform{
		backend:        backend,
		entityRepo:     badger.NewEntityRepository(backend),
		summaryRepo:    badger.NewSummaryRepository(backend),
		connectionRepo: badger.NewConnectionRepository(backend),
		provider:       provider,
		logger:         slog.Default(),
	}, nil
}

// Close releases the AI provider and the storage backend.
func (p *Platform) Close() error {
	if err := p.provider.Close(); err != nil {
		p.logger.Error("error closing AI provider", "err", err)
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// EntityRepository returns the entity store.
func (p *Platform) EntityRepository() storage.EntityRepository {
	return p.entityRepo
}

// SummaryRepository returns the weekly summary store.
func (p *Platform) SummaryRepository() storage.SummaryRepository {
	return p.summaryRepo
}

// ConnectionRepository returns the connection graph store.
func (p *Platform) ConnectionRepository() storage.ConnectionRepository {
	return p.connectionRepo
}

// Provider returns the AI services.
func (p *Platform) Provider() ai.AIProvider {
	return p.provider
}

// NewIngestionPipeline builds an ingestion pipeline over this platform.
func (p *Platform) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(p.entityRepo, p.provider, opts...)
}

// NewGraphBuilder builds a connection graph builder over this platform.
func (p *Platform) NewGraphBuilder(opts ...graph.Option) (*graph.Builder, error) {
	return graph.NewBuilder(p.entityRepo, p.connectionRepo, opts...)
}

// NewWeeklyAggregator builds a weekly aggregator over this platform.
func (p *Platform) NewWeeklyAggregator(opts ...weekly.Option) (*weekly.Aggregator, error) {
	return weekly.NewAggregator(p.entityRepo, p.summaryRepo, p.provider, opts...)
}

// NewRetrievalEngine builds a retrieval engine over this platform. The
// builder supplies the connection snapshot; callers typically Load or
// Rebuild it first.
func (p *Platform) NewRetrievalEngine(builder *graph.Builder, opts ...retrieval.Option) (*retrieval.Engine, error) {
	return retrieval.NewEngine(p.entityRepo, p.summaryRepo, builder, p.provider, opts...)
}
