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


package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/opsmesh/contexture/ai"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
	"github.com/panjf2000/ants/v2"
)

// Pipeline normalizes raw source records, embeds their content, and upserts
// the resulting entities. Embedding runs concurrently across a worker pool;
// a record whose fingerprint is unchanged keeps its stored vector.
type Pipeline struct {
	entityRepository storage.EntityRepository
	embedder         ai.Embedder
	pool             *ants.Pool
	maxAttempts      int
	baseDelay        time.Duration
	logger           *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithRetry sets the embedding retry policy.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	entityRepository storage.EntityRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		entityRepository: entityRepository,
		embedder:         provider.Embedder(),
		pool:             pool,
		maxAttempts:      3,
		baseDelay:        500 * time.Millisecond,
		logger:           slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// IngestBatch normalizes and stores one source's records. Malformed records
// are skipped and counted; embedding failures leave the entity stored without
// a vector. The returned report is always non-nil, even on storage errors.
func (p *Pipeline) IngestBatch(ctx context.Context, src core.Source, records []json.RawMessage) (*Report, error) {
	report := &Report{Source: string(src), Processed: len(records)}

	var entities []*core.Entity
	for _, raw := range records {
		entity, err := Normalize(src, raw)
		if err != nil {
			if errors.Is(err, core.ErrMalformedRecord) {
				report.SkippedMalformed++
				report.addSample(err)
				p.logger.Warn("skipping malformed record", "source", src, "err", err)
				continue
			}
			return report, err
		}
		entities = append(entities, entity)
	}

	if len(entities) == 0 {
		return report, nil
	}

	if err := p.carryUnchangedVectors(ctx, entities, report); err != nil {
		return report, err
	}
	p.embedEntities(ctx, entities, report)
	entities = p.validateEntities(entities, report)
	if len(entities) == 0 {
		return report, nil
	}

	if err := p.entityRepository.UpsertEntities(ctx, entities...); err != nil {
		return report, err
	}
	report.Upserted = len(entities)
	return report, nil
}

// validateEntities drops entities that fail model validation, including any
// whose vector dimension disagrees with the rest of the batch.
func (p *Pipeline) validateEntities(entities []*core.Entity, report *Report) []*core.Entity {
	dim := 0
	for _, entity := range entities {
		if len(entity.Vector) > 0 {
			dim = len(entity.Vector)
			break
		}
	}

	valid := entities[:0]
	for _, entity := range entities {
		if err := core.ValidateEntity(entity, dim); err != nil {
			report.SkippedMalformed++
			report.addSample(err)
			p.logger.Warn("dropping invalid entity", "id", entity.ID, "err", err)
			continue
		}
		valid = append(valid, entity)
	}
	return valid
}

// carryUnchangedVectors copies stored vectors onto entities whose fingerprint
// has not changed, so embedEntities can skip them.
func (p *Pipeline) carryUnchangedVectors(ctx context.Context, entities []*core.Entity, report *Report) error {
	ids := make([]string, len(entities))
	for i, entity := range entities {
		ids[i] = entity.ID
	}

	existing, err := p.entityRepository.GetEntities(ctx, ids...)
	if err != nil {
		return err
	}
	byID := make(map[string]*core.Entity, len(existing))
	for _, entity := range existing {
		byID[entity.ID] = entity
	}

	for _, entity := range entities {
		old, ok := byID[entity.ID]
		if ok && old.Fingerprint == entity.Fingerprint && len(old.Vector) > 0 {
			entity.Vector = old.Vector
			report.Unchanged++
		}
	}
	return nil
}

// embedEntities fills in vectors for entities that don't have one yet,
// in parallel across the worker pool. Failures are counted, not fatal.
func (p *Pipeline) embedEntities(ctx context.Context, entities []*core.Entity, report *Report) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, entity := range entities {
		if len(entity.Vector) > 0 {
			continue
		}
		entity := entity
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			text := entity.Title + " " + entity.Content

			var vector []float32
			err := RetryWithBackoff(ctx, func() error {
				var embedErr error
				vector, embedErr = p.embedder.EmbedText(ctx, text)
				return embedErr
			}, p.maxAttempts, p.baseDelay)
			if err != nil {
				p.logger.Error("embedding failed, storing without vector", "id", entity.ID, "err", err)
				mu.Lock()
				report.EmbeddingFailures++
				report.addSample(err)
				mu.Unlock()
				return
			}
			entity.Vector = ai.NormalizeVector(vector)
		})
		if err != nil {
			// Pool rejected the task (released or overloaded); run inline
			// accounting so the batch still completes.
			wg.Done()
			mu.Lock()
			report.EmbeddingFailures++
			report.addSample(err)
			mu.Unlock()
		}
	}
	wg.Wait()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
