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


package graph

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// vector_similarity edge.
	DefaultSimilarityThreshold = 0.7

	// DefaultNeighbors caps nearest-neighbor candidates per entity.
	DefaultNeighbors = 5
)

// Builder rebuilds the connection graph from the current entity set and
// publishes each result as an immutable snapshot. Readers resolve edges
// through the snapshot; a rebuild that fails or is cancelled leaves the
// previous snapshot untouched.
type Builder struct {
	entityRepository     storage.EntityRepository
	connectionRepository storage.ConnectionRepository
	similarityThreshold  float32
	neighbors            int
	pool                 *ants.Pool
	snapshot             atomic.Pointer[Snapshot]
	logger               *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithSimilarityThreshold sets the minimum cosine similarity for
// vector_similarity edges. Default is 0.7.
func WithSimilarityThreshold(threshold float32) Option {
	return func(b *Builder) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("similarity threshold %v outside (0,1]", threshold)
		}
		b.similarityThreshold = threshold
		return nil
	}
}

// WithNeighbors sets the nearest-neighbor candidate count per entity.
// Default is 5.
func WithNeighbors(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			n = 1
		}
		b.neighbors = n
		return nil
	}
}

// WithWorkers sets the worker pool size for the similarity phase.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}
		if b.pool != nil {
			b.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a graph builder. The initial snapshot is empty; call
// Load to hydrate it from storage.
func NewBuilder(
	entityRepository storage.EntityRepository,
	connectionRepository storage.ConnectionRepository,
	opts ...Option,
) (*Builder, error) {
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if connectionRepository == nil {
		return nil, ErrConnectionRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		entityRepository:     entityRepository,
		connectionRepository: connectionRepository,
		similarityThreshold:  DefaultSimilarityThreshold,
		neighbors:            DefaultNeighbors,
		pool:                 pool,
		logger:               slog.Default().With("component", "graph"),
	}
	b.snapshot.Store(newSnapshot(nil))

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}
	return b, nil
}

// Snapshot returns the current immutable graph view. Never nil.
func (b *Builder) Snapshot() *Snapshot {
	return b.snapshot.Load()
}

// ConnectionsFrom resolves an entity's outgoing edges against the current
// snapshot.
func (b *Builder) ConnectionsFrom(entityID string) []*core.Connection {
	return b.Snapshot().ConnectionsFrom(entityID)
}

// Load hydrates the in-memory snapshot from the persisted connection set.
func (b *Builder) Load(ctx context.Context) error {
	conns, err := b.connectionRepository.ListConnections(ctx)
	if err != nil {
		return err
	}
	b.snapshot.Store(newSnapshot(conns))
	return nil
}

// RebuildStats reports the outcome of one graph rebuild.
type RebuildStats struct {
	Entities        int
	ExactEdges      int // directed shared_* edges
	SimilarityEdges int // directed vector_similarity edges
	TotalEdges      int
	PrunedEdges     int // previous edges absent from the new graph
}

// String renders the stats for CLI output.
func (s *RebuildStats) String() string {
	return fmt.Sprintf("entities=%d exact_edges=%d similarity_edges=%d total_edges=%d pruned=%d",
		s.Entities, s.ExactEdges, s.SimilarityEdges, s.TotalEdges, s.PrunedEdges)
}

// Rebuild recomputes the full connection graph: the exact phase links
// entities sharing a cross-reference key, the similarity phase links
// nearest neighbors above the threshold. The result replaces the persisted
// set and the in-memory snapshot atomically.
func (b *Builder) Rebuild(ctx context.Context) (*RebuildStats, error) {
	entities, err := b.entityRepository.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	arena := newArena(entities)
	stats := &RebuildStats{Entities: len(entities)}

	b.exactPhase(arena, entities)
	stats.ExactEdges = arena.count()

	if err := b.similarityPhase(ctx, arena, entities); err != nil {
		return nil, err
	}
	stats.SimilarityEdges = arena.count() - stats.ExactEdges
	stats.TotalEdges = arena.count()

	previous, err := b.connectionRepository.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	for _, conn := range previous {
		if !arena.contains(conn.Key()) {
			stats.PrunedEdges++
		}
	}

	conns := arena.connections()
	if err := b.connectionRepository.ReplaceAll(ctx, conns); err != nil {
		return nil, err
	}
	b.snapshot.Store(newSnapshot(conns))

	b.logger.Info("graph rebuilt",
		"entities", stats.Entities,
		"exact_edges", stats.ExactEdges,
		"similarity_edges", stats.SimilarityEdges,
		"pruned", stats.PrunedEdges)
	return stats, nil
}

// exactPhase groups entities by (RefKind, key) and emits pairwise edges with
// confidence 1.0 for every group of two or more.
func (b *Builder) exactPhase(arena *arena, entities []*core.Entity) {
	groups := make(map[core.Ref][]*core.Entity)
	for _, entity := range entities {
		for _, ref := range entity.Refs {
			groups[ref] = append(groups[ref], entity)
		}
	}

	// Deterministic group order keeps rebuilds reproducible.
	refs := make([]core.Ref, 0, len(groups))
	for ref := range groups {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Key < refs[j].Key
	})

	for _, ref := range refs {
		members := groups[ref]
		if len(members) < 2 {
			continue
		}
		kind := ref.Kind.ConnectionKind()
		reason := fmt.Sprintf("%s:%s", kind, ref.Key)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				arena.insert(&core.Connection{
					SourceID:    members[i].ID,
					SourceType:  members[i].Source,
					TargetID:    members[j].ID,
					TargetType:  members[j].Source,
					Kind:        kind,
					Confidence:  1.0,
					MatchReason: reason,
				})
			}
		}
	}
}

// similarityPhase queries nearest neighbors for every embedded entity in
// parallel and links pairs above the threshold. Exact partners and self are
// excluded from the candidate set.
func (b *Builder) similarityPhase(ctx context.Context, arena *arena, entities []*core.Entity) error {
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, entity := range entities {
		if len(entity.Vector) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		entity := entity
		exclude := arena.partnersOf(entity.ID)
		exclude[entity.ID] = true

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			matches, err := b.entityRepository.FindSimilar(ctx, entity.Vector, b.similarityThreshold, b.neighbors, exclude)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			for _, match := range matches {
				target := arena.entity(match.ID)
				if target == nil {
					continue
				}
				arena.insert(&core.Connection{
					SourceID:    entity.ID,
					SourceType:  entity.Source,
					TargetID:    target.ID,
					TargetType:  target.Source,
					Kind:        core.ConnVectorSimilarity,
					Confidence:  core.ClampConfidence(match.Score),
					MatchReason: fmt.Sprintf("vector_similarity:%.3f", match.Score),
				})
			}
		})
		if err != nil {
			wg.Done()
			errOnce.Do(func() { firstErr = err })
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Release releases the worker pool.
// The builder should not be used after calling Release.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}
