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


package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/opsmesh/contexture/ai"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
)

// DefaultMaxNodes caps how many entities one traversal may visit.
const DefaultMaxNodes = 256

// ConnectionSource resolves an entity's outgoing edges against the current
// graph snapshot. Implemented by graph.Builder.
type ConnectionSource interface {
	ConnectionsFrom(entityID string) []*core.Connection
}

// Engine answers search, connection traversal, and entity detail queries.
type Engine struct {
	entityRepository  storage.EntityRepository
	summaryRepository storage.SummaryRepository
	connections       ConnectionSource
	embedder          ai.Embedder
	maxNodes          int
	logger            *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithMaxNodes caps the number of entities a traversal visits.
// Default is 256.
func WithMaxNodes(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("max nodes %d must be positive", n)
		}
		e.maxNodes = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(
	entityRepository storage.EntityRepository,
	summaryRepository storage.SummaryRepository,
	connections ConnectionSource,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if summaryRepository == nil {
		return nil, ErrSummaryRepositoryRequired
	}
	if connections == nil {
		return nil, ErrConnectionSourceRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		entityRepository:  entityRepository,
		summaryRepository: summaryRepository,
		connections:       connections,
		embedder:          provider.Embedder(),
		maxNodes:          DefaultMaxNodes,
		logger:            slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SearchScope selects which collections a search runs against.
type SearchScope int

const (
	ScopeAll SearchScope = iota
	ScopeEntities
	ScopeSummaries
)

// Search embeds the query and runs a blended similarity search over entities
// and weekly summaries, returning at most topK hits ranked by score.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	return e.SearchScoped(ctx, query, topK, ScopeAll)
}

// SearchScoped is Search restricted to one collection, or both for ScopeAll.
func (e *Engine) SearchScoped(ctx context.Context, query string, topK int, scope SearchScope) ([]SearchHit, error) {
	vector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = 1
	}

	var hits []SearchHit
	if scope == ScopeAll || scope == ScopeEntities {
		hits, err = e.searchEntities(ctx, vector, topK)
		if err != nil {
			return nil, err
		}
	}
	if scope == ScopeAll || scope == ScopeSummaries {
		summaryHits, err := e.searchSummaries(ctx, vector, topK)
		if err != nil {
			return nil, err
		}
		hits = append(hits, summaryHits...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Connections seeds a traversal with the top entity matches for the query and
// walks the connection graph breadth-first up to depth hops. depth 0 returns
// the seeds alone. The total visited set is capped.
func (e *Engine) Connections(ctx context.Context, query string, topK, depth int) (*Graph, error) {
	vector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = 1
	}
	if depth < 0 {
		depth = 0
	}

	seeds, err := e.entityRepository.FindSimilar(ctx, vector, 0, topK, nil)
	if err != nil {
		return nil, err
	}

	type visit struct {
		id    string
		depth int
	}

	graph := &Graph{Nodes: []*Node{}, Edges: []*Edge{}}
	depthOf := make(map[string]int, len(seeds))
	var queue []visit
	for _, seed := range seeds {
		depthOf[seed.ID] = 0
		queue = append(queue, visit{id: seed.ID, depth: 0})
	}

	edgesByPair := make(map[[2]string]*Edge)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= depth {
			continue
		}
		for _, conn := range e.connections.ConnectionsFrom(current.id) {
			e.mergeEdge(edgesByPair, conn)
			if _, seen := depthOf[conn.TargetID]; seen {
				continue
			}
			if len(depthOf) >= e.maxNodes {
				continue
			}
			depthOf[conn.TargetID] = current.depth + 1
			queue = append(queue, visit{id: conn.TargetID, depth: current.depth + 1})
		}
	}

	ids := make([]string, 0, len(depthOf))
	for id := range depthOf {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entities, err := e.entityRepository.GetEntities(ctx, ids...)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(entities))
	for _, entity := range entities {
		present[entity.ID] = true
		graph.Nodes = append(graph.Nodes, &Node{
			ID:      entity.ID,
			Source:  entity.Source,
			Title:   entity.Title,
			Snippet: entity.Preview(snippetLen),
			Depth:   depthOf[entity.ID],
			Seed:    depthOf[entity.ID] == 0,
		})
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		if graph.Nodes[i].Depth != graph.Nodes[j].Depth {
			return graph.Nodes[i].Depth < graph.Nodes[j].Depth
		}
		return graph.Nodes[i].ID < graph.Nodes[j].ID
	})

	// Keep only edges whose both endpoints made it into the node set.
	pairs := make([][2]string, 0, len(edgesByPair))
	for pair := range edgesByPair {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, pair := range pairs {
		edge := edgesByPair[pair]
		if present[edge.SourceID] && present[edge.TargetID] {
			graph.Edges = append(graph.Edges, edge)
		}
	}
	return graph, nil
}

// mergeEdge folds a connection row into the per-pair edge map, keeping the
// highest confidence and accumulating distinct match reasons.
func (e *Engine) mergeEdge(edgesByPair map[[2]string]*Edge, conn *core.Connection) {
	pair := [2]string{conn.SourceID, conn.TargetID}
	if pair[0] > pair[1] {
		pair[0], pair[1] = pair[1], pair[0]
	}

	edge, ok := edgesByPair[pair]
	if !ok {
		edgesByPair[pair] = &Edge{
			SourceID:     pair[0],
			TargetID:     pair[1],
			Kind:         conn.Kind,
			Confidence:   conn.Confidence,
			MatchReasons: []string{conn.MatchReason},
		}
		return
	}

	if conn.Confidence > edge.Confidence {
		edge.Confidence = conn.Confidence
		edge.Kind = conn.Kind
	}
	for _, reason := range edge.MatchReasons {
		if reason == conn.MatchReason {
			return
		}
	}
	edge.MatchReasons = append(edge.MatchReasons, conn.MatchReason)
}

// Entity returns the full detail view for one entity: record, first-hop
// connections grouped by the neighbor's source, and the chronological
// timeline of the entity plus its neighbors.
func (e *Engine) Entity(ctx context.Context, id string) (*EntityDetail, error) {
	entity, err := e.entityRepository.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	conns := e.connections.ConnectionsFrom(id)
	targetIDs := make([]string, 0, len(conns))
	for _, conn := range conns {
		targetIDs = append(targetIDs, conn.TargetID)
	}
	neighbors, err := e.entityRepository.GetEntities(ctx, targetIDs...)
	if err != nil {
		return nil, err
	}
	neighborByID := make(map[string]*core.Entity, len(neighbors))
	for _, neighbor := range neighbors {
		neighborByID[neighbor.ID] = neighbor
	}

	detail := &EntityDetail{
		Entity:              entity,
		ConnectionsBySource: make(map[core.Source][]ConnectedEntity),
		Timeline: []TimelineEvent{{
			ID:        entity.ID,
			Source:    entity.Source,
			Title:     entity.Title,
			Timestamp: entity.Timestamp,
		}},
	}

	seen := make(map[string]bool)
	for _, conn := range conns {
		neighbor := neighborByID[conn.TargetID]
		if neighbor == nil {
			continue
		}
		detail.ConnectionsBySource[neighbor.Source] = append(detail.ConnectionsBySource[neighbor.Source], ConnectedEntity{
			ID:          neighbor.ID,
			Source:      neighbor.Source,
			Title:       neighbor.Title,
			Kind:        conn.Kind,
			Confidence:  conn.Confidence,
			MatchReason: conn.MatchReason,
		})
		if !seen[neighbor.ID] {
			seen[neighbor.ID] = true
			detail.Timeline = append(detail.Timeline, TimelineEvent{
				ID:        neighbor.ID,
				Source:    neighbor.Source,
				Title:     neighbor.Title,
				Timestamp: neighbor.Timestamp,
			})
		}
	}

	sort.SliceStable(detail.Timeline, func(i, j int) bool {
		return detail.Timeline[i].Timestamp.Before(detail.Timeline[j].Timestamp)
	})
	return detail, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	vector, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return ai.NormalizeVector(vector), nil
}

func (e *Engine) searchEntities(ctx context.Context, vector []float32, topK int) ([]SearchHit, error) {
	matches, err := e.entityRepository.FindSimilar(ctx, vector, 0, topK, nil)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	for i, match := range matches {
		ids[i] = match.ID
	}
	entities, err := e.entityRepository.GetEntities(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Entity, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity
	}

	hits := make([]SearchHit, 0, len(matches))
	for _, match := range matches {
		entity := byID[match.ID]
		if entity == nil {
			continue
		}
		hits = append(hits, SearchHit{
			ID:      entity.ID,
			Source:  entity.Source,
			Title:   entity.Title,
			Snippet: entity.Preview(snippetLen),
			Score:   match.Score,
			WeekKey: core.WeekKey(entity.Timestamp),
		})
	}
	return hits, nil
}

func (e *Engine) searchSummaries(ctx context.Context, vector []float32, topK int) ([]SearchHit, error) {
	matches, err := e.summaryRepository.FindSimilar(ctx, vector, 0, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(matches))
	for _, match := range matches {
		summary, err := e.summaryRepository.GetSummary(ctx, match.ID)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return nil, err
		}
		text := summary.SummaryText
		if len(text) > snippetLen {
			text = text[:snippetLen]
		}
		hits = append(hits, SearchHit{
			ID:      core.SummaryID(summary.WeekKey),
			Source:  core.SourceSummary,
			Title:   "Weekly Summary " + summary.WeekKey,
			Snippet: text,
			Score:   match.Score,
			WeekKey: summary.WeekKey,
		})
	}
	return hits, nil
}
