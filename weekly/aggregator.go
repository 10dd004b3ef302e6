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


package weekly

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opsmesh/contexture/ai"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/ingestion"
	"github.com/opsmesh/contexture/storage"
)

// DefaultSummaryTimeout bounds one summarizer call.
const DefaultSummaryTimeout = 30 * time.Second

// Aggregator groups entities by ISO week and upserts one summary entry per
// week. Runs are idempotent: re-aggregating a week replaces its entry.
type Aggregator struct {
	entityRepository  storage.EntityRepository
	summaryRepository storage.SummaryRepository
	summarizer        ai.Summarizer
	embedder          ai.Embedder
	timeout           time.Duration
	maxAttempts       int
	baseDelay         time.Duration
	logger            *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator) error

// WithSummaryTimeout bounds each summarizer call.
// Default is 30s.
func WithSummaryTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) error {
		if timeout <= 0 {
			return fmt.Errorf("summary timeout %v must be positive", timeout)
		}
		a.timeout = timeout
		return nil
	}
}

// WithRetry sets the summary embedding retry policy.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(a *Aggregator) error {
		if maxAttempts <= 0 {
			return ingestion.ErrInvalidMaxAttempts
		}
		a.maxAttempts = maxAttempts
		a.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAggregator creates a weekly aggregator.
func NewAggregator(
	entityRepository storage.EntityRepository,
	summaryRepository storage.SummaryRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Aggregator, error) {
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if summaryRepository == nil {
		return nil, ErrSummaryRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	a := &Aggregator{
		entityRepository:  entityRepository,
		summaryRepository: summaryRepository,
		summarizer:        provider.Summarizer(),
		embedder:          provider.Embedder(),
		timeout:           DefaultSummaryTimeout,
		maxAttempts:       3,
		baseDelay:         500 * time.Millisecond,
		logger:            slog.Default().With("component", "weekly"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Stats reports the outcome of one aggregation run.
type Stats struct {
	Weeks        int
	Entities     int
	Placeholders int // weeks stored with fallback text after summarizer failure
}

// String renders the stats for CLI output.
func (s *Stats) String() string {
	return fmt.Sprintf("weeks=%d entities=%d placeholders=%d", s.Weeks, s.Entities, s.Placeholders)
}

// Run buckets all stored entities into ISO weeks and writes one summary per
// week. Every entity with a valid timestamp lands in exactly one week.
// Cancellation is checked between weeks; completed weeks stay written.
func (a *Aggregator) Run(ctx context.Context) (*Stats, error) {
	entities, err := a.entityRepository.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]*core.Entity)
	for _, entity := range entities {
		if entity.Timestamp.IsZero() {
			continue
		}
		week := core.WeekKey(entity.Timestamp)
		buckets[week] = append(buckets[week], entity)
	}

	weeks := make([]string, 0, len(buckets))
	for week := range buckets {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)

	stats := &Stats{Entities: len(entities)}
	for _, week := range weeks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		placeholder, err := a.aggregateWeek(ctx, week, buckets[week])
		if err != nil {
			return stats, err
		}
		stats.Weeks++
		if placeholder {
			stats.Placeholders++
		}
	}
	return stats, nil
}

// aggregateWeek summarizes one week's members and upserts the entry.
// Returns whether the placeholder text was used.
func (a *Aggregator) aggregateWeek(ctx context.Context, week string, members []*core.Entity) (bool, error) {
	sort.Slice(members, func(i, j int) bool {
		return members[i].Timestamp.Before(members[j].Timestamp)
	})

	ids := make([]string, len(members))
	items := make([]ai.SummaryItem, len(members))
	sourceSet := make(map[core.Source]bool)
	for i, member := range members {
		ids[i] = member.ID
		items[i] = ai.SummaryItem{
			Source:    string(member.Source),
			Title:     member.Title,
			Author:    member.Author,
			Timestamp: member.Timestamp,
		}
		sourceSet[member.Source] = true
	}

	sources := make([]core.Source, 0, len(sourceSet))
	for source := range sourceSet {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	summaryCtx, cancel := context.WithTimeout(ctx, a.timeout)
	text, err := a.summarizer.Summarize(summaryCtx, ai.SummaryRequest{WeekKey: week, Items: items})
	cancel()

	usedPlaceholder := false
	if err != nil || strings.TrimSpace(text) == "" {
		a.logger.Warn("summarizer failed, using placeholder", "week", week, "err", err)
		text = placeholderText(week, len(members), sources)
		usedPlaceholder = true
	}

	summary := &core.WeeklySummary{
		WeekKey:     week,
		EntityIDs:   ids,
		SummaryText: text,
		Sources:     sources,
	}

	var vector []float32
	embedErr := ingestion.RetryWithBackoff(ctx, func() error {
		var err error
		vector, err = a.embedder.EmbedText(ctx, text)
		return err
	}, a.maxAttempts, a.baseDelay)
	if embedErr != nil {
		a.logger.Error("summary embedding failed, storing without vector", "week", week, "err", embedErr)
	} else {
		summary.Vector = ai.NormalizeVector(vector)
	}

	if err := a.summaryRepository.UpsertSummary(ctx, summary); err != nil {
		return usedPlaceholder, err
	}
	return usedPlaceholder, nil
}

// placeholderText is the fallback summary when the summarizer is unavailable.
func placeholderText(week string, count int, sources []core.Source) string {
	names := make([]string, len(sources))
	for i, source := range sources {
		names[i] = string(source)
	}
	return fmt.Sprintf("Weekly summary for %s: %d entities from %s.", week, count, strings.Join(names, ", "))
}
