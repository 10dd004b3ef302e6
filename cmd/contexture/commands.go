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


package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/opsmesh/contexture"
	"github.com/opsmesh/contexture/ai"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/graph"
	"github.com/opsmesh/contexture/ingestion"
	"github.com/opsmesh/contexture/retrieval"
	"github.com/opsmesh/contexture/server"
	"github.com/opsmesh/contexture/weekly"
)

// sourceFiles maps each ingestable source to its expected file name inside
// --data-dir. Each file holds one JSON array of raw records.
var sourceFiles = []struct {
	source core.Source
	file   string
}{
	{core.SourceChat, "chat.json"},
	{core.SourceDocument, "documents.json"},
	{core.SourceCodeChange, "code_changes.json"},
	{core.SourceTicket, "tickets.json"},
	{core.SourceMeeting, "meetings.json"},
}

func ingestCommand(c *cli.Context) error {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithEmbeddingDim(c.Int("embedding-dim")),
	)
	if err := config.Validate(); err != nil {
		return err
	}

	platform, err := contexture.NewPlatform(c.String("db"), contexture.WithAIConfig(config))
	if err != nil {
		return fmt.Errorf("opening platform: %w", err)
	}
	defer platform.Close()

	pipeline, err := platform.NewIngestionPipeline(
		ingestion.WithPoolSize(c.Int("pool-size")),
		ingestion.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	)
	if err != nil {
		return err
	}

	dataDir := c.String("data-dir")
	total := &ingestion.Report{}
	for _, sf := range sourceFiles {
		path := filepath.Join(dataDir, sf.file)
		records, err := readRecordFile(path)
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Skipping %s: no %s\n", sf.source, sf.file)
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		fmt.Fprintf(os.Stderr, "Ingesting %d %s records...\n", len(records), sf.source)
		report, err := pipeline.IngestBatch(c.Context, sf.source, records)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", sf.source, err)
		}
		fmt.Fprintf(os.Stderr, "  %s\n", report)
		total.Merge(report)
	}

	fmt.Fprintf(os.Stderr, "Done. %s\n", total)
	return nil
}

func readRecordFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}
	return records, nil
}

func buildGraphCommand(c *cli.Context) error {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithSummaryHost(c.String("summary-host")),
		ai.WithSummaryModel(c.String("summary-model")),
		ai.WithSummaryTimeout(c.Duration("summary-timeout")),
	)
	if err := config.Validate(); err != nil {
		return err
	}

	platform, err := contexture.NewPlatform(c.String("db"), contexture.WithAIConfig(config))
	if err != nil {
		return fmt.Errorf("opening platform: %w", err)
	}
	defer platform.Close()

	builder, err := platform.NewGraphBuilder(
		graph.WithSimilarityThreshold(float32(c.Float64("similarity-threshold"))),
		graph.WithNeighbors(c.Int("neighbors")),
		graph.WithWorkers(c.Int("workers")),
	)
	if err != nil {
		return err
	}
	defer builder.Release()

	fmt.Fprintln(os.Stderr, "Rebuilding connection graph...")
	graphStats, err := builder.Rebuild(c.Context)
	if err != nil {
		return fmt.Errorf("rebuilding graph: %w", err)
	}
	fmt.Fprintf(os.Stderr, "  %s\n", graphStats)

	aggregator, err := platform.NewWeeklyAggregator(
		weekly.WithSummaryTimeout(c.Duration("summary-timeout")),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Aggregating weekly summaries...")
	weekStats, err := aggregator.Run(c.Context)
	if err != nil {
		return fmt.Errorf("aggregating weeks: %w", err)
	}
	fmt.Fprintf(os.Stderr, "  %s\n", weekStats)

	return nil
}

func serveCommand(c *cli.Context) error {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := config.Validate(); err != nil {
		return err
	}

	platform, err := contexture.NewPlatform(c.String("db"), contexture.WithAIConfig(config))
	if err != nil {
		return fmt.Errorf("opening platform: %w", err)
	}
	defer platform.Close()

	builder, err := platform.NewGraphBuilder()
	if err != nil {
		return err
	}
	defer builder.Release()
	if err := builder.Load(c.Context); err != nil {
		return fmt.Errorf("loading connection graph: %w", err)
	}

	engine, err := platform.NewRetrievalEngine(builder,
		retrieval.WithMaxNodes(c.Int("max-nodes")),
	)
	if err != nil {
		return err
	}

	srv, err := server.New(engine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(c.String("addr"))
	}()

	fmt.Fprintf(os.Stderr, "Serving on %s\n", c.String("addr"))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(os.Stderr, "Shutting down...")
	return srv.Shutdown(c.Context)
}
