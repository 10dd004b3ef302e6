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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Optional .env for local service hosts and models.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "contexture",
		Usage: "Context intelligence platform over team activity records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Normalize, embed, and store raw source records",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data-dir",
						Usage:    "Directory holding one JSON array file per source",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "embedding-host",
						Usage:   "Embedding service host URL",
						EnvVars: []string{"CONTEXTURE_EMBEDDING_HOST"},
						Value:   "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:    "embedding-model",
						Usage:   "Embedding model name",
						EnvVars: []string{"CONTEXTURE_EMBEDDING_MODEL"},
						Value:   "embeddinggemma",
					},
					&cli.IntFlag{
						Name:  "embedding-dim",
						Usage: "Embedding vector dimension",
						Value: 384,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent embedding workers",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embeddings",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 500 * time.Millisecond,
					},
				},
			},
			{
				Name:   "build-graph",
				Usage:  "Rebuild the connection graph and weekly summaries",
				Action: buildGraphCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "similarity-threshold",
						Usage: "Minimum cosine similarity for a graph edge",
						Value: 0.7,
					},
					&cli.IntFlag{
						Name:  "neighbors",
						Usage: "Nearest-neighbor candidates per entity",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent similarity workers",
						Value: 4,
					},
					&cli.StringFlag{
						Name:    "embedding-host",
						Usage:   "Embedding service host URL",
						EnvVars: []string{"CONTEXTURE_EMBEDDING_HOST"},
						Value:   "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:    "embedding-model",
						Usage:   "Embedding model name",
						EnvVars: []string{"CONTEXTURE_EMBEDDING_MODEL"},
						Value:   "embeddinggemma",
					},
					&cli.StringFlag{
						Name:    "summary-host",
						Usage:   "Summarization service host URL",
						EnvVars: []string{"CONTEXTURE_SUMMARY_HOST"},
						Value:   "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:    "summary-model",
						Usage:   "Summarization model name",
						EnvVars: []string{"CONTEXTURE_SUMMARY_MODEL"},
						Value:   "qwen2.5:3b",
					},
					&cli.DurationFlag{
						Name:  "summary-timeout",
						Usage: "Per-week summarization timeout",
						Value: 30 * time.Second,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the read-only HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						EnvVars: []string{"CONTEXTURE_ADDR"},
						Value:   ":8080",
					},
					&cli.StringFlag{
						Name:    "embedding-host",
						Usage:   "Embedding service host URL",
						EnvVars: []string{"CONTEXTURE_EMBEDDING_HOST"},
						Value:   "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:    "embedding-model",
						Usage:   "Embedding model name",
						EnvVars: []string{"CONTEXTURE_EMBEDDING_MODEL"},
						Value:   "embeddinggemma",
					},
					&cli.IntFlag{
						Name:  "max-nodes",
						Usage: "Traversal node cap",
						Value: 256,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
