// Copyright 2025 derrickSh43
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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	ingsvc "github.com/derrickSh43/ingestion"
	"github.com/derrickSh43/ingestion/ai"
	"github.com/derrickSh43/ingestion/ai/hash"
	"github.com/derrickSh43/ingestion/ai/openai"
	"github.com/derrickSh43/ingestion/config"
	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/ingest"
	"github.com/derrickSh43/ingestion/reindex"
	"github.com/derrickSh43/ingestion/release"
	"github.com/derrickSh43/ingestion/search"
	"github.com/derrickSh43/ingestion/storage"
	"github.com/derrickSh43/ingestion/storage/file"
	"github.com/derrickSh43/ingestion/vector"
)

func main() {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "ingestion",
		Usage: "Versioned document ingestion and retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "data-root",
				Usage: "Base directory for all persisted artifacts (overrides INGESTION_DATA_ROOT)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "capture",
				Usage:  "Fetch a URL and store it as a capture",
				Action: captureCommand,
				Flags: []cli.Flag{
					domainFlag(),
					sourceFlag(),
					&cli.StringFlag{
						Name:     "url",
						Usage:    "URL to fetch",
						Required: true,
					},
				},
			},
			{
				Name:   "capture-file",
				Usage:  "Store a local file as a capture",
				Action: captureFileCommand,
				Flags: []cli.Flag{
					domainFlag(),
					sourceFlag(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the file to capture",
						Required: true,
					},
				},
			},
			{
				Name:   "quarantine",
				Usage:  "Quarantine a capture so ingestion refuses it",
				Action: quarantineCommand,
				Flags: []cli.Flag{
					domainFlag(),
					sourceFlag(),
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Why the capture is being quarantined",
					},
				},
			},
			{
				Name:   "captures",
				Usage:  "List a domain's captures",
				Action: capturesCommand,
				Flags:  []cli.Flag{domainFlag()},
			},
			{
				Name:   "ingest",
				Usage:  "Run the ingestion pipeline for one or more sources",
				Action: ingestCommand,
				Flags: []cli.Flag{
					domainFlag(),
					&cli.StringSliceFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source id to ingest (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "raw-html",
						Usage: "Inline raw HTML to ingest instead of a stored capture",
					},
					&cli.StringFlag{
						Name:  "raw-html-path",
						Usage: "Path to a local HTML file to ingest instead of a stored capture",
					},
					&cli.StringFlag{
						Name:    "release",
						Aliases: []string{"r"},
						Usage:   "Candidate release id (minted when omitted)",
					},
					&cli.StringFlag{
						Name:  "created-by",
						Usage: "Actor recorded on the release",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Ingest quarantined captures anyway",
					},
					&cli.BoolFlag{
						Name:  "continue-on-error",
						Usage: "Keep going when a source fails",
					},
				},
			},
			{
				Name:   "releases",
				Usage:  "List a domain's releases",
				Action: releasesCommand,
				Flags:  []cli.Flag{domainFlag()},
			},
			{
				Name:   "promote",
				Usage:  "Make a release the domain's active release",
				Action: promoteCommand,
				Flags: []cli.Flag{
					domainFlag(),
					releaseFlag(),
					&cli.StringFlag{
						Name:  "actor",
						Usage: "Who is promoting",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Why the release is being promoted",
					},
				},
			},
			{
				Name:   "merge",
				Usage:  "Merge several releases into a new candidate",
				Action: mergeCommand,
				Flags: []cli.Flag{
					domainFlag(),
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target release id to create",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source release id (repeat at least twice)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "created-by",
						Usage: "Actor recorded on the merged release",
					},
				},
			},
			{
				Name:   "audit",
				Usage:  "Show a domain's promotion history, newest first",
				Action: auditCommand,
				Flags: []cli.Flag{
					domainFlag(),
					limitFlag(),
				},
			},
			{
				Name:      "query",
				Usage:     "Search a domain's active release",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					domainFlag(),
					&cli.StringFlag{
						Name:    "release",
						Aliases: []string{"r"},
						Usage:   "Query an explicit release instead of the active one",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of hits to return",
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Metadata filter as key=value (repeatable)",
					},
				},
			},
			{
				Name:   "events",
				Usage:  "Show a domain's recent operational events",
				Action: eventsCommand,
				Flags: []cli.Flag{
					domainFlag(),
					limitFlag(),
				},
			},
			{
				Name:   "metrics",
				Usage:  "Aggregate a domain's events into counts and alerts",
				Action: metricsCommand,
				Flags: []cli.Flag{
					domainFlag(),
					&cli.IntFlag{
						Name:  "window-hours",
						Usage: "Only count events within the last N hours (0 = no bound)",
						Value: 24,
					},
				},
			},
			{
				Name:   "compact",
				Usage:  "Rewrite a release's vector index to its latest entries",
				Action: compactCommand,
				Flags: []cli.Flag{
					domainFlag(),
					releaseFlag(),
				},
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild a release with a new embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					domainFlag(),
					&cli.StringFlag{
						Name:     "source-release",
						Usage:    "Release to rebuild from",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target-release",
						Usage:    "Candidate release to create",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "created-by",
						Usage: "Actor recorded on the rebuilt release",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (overrides INGESTION_EMBED_HOST)",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (overrides INGESTION_EMBED_MODEL)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per batch",
						Value: reindex.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: reindex.DefaultMaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: reindex.DefaultRetryBaseDelay,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func domainFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "domain",
		Aliases:  []string{"D"},
		Usage:    "Domain the operation applies to",
		Required: true,
	}
}

func sourceFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "source",
		Aliases:  []string{"s"},
		Usage:    "Source id within the domain",
		Required: true,
	}
}

func releaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "release",
		Aliases:  []string{"r"},
		Usage:    "Release id",
		Required: true,
	}
}

func limitFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum entries to show (0 = default)",
	}
}

func loadSettings(c *cli.Context) *config.Settings {
	settings := config.FromEnv(slog.Default())
	if root := c.String("data-root"); root != "" {
		settings.DataRoot = root
	}
	return settings
}

func openService(c *cli.Context) (*ingsvc.Service, error) {
	svc, err := ingsvc.NewService(loadSettings(c))
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}
	return svc, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func captureCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	captured, err := svc.Capture(context.Background(), c.String("domain"), c.String("source"), c.String("url"))
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	return printJSON(captured)
}

func captureFileCommand(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	captured, err := svc.CaptureFile(context.Background(), c.String("domain"), c.String("source"), c.String("file"), data)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	return printJSON(captured)
}

func quarantineCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	captured, err := svc.Quarantine(context.Background(), c.String("domain"), c.String("source"), c.String("reason"))
	if err != nil {
		return fmt.Errorf("quarantine failed: %w", err)
	}
	return printJSON(captured)
}

func capturesCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	captures, err := svc.ListCaptures(context.Background(), c.String("domain"))
	if err != nil {
		return fmt.Errorf("failed to list captures: %w", err)
	}
	return printJSON(captures)
}

func ingestCommand(c *cli.Context) error {
	rawHTML := c.String("raw-html")
	rawPath := c.String("raw-html-path")
	if rawHTML != "" || rawPath != "" {
		sources := c.StringSlice("source")
		if len(sources) != 1 {
			return fmt.Errorf("exactly one --source is required with --raw-html or --raw-html-path")
		}

		svc, err := openService(c)
		if err != nil {
			return err
		}
		defer svc.Close()

		rel, counts, err := svc.Ingest(context.Background(),
			c.String("domain"), c.String("release"),
			ingest.SourceRef{SourceID: sources[0], RawHTML: rawHTML, Path: rawPath},
			ingest.RunOptions{
				CreatedBy: c.String("created-by"),
				Force:     c.Bool("force"),
			})
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		return printJSON(struct {
			Release *core.Release `json:"release"`
			Counts  core.Counts   `json:"counts"`
		}{Release: rel, Counts: counts})
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.IngestBatch(context.Background(),
		c.String("domain"), c.String("release"), c.StringSlice("source"),
		ingest.BatchOptions{
			CreatedBy:       c.String("created-by"),
			Force:           c.Bool("force"),
			ContinueOnError: c.Bool("continue-on-error"),
		})
	if result != nil {
		if printErr := printJSON(result); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func releasesCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	releases, err := svc.ListReleases(ctx, c.String("domain"))
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}
	activeID := ""
	if active, err := svc.ActiveRelease(ctx, c.String("domain")); err == nil {
		activeID = active.ReleaseID
	}
	return printJSON(struct {
		ActiveReleaseID string          `json:"active_release_id,omitempty"`
		Releases        []*core.Release `json:"releases"`
	}{ActiveReleaseID: activeID, Releases: releases})
}

func promoteCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	event, err := svc.Promote(context.Background(),
		c.String("domain"), c.String("release"), c.String("actor"), c.String("reason"))
	if err != nil {
		return fmt.Errorf("promotion failed: %w", err)
	}
	return printJSON(event)
}

func mergeCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Merge(context.Background(),
		c.String("domain"), c.String("target"), c.StringSlice("source"), c.String("created-by"))
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return printJSON(result)
}

func auditCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	events, err := svc.Audit(context.Background(), c.String("domain"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	return printJSON(events)
}

func queryCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query text is required")
	}
	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.Query(context.Background(), search.Request{
		Domain:    c.String("domain"),
		ReleaseID: c.String("release"),
		Query:     query,
		Filters:   filters,
		TopK:      c.Int("top-k"),
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printJSON(resp)
}

func eventsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	events, err := svc.Events(context.Background(), c.String("domain"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	return printJSON(events)
}

func metricsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	metrics, err := svc.Metrics(context.Background(), c.String("domain"), c.Int("window-hours"))
	if err != nil {
		return fmt.Errorf("failed to compute metrics: %w", err)
	}
	return printJSON(metrics)
}

func compactCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	kept, err := svc.Compact(context.Background(), c.String("domain"), c.String("release"))
	if err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Kept %d index entries\n", kept)
	return nil
}

// reembedCommand wires its own components so the embedding host and model
// can differ from the service defaults.
func reembedCommand(c *cli.Context) error {
	settings := loadSettings(c)
	if err := settings.Validate(); err != nil {
		return err
	}

	embedder, err := reembedEmbedder(c, settings)
	if err != nil {
		return err
	}

	layout := storage.NewLayout(settings.DataRoot)
	artifacts := file.NewStore(layout)
	index := vector.NewStore(layout)
	releases, err := release.NewManager(layout, artifacts, index)
	if err != nil {
		return err
	}

	reembedder, err := reindex.NewReembedder(artifacts, releases, index, embedder,
		reindex.WithBatchSize(c.Int("batch-size")),
		reindex.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
		reindex.WithProgressWriter(os.Stderr),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Data root: %s\n", settings.DataRoot)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", embedder.Info().Model)
	fmt.Fprintln(os.Stderr)

	result, err := reembedder.Run(context.Background(),
		c.String("domain"), c.String("source-release"), c.String("target-release"), c.String("created-by"))
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Rebuilt %d chunks in %d batches (%s)\n",
		result.Chunks, result.Batches, result.Elapsed.Round(time.Millisecond))
	return printJSON(result.Release)
}

func reembedEmbedder(c *cli.Context, settings *config.Settings) (ai.Embedder, error) {
	host := settings.EmbedHost
	if v := c.String("embedding-host"); v != "" {
		host = v
	}
	model := settings.EmbedModel
	if v := c.String("embedding-model"); v != "" {
		model = v
	}
	if settings.EmbedProvider == "hash" && c.String("embedding-model") == "" {
		return hash.NewEmbedder(settings.EmbedDimension), nil
	}
	return openai.NewEmbedder(ai.NewConfig(ai.WithHost(host), ai.WithModel(model)))
}

// parseFilters turns repeated key=value flags into a filter map.
func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
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
