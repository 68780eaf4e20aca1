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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/derrickSh43/ingestion/ai"
	"github.com/derrickSh43/ingestion/ai/hash"
	"github.com/derrickSh43/ingestion/ai/openai"
	"github.com/derrickSh43/ingestion/capture"
	"github.com/derrickSh43/ingestion/config"
	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/ingest"
	"github.com/derrickSh43/ingestion/observability"
	"github.com/derrickSh43/ingestion/reindex"
	"github.com/derrickSh43/ingestion/release"
	"github.com/derrickSh43/ingestion/search"
	"github.com/derrickSh43/ingestion/storage"
	badgerstore "github.com/derrickSh43/ingestion/storage/badger"
	"github.com/derrickSh43/ingestion/storage/file"
	"github.com/derrickSh43/ingestion/vector"
)

// Service wires the capture store, artifact store, vector index, release
// manager, ingestion pipeline, searcher and event log into one boundary.
// Every mutating operation records an event in the per-domain log.
type Service struct {
	settings   *config.Settings
	layout     storage.Layout
	backend    *badgerstore.Backend
	captures   *capture.Service
	artifacts  *file.Store
	index      *vector.Store
	releases   *release.Manager
	pipeline   *ingest.Pipeline
	searcher   *search.Searcher
	reembedder *reindex.Reembedder
	events     *observability.Store
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// WithEmbedder overrides the embedder selected from settings.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService builds a Service from settings. The settings are validated
// first; the embedding provider is chosen from Settings.EmbedProvider unless
// WithEmbedder overrides it.
func NewService(settings *config.Settings, opts ...ServiceOption) (*Service, error) {
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	embedder := options.embedder
	if embedder == nil {
		var err error
		embedder, err = newEmbedder(settings)
		if err != nil {
			return nil, err
		}
	}

	layout := storage.NewLayout(settings.DataRoot)

	backend, err := badgerstore.OpenBackend(layout.CaptureDBDir(), false)
	if err != nil {
		return nil, err
	}

	captureRepo := badgerstore.NewCaptureRepository(backend)
	signer := capture.NewSigner(settings.SigningSecret)
	captures := capture.NewService(captureRepo, signer,
		capture.WithTimeout(settings.CaptureTimeout),
		capture.WithLogger(logger),
	)

	artifacts := file.NewStore(layout)
	index := vector.NewStore(layout, vector.WithLogger(logger))

	releases, err := release.NewManager(layout, artifacts, index, release.WithLogger(logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	pipeline, err := ingest.NewPipeline(captures, artifacts, releases, index, embedder,
		ingest.WithPoolSize(settings.EmbedWorkers),
		ingest.WithMaxChunkChars(settings.ChunkMaxChars),
		ingest.WithLogger(logger),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(releases, index, embedder,
		search.WithQueryMaxChars(settings.QueryMaxChars),
		search.WithLogger(logger),
	)
	if err != nil {
		pipeline.Release()
		backend.Close()
		return nil, err
	}

	reembedder, err := reindex.NewReembedder(artifacts, releases, index, embedder,
		reindex.WithLogger(logger),
	)
	if err != nil {
		pipeline.Release()
		backend.Close()
		return nil, err
	}

	return &Service{
		settings:   settings,
		layout:     layout,
		backend:    backend,
		captures:   captures,
		artifacts:  artifacts,
		index:      index,
		releases:   releases,
		pipeline:   pipeline,
		searcher:   searcher,
		reembedder: reembedder,
		events:     observability.NewStore(layout, observability.WithLogger(logger)),
		logger:     logger,
	}, nil
}

func newEmbedder(settings *config.Settings) (ai.Embedder, error) {
	switch settings.EmbedProvider {
	case "openai":
		cfg := ai.NewConfig(
			ai.WithHost(settings.EmbedHost),
			ai.WithModel(settings.EmbedModel),
		)
		return openai.NewEmbedder(cfg)
	case "hash":
		return hash.NewEmbedder(settings.EmbedDimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown embed provider %q", core.ErrValidation, settings.EmbedProvider)
	}
}

// Close releases the worker pool and the capture store.
func (s *Service) Close() error {
	s.pipeline.Release()
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing capture backend", "err", err)
		return err
	}
	return nil
}

// Capture fetches url and stores the result for (domain, sourceID).
func (s *Service) Capture(ctx context.Context, domain, sourceID, url string) (*core.Capture, error) {
	c, err := s.captures.Fetch(ctx, domain, sourceID, url)
	s.recordCapture(ctx, domain, sourceID, c, err)
	return c, err
}

// CaptureFile stores an uploaded file as a capture for (domain, sourceID).
func (s *Service) CaptureFile(ctx context.Context, domain, sourceID, filename string, data []byte) (*core.Capture, error) {
	c, err := s.captures.FromFile(ctx, domain, sourceID, filename, data)
	s.recordCapture(ctx, domain, sourceID, c, err)
	return c, err
}

// Quarantine marks the capture for (domain, sourceID) as quarantined.
func (s *Service) Quarantine(ctx context.Context, domain, sourceID, reason string) (*core.Capture, error) {
	c, err := s.captures.Quarantine(ctx, domain, sourceID, reason)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &observability.Event{
		Domain:   domain,
		Event:    observability.EventQuarantine,
		Level:    observability.LevelWarn,
		SourceID: sourceID,
		Fields:   map[string]string{"reason": c.QuarantineReason},
	})
	return c, nil
}

// GetCapture returns the stored capture for (domain, sourceID).
func (s *Service) GetCapture(ctx context.Context, domain, sourceID string) (*core.Capture, error) {
	return s.captures.Get(ctx, domain, sourceID)
}

// ListCaptures returns all captures for a domain.
func (s *Service) ListCaptures(ctx context.Context, domain string) ([]*core.Capture, error) {
	return s.captures.List(ctx, domain)
}

// Ingest runs the pipeline for one source reference into a candidate
// release: inline raw HTML, a local file path, or a stored capture. If
// releaseID is empty a fresh release id is minted.
func (s *Service) Ingest(ctx context.Context, domain, releaseID string, ref ingest.SourceRef, opts ingest.RunOptions) (*core.Release, core.Counts, error) {
	rel, counts, err := s.pipeline.RunRef(ctx, domain, releaseID, ref, opts)
	if rel != nil {
		releaseID = rel.ReleaseID
	}
	s.recordIngest(ctx, domain, releaseID, ref.ID(), counts, err)
	return rel, counts, err
}

// IngestBatch runs the pipeline for several sources into one candidate
// release, minting a release id when releaseID is empty.
func (s *Service) IngestBatch(ctx context.Context, domain, releaseID string, sourceIDs []string, opts ingest.BatchOptions) (*ingest.BatchResult, error) {
	result, err := s.pipeline.RunBatch(ctx, domain, releaseID, sourceIDs, opts)
	if result != nil {
		for _, item := range result.Items {
			s.recordIngest(ctx, domain, result.ReleaseID, item.SourceID, item.Counts, item.Err)
		}
	}
	return result, err
}

// GetRelease returns one release.
func (s *Service) GetRelease(ctx context.Context, domain, releaseID string) (*core.Release, error) {
	return s.releases.Get(ctx, domain, releaseID)
}

// ListReleases returns all releases for a domain ordered by id.
func (s *Service) ListReleases(ctx context.Context, domain string) ([]*core.Release, error) {
	return s.releases.List(ctx, domain)
}

// ActiveRelease returns the domain's active release.
func (s *Service) ActiveRelease(ctx context.Context, domain string) (*core.Release, error) {
	return s.releases.Active(ctx, domain)
}

// Promote makes releaseID the domain's active release. Promoting a retired
// release rolls the domain back to it.
func (s *Service) Promote(ctx context.Context, domain, releaseID, actor, reason string) (*core.AuditEvent, error) {
	event, err := s.releases.Promote(ctx, domain, releaseID, actor, reason)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &observability.Event{
		Domain:    domain,
		Event:     observability.EventReleasePromoted,
		ReleaseID: releaseID,
		Fields:    map[string]string{"actor": actor, "previous": event.PreviousReleaseID},
	})
	return event, nil
}

// Merge combines several releases into a new candidate release.
func (s *Service) Merge(ctx context.Context, domain, targetID string, sourceReleaseIDs []string, createdBy string) (*release.MergeResult, error) {
	result, err := s.releases.Merge(ctx, domain, targetID, sourceReleaseIDs, createdBy)
	if err != nil {
		return nil, err
	}
	s.record(ctx, &observability.Event{
		Domain:    domain,
		Event:     observability.EventReleaseMerged,
		ReleaseID: targetID,
		Fields: map[string]string{
			"sources":    strconv.Itoa(len(sourceReleaseIDs)),
			"duplicates": strconv.Itoa(result.Duplicates),
		},
	})
	return result, nil
}

// Audit returns a domain's promotion history, newest first.
func (s *Service) Audit(ctx context.Context, domain string, limit int) ([]*core.AuditEvent, error) {
	return s.releases.Audit(ctx, domain, limit)
}

// Query runs a retrieval query against a domain's active release, or an
// explicit release when req.ReleaseID is set.
func (s *Service) Query(ctx context.Context, req search.Request) (*search.Response, error) {
	resp, err := s.searcher.Search(ctx, req)
	event := &observability.Event{
		Domain:    req.Domain,
		Event:     observability.EventRetrievalQuery,
		ReleaseID: req.ReleaseID,
	}
	if err != nil {
		event.Status = observability.StatusError
		event.Level = observability.LevelError
		event.Error = err.Error()
	} else {
		event.ReleaseID = resp.ReleaseID
		event.Fields = map[string]string{"hits": strconv.Itoa(len(resp.Hits))}
	}
	s.record(ctx, event)
	return resp, err
}

// Events returns a domain's most recent operational events, newest first.
func (s *Service) Events(ctx context.Context, domain string, limit int) ([]*observability.Event, error) {
	return s.events.ListEvents(ctx, domain, limit)
}

// Metrics aggregates a domain's recent events over a window.
func (s *Service) Metrics(ctx context.Context, domain string, windowHours int) (*observability.Metrics, error) {
	return s.events.Metrics(ctx, domain, windowHours)
}

// Compact rewrites a release's vector index to its latest-wins snapshot and
// returns the number of entries kept.
func (s *Service) Compact(ctx context.Context, domain, releaseID string) (int, error) {
	return s.index.Compact(ctx, domain, releaseID)
}

// Reembed rebuilds sourceReleaseID into a new candidate targetReleaseID with
// the service's embedder.
func (s *Service) Reembed(ctx context.Context, domain, sourceReleaseID, targetReleaseID, createdBy string) (*reindex.Result, error) {
	return s.reembedder.Run(ctx, domain, sourceReleaseID, targetReleaseID, createdBy)
}

func (s *Service) recordCapture(ctx context.Context, domain, sourceID string, c *core.Capture, err error) {
	event := &observability.Event{
		Domain:   domain,
		Event:    observability.EventCapture,
		SourceID: sourceID,
	}
	switch {
	case err != nil:
		event.Status = observability.StatusError
		event.Level = observability.LevelError
		event.Error = err.Error()
	case c.Quarantined:
		event.Event = observability.EventQuarantine
		event.Level = observability.LevelWarn
		event.Fields = map[string]string{"reason": c.QuarantineReason}
	}
	s.record(ctx, event)
}

func (s *Service) recordIngest(ctx context.Context, domain, releaseID, sourceID string, counts core.Counts, err error) {
	event := &observability.Event{
		Domain:    domain,
		Event:     observability.EventIngest,
		SourceID:  sourceID,
		ReleaseID: releaseID,
	}
	if err != nil {
		event.Status = observability.StatusError
		event.Level = observability.LevelError
		event.Error = err.Error()
		if errors.Is(err, core.ErrIntegrity) {
			event.Event = observability.EventIntegrityFailure
		}
	} else {
		event.Fields = map[string]string{
			"sections_kept": strconv.Itoa(counts.SectionsKept),
			"chunks":        strconv.Itoa(counts.Chunks),
		}
	}
	s.record(ctx, event)
}

// record never fails the operation it annotates.
func (s *Service) record(ctx context.Context, event *observability.Event) {
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.Warn("event record failed", "domain", event.Domain, "event", event.Event, "err", err)
	}
}
