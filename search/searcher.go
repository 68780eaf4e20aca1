package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/derrickSh43/ingestion/ai"
	"github.com/derrickSh43/ingestion/core"
)

// DefaultQueryMaxChars bounds query text before embedding when no override
// is configured.
const DefaultQueryMaxChars = 2000

// ReleaseResolver maps a domain to the release a query should run against.
type ReleaseResolver interface {
	ActiveID(ctx context.Context, domain string) (string, error)
	Get(ctx context.Context, domain, releaseID string) (*core.Release, error)
}

// Index answers similarity queries against a release.
type Index interface {
	Query(ctx context.Context, domain, releaseID string, queryVector []float32, filters map[string]string, topK int) ([]core.SearchResult, error)
}

// Request is one retrieval query. ReleaseID is optional; when empty the
// domain's active release is used.
type Request struct {
	Domain    string
	ReleaseID string
	Query     string
	Filters   map[string]string
	TopK      int
}

// Hit is one ranked result. Verbatim marks hits whose text contains every
// significant query word, which callers may surface separately.
type Hit struct {
	Entry    *core.IndexEntry `json:"entry"`
	Score    float32          `json:"score"`
	Verbatim bool             `json:"verbatim,omitempty"`
}

// Response is the outcome of a retrieval query, including the release it
// actually ran against and any non-fatal warnings.
type Response struct {
	Domain    string   `json:"domain"`
	ReleaseID string   `json:"release_id"`
	Query     string   `json:"query"`
	Hits      []Hit    `json:"hits"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Searcher runs retrieval queries: resolve the release, embed the query, and
// rank the release's index entries by cosine similarity.
type Searcher struct {
	releases      ReleaseResolver
	index         Index
	embedder      ai.Embedder
	queryMaxChars int
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithQueryMaxChars bounds query text length before embedding.
// Default is DefaultQueryMaxChars.
func WithQueryMaxChars(n int) Option {
	return func(s *Searcher) error {
		if n > 0 {
			s.queryMaxChars = n
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(releases ReleaseResolver, index Index, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if releases == nil {
		return nil, ErrReleaseResolverRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		releases:      releases,
		index:         index,
		embedder:      embedder,
		queryMaxChars: DefaultQueryMaxChars,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")
	return s, nil
}

// Search runs a retrieval query.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	return s.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor runs a retrieval query with stage callbacks.
func (s *Searcher) SearchWithMonitor(ctx context.Context, req Request, monitor SearchMonitor) (*Response, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateDomain(req.Domain); err != nil {
		return nil, err
	}
	query := s.trimQuery(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query text is required: %w", core.ErrValidation)
	}

	releaseID := req.ReleaseID
	if releaseID == "" {
		id, err := s.releases.ActiveID(ctx, req.Domain)
		if err != nil {
			return nil, err
		}
		releaseID = id
	} else {
		if _, err := s.releases.Get(ctx, req.Domain, releaseID); err != nil {
			return nil, err
		}
	}
	monitor.Start(req.Domain, releaseID, query)

	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error embedding query", "domain", req.Domain, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(vec)

	results, err := s.index.Query(ctx, req.Domain, releaseID, vec, req.Filters, req.TopK)
	if err != nil {
		return nil, err
	}
	monitor.AfterIndexQuery(results)

	resp := &Response{
		Domain:    req.Domain,
		ReleaseID: releaseID,
		Query:     query,
		Hits:      make([]Hit, 0, len(results)),
	}
	for _, r := range results {
		resp.Hits = append(resp.Hits, Hit{
			Entry:    r.Entry,
			Score:    r.Score,
			Verbatim: containsAllQueryWords(r.Entry.Text, query),
		})
	}
	resp.Warnings = s.modelWarnings(results)

	s.logger.Info("search completed",
		"domain", req.Domain, "release_id", releaseID,
		"hits", len(resp.Hits), "warnings", len(resp.Warnings))
	monitor.Finish(resp)
	return resp, nil
}

// trimQuery bounds the query length in runes so a cut never splits a
// multi-byte character.
func (s *Searcher) trimQuery(query string) string {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) <= s.queryMaxChars {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:s.queryMaxChars])
}

// modelWarnings reports, once per response, when the index was built with a
// different embedding provider or model than the query used. Scores are
// still returned; the caller decides how much to trust them.
func (s *Searcher) modelWarnings(results []core.SearchResult) []string {
	if len(results) == 0 {
		return nil
	}
	info := s.embedder.Info()
	e := results[0].Entry
	if e.Provider == info.Provider && e.Model == info.Model {
		return nil
	}
	return []string{fmt.Sprintf(
		"embedding model mismatch: index built with %s/%s, query embedded with %s/%s; similarity scores may be unreliable",
		e.Provider, e.Model, info.Provider, info.Model)}
}
