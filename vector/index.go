package vector

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

const (
	// DefaultTopK is the result count when a query asks for none.
	DefaultTopK = 5
	// MaxTopK caps how many results a single query may request.
	MaxTopK = 50
)

// Store is an append-only vector index. Each release owns one JSONL log;
// writes append full entries and reads fold the log with latest-wins
// semantics per chunk id, so re-indexing a chunk supersedes earlier rows
// without rewriting the file.
type Store struct {
	layout storage.Layout
	mu     sync.Mutex
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a vector index over the given layout.
func NewStore(layout storage.Layout, opts ...Option) *Store {
	s := &Store{
		layout: layout,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "vector-index")
	return s
}

// Upsert appends entries to their release's index log. Entries for several
// releases may be mixed in one call; each is validated before any write.
func (s *Store) Upsert(ctx context.Context, entries []*core.IndexEntry) error {
	for _, e := range entries {
		if err := core.ValidateIndexEntry(e); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := storage.MarshalJSON("index entry", e)
		if err != nil {
			return err
		}
		if err := storage.AppendLine(s.layout.VectorIndexFile(e.Domain, e.ReleaseID), line); err != nil {
			return err
		}
	}
	return nil
}

// Load folds a release's log into its current snapshot: the newest row per
// chunk id, ordered by chunk id. A release with no index yields an empty
// snapshot, not an error.
func (s *Store) Load(ctx context.Context, domain, releaseID string) ([]*core.IndexEntry, error) {
	if err := core.ValidateScope(domain, releaseID); err != nil {
		return nil, err
	}
	lines, err := storage.ReadLines(s.layout.VectorIndexFile(domain, releaseID))
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*core.IndexEntry, len(lines))
	for _, line := range lines {
		var e core.IndexEntry
		if err := storage.UnmarshalJSON("index entry", line, &e); err != nil {
			return nil, err
		}
		latest[e.ChunkID] = &e
	}
	out := make([]*core.IndexEntry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out, nil
}

// Compact rewrites a release's log to its folded snapshot, dropping
// superseded rows. The replacement is atomic; a reader sees either the old
// log or the compacted one.
func (s *Store) Compact(ctx context.Context, domain, releaseID string) (int, error) {
	snapshot, err := s.Load(ctx, domain, releaseID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf []byte
	for _, e := range snapshot {
		line, err := storage.MarshalJSON("index entry", e)
		if err != nil {
			return 0, err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := storage.WriteFileAtomic(s.layout.VectorIndexFile(domain, releaseID), buf, 0o644); err != nil {
		return 0, err
	}
	s.logger.Info("index compacted", "domain", domain, "release_id", releaseID, "entries", len(snapshot))
	return len(snapshot), nil
}

// Query scores the release snapshot against queryVector by cosine
// similarity. Filters are exact string matches applied before ranking.
// Results come back highest score first with chunk id as the tiebreak,
// capped at topK. A query vector whose length disagrees with the index
// dimension is a hard error.
func (s *Store) Query(ctx context.Context, domain, releaseID string, queryVector []float32, filters map[string]string, topK int) ([]core.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	snapshot, err := s.Load(ctx, domain, releaseID)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, nil
	}
	if dim := snapshot[0].Dimension; dim > 0 && len(queryVector) != dim {
		return nil, &core.DimensionMismatchError{Got: len(queryVector), Want: dim}
	}

	results := make([]core.SearchResult, 0, len(snapshot))
	for _, e := range snapshot {
		if !matchesFilters(e, filters) {
			continue
		}
		results = append(results, core.SearchResult{
			Entry: e,
			Score: cosine(queryVector, e.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.ChunkID < results[j].Entry.ChunkID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// matchesFilters requires every non-empty filter value to equal the entry's
// field of the same name, falling back to entry metadata for unknown keys.
func matchesFilters(e *core.IndexEntry, filters map[string]string) bool {
	for k, v := range filters {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		var actual string
		switch k {
		case "chunk_id":
			actual = e.ChunkID
		case "canonical_object_id":
			actual = e.CanonicalObjectID
		case "title":
			actual = e.Title
		case "provider":
			actual = e.Provider
		case "model":
			actual = e.Model
		default:
			actual = e.Metadata[k]
		}
		if actual != v {
			return false
		}
	}
	return true
}

// cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, the lengths differ, or a norm vanishes.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
