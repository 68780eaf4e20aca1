package file

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

// Store implements storage.ArtifactStore on the local filesystem. Each
// artifact is one JSON file named by its deterministic id, so writes are
// natural upserts and the data root stays inspectable with standard tools.
type Store struct {
	layout storage.Layout
	logger *slog.Logger
}

var _ storage.ArtifactStore = (*Store)(nil)

// NewStore creates a Store over the given layout.
func NewStore(layout storage.Layout) *Store {
	return &Store{
		layout: layout,
		logger: slog.Default().With("component", "artifact-store"),
	}
}

// PutCanonical writes a canonical object to its release directory.
func (s *Store) PutCanonical(ctx context.Context, obj *core.CanonicalObject) error {
	if err := core.ValidateScope(obj.Domain, obj.Provenance.ReleaseID); err != nil {
		return err
	}
	return s.writeJSON(ctx, s.layout.CanonicalDir(obj.Domain, obj.Provenance.ReleaseID), obj.ID, "canonical object", obj)
}

// ListCanonical reads all canonical objects for a release, ordered by id.
func (s *Store) ListCanonical(ctx context.Context, domain, releaseID string) ([]*core.CanonicalObject, error) {
	var out []*core.CanonicalObject
	err := s.readAll(ctx, s.layout.CanonicalDir(domain, releaseID), "canonical object", func(data []byte) error {
		var obj core.CanonicalObject
		if err := storage.UnmarshalJSON("canonical object", data, &obj); err != nil {
			return err
		}
		out = append(out, &obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutChunk writes a chunk to its release directory.
func (s *Store) PutChunk(ctx context.Context, chunk *core.Chunk) error {
	if err := core.ValidateScope(chunk.Domain, chunk.ReleaseID); err != nil {
		return err
	}
	return s.writeJSON(ctx, s.layout.ChunksDir(chunk.Domain, chunk.ReleaseID), chunk.ChunkID, "chunk", chunk)
}

// ListChunks reads all chunks for a release, ordered by chunk id.
func (s *Store) ListChunks(ctx context.Context, domain, releaseID string) ([]*core.Chunk, error) {
	var out []*core.Chunk
	err := s.readAll(ctx, s.layout.ChunksDir(domain, releaseID), "chunk", func(data []byte) error {
		var chunk core.Chunk
		if err := storage.UnmarshalJSON("chunk", data, &chunk); err != nil {
			return err
		}
		out = append(out, &chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutEmbedding writes a chunk embedding, keyed by chunk id so a re-run
// replaces the previous vector instead of accumulating files.
func (s *Store) PutEmbedding(ctx context.Context, emb *core.Embedding) error {
	if err := core.ValidateScope(emb.Domain, emb.ReleaseID); err != nil {
		return err
	}
	return s.writeJSON(ctx, s.layout.EmbeddingsDir(emb.Domain, emb.ReleaseID), emb.ChunkID, "embedding", emb)
}

// ListEmbeddings reads all embeddings for a release, ordered by chunk id.
func (s *Store) ListEmbeddings(ctx context.Context, domain, releaseID string) ([]*core.Embedding, error) {
	var out []*core.Embedding
	err := s.readAll(ctx, s.layout.EmbeddingsDir(domain, releaseID), "embedding", func(data []byte) error {
		var emb core.Embedding
		if err := storage.UnmarshalJSON("embedding", data, &emb); err != nil {
			return err
		}
		out = append(out, &emb)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) writeJSON(ctx context.Context, dir, id, what string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.MarshalJSON(what, v)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(filepath.Join(dir, id+".json"), data, 0644)
}

// readAll visits every artifact file in dir in filename order. A missing
// directory means the release simply has no artifacts of this kind.
func (s *Store) readAll(ctx context.Context, dir, what string, visit func(data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := visit(data); err != nil {
			s.logger.Error("failed to decode artifact", "kind", what, "file", name, "err", err)
			return err
		}
	}
	return nil
}
