package release

import (
	"context"
	"fmt"
	"time"

	"github.com/derrickSh43/ingestion/core"
)

// MergeResult reports what a merge produced: the new candidate release,
// per-source-release counts of copied artifacts, and how many chunks were
// skipped as duplicates.
type MergeResult struct {
	Release    *core.Release          `json:"release"`
	PerRelease map[string]core.Counts `json:"per_release"`
	Duplicates int                    `json:"duplicates"`
}

// Merge combines two or more releases of a domain into a new candidate
// release. Artifacts are copied in source order and rescoped to the target;
// when the same chunk id appears in several sources the first occurrence
// wins. The target must not exist yet and is never promoted implicitly.
func (m *Manager) Merge(ctx context.Context, domain, targetID string, sourceReleaseIDs []string, createdBy string) (*MergeResult, error) {
	if err := core.ValidateScope(domain, targetID); err != nil {
		return nil, err
	}
	if len(sourceReleaseIDs) < 2 {
		return nil, fmt.Errorf("merge needs at least two source releases, got %d: %w", len(sourceReleaseIDs), core.ErrValidation)
	}
	seen := make(map[string]struct{}, len(sourceReleaseIDs))
	for _, id := range sourceReleaseIDs {
		if err := core.ValidateReleaseID(id); err != nil {
			return nil, err
		}
		if id == targetID {
			return nil, fmt.Errorf("merge target %s cannot be one of its sources: %w", targetID, core.ErrValidation)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate source release %s: %w", id, core.ErrValidation)
		}
		seen[id] = struct{}{}
		if _, err := m.Get(ctx, domain, id); err != nil {
			return nil, err
		}
	}

	target, err := m.Create(ctx, domain, targetID, createdBy)
	if err != nil {
		return nil, err
	}
	target.Mode = "merge"
	target.SourceReleaseIDs = append([]string(nil), sourceReleaseIDs...)

	result := &MergeResult{
		Release:    target,
		PerRelease: make(map[string]core.Counts, len(sourceReleaseIDs)),
	}
	seenCLOs := make(map[string]struct{})
	seenChunks := make(map[string]struct{})
	now := time.Now().UTC()

	for _, srcID := range sourceReleaseIDs {
		var counts core.Counts

		clos, err := m.artifacts.ListCanonical(ctx, domain, srcID)
		if err != nil {
			return nil, err
		}
		for _, clo := range clos {
			if _, dup := seenCLOs[clo.ID]; dup {
				continue
			}
			seenCLOs[clo.ID] = struct{}{}
			cp := *clo
			cp.Provenance.ReleaseID = targetID
			if err := m.artifacts.PutCanonical(ctx, &cp); err != nil {
				return nil, err
			}
			counts.CanonicalObjects++
		}

		chunks, err := m.artifacts.ListChunks(ctx, domain, srcID)
		if err != nil {
			return nil, err
		}
		kept := make(map[string]struct{}, len(chunks))
		for _, ch := range chunks {
			if _, dup := seenChunks[ch.ChunkID]; dup {
				result.Duplicates++
				continue
			}
			seenChunks[ch.ChunkID] = struct{}{}
			kept[ch.ChunkID] = struct{}{}
			cp := *ch
			cp.ReleaseID = targetID
			if err := m.artifacts.PutChunk(ctx, &cp); err != nil {
				return nil, err
			}
			counts.Chunks++
		}

		embs, err := m.artifacts.ListEmbeddings(ctx, domain, srcID)
		if err != nil {
			return nil, err
		}
		for _, emb := range embs {
			if _, ok := kept[emb.ChunkID]; !ok {
				continue
			}
			cp := *emb
			cp.ReleaseID = targetID
			if err := m.artifacts.PutEmbedding(ctx, &cp); err != nil {
				return nil, err
			}
			counts.Embeddings++
		}

		entries, err := m.index.Load(ctx, domain, srcID)
		if err != nil {
			return nil, err
		}
		rescoped := make([]*core.IndexEntry, 0, len(entries))
		for _, e := range entries {
			if _, ok := kept[e.ChunkID]; !ok {
				continue
			}
			cp := *e
			cp.ReleaseID = targetID
			cp.IndexedAt = now
			rescoped = append(rescoped, &cp)
		}
		if err := m.index.Upsert(ctx, rescoped); err != nil {
			return nil, err
		}

		result.PerRelease[srcID] = counts
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if target.Sources == nil {
		target.Sources = make(map[string]core.Counts)
	}
	for srcID, counts := range result.PerRelease {
		target.Sources[srcID] = counts
	}
	if err := m.write(target); err != nil {
		return nil, err
	}
	m.logger.Info("releases merged",
		"domain", domain, "target", targetID,
		"sources", len(sourceReleaseIDs), "duplicates", result.Duplicates)
	return result, nil
}
