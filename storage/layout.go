package storage

import "path/filepath"

// Layout computes every path under the data root. All release-scoped
// artifacts live at <root>/<kind>/<domain>/<release_id>/.
type Layout struct {
	Root string
}

// NewLayout creates a Layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

// CaptureDBDir is the badger directory backing the capture store.
func (l Layout) CaptureDBDir() string {
	return filepath.Join(l.Root, "captures")
}

// CanonicalDir holds one JSON file per canonical object.
func (l Layout) CanonicalDir(domain, releaseID string) string {
	return filepath.Join(l.Root, "canonical", domain, releaseID)
}

// ChunksDir holds one JSON file per chunk.
func (l Layout) ChunksDir(domain, releaseID string) string {
	return filepath.Join(l.Root, "chunks", domain, releaseID)
}

// EmbeddingsDir holds one JSON file per chunk embedding, named by chunk id.
func (l Layout) EmbeddingsDir(domain, releaseID string) string {
	return filepath.Join(l.Root, "embeddings", domain, releaseID)
}

// VectorIndexFile is the append-only index log for a release.
func (l Layout) VectorIndexFile(domain, releaseID string) string {
	return filepath.Join(l.Root, "vector_index", domain, releaseID, "index.jsonl")
}

// DomainReleasesDir is the per-domain release area.
func (l Layout) DomainReleasesDir(domain string) string {
	return filepath.Join(l.Root, "releases", domain)
}

// ReleaseFile is the metadata record for one release.
func (l Layout) ReleaseFile(domain, releaseID string) string {
	return filepath.Join(l.DomainReleasesDir(domain), "releases", releaseID, "release.json")
}

// ReleasesDir holds one subdirectory per release.
func (l Layout) ReleasesDir(domain string) string {
	return filepath.Join(l.DomainReleasesDir(domain), "releases")
}

// ActivePointerFile names the domain's active release. It is replaced
// atomically on promotion.
func (l Layout) ActivePointerFile(domain string) string {
	return filepath.Join(l.DomainReleasesDir(domain), "active_release.txt")
}

// AuditFile is the append-only promotion audit log for a domain.
func (l Layout) AuditFile(domain string) string {
	return filepath.Join(l.DomainReleasesDir(domain), "audit.jsonl")
}

// PromoteLockFile is the cross-process lock taken around promotion.
func (l Layout) PromoteLockFile(domain string) string {
	return filepath.Join(l.DomainReleasesDir(domain), ".promote.lock")
}

// EventsFile is the append-only observability log for a domain.
func (l Layout) EventsFile(domain string) string {
	return filepath.Join(l.Root, "observability", domain, "events.jsonl")
}
