package core

import "time"

// Capture is the stored record of a single source acquisition. The raw bytes
// live next to it in the capture store; Capture carries the metadata and the
// integrity envelope.
type Capture struct {
	SourceID         string            `json:"source_id"`
	Domain           string            `json:"domain"`
	URL              string            `json:"url,omitempty"`
	HTTPStatus       int               `json:"http_status"`
	Headers          map[string]string `json:"headers,omitempty"`
	ContentHash      string            `json:"content_hash"`      // "sha256:<hex>"
	ContentSignature string            `json:"content_signature"` // "hmac-sha256:<hex>"
	RetrievedAt      time.Time         `json:"retrieved_at"`
	CaptureOK        bool              `json:"capture_ok"`
	Quarantined      bool              `json:"quarantined"`
	QuarantineReason string            `json:"quarantine_reason,omitempty"`
	QuarantinedAt    time.Time         `json:"quarantined_at,omitzero"`
}

// Section is a distilled block of source content, grouped under the nearest
// heading. Kind is a coarse guess used by the classifier (howto, example,
// definition, note, explanation).
type Section struct {
	SectionID string `json:"section_id"`
	Domain    string `json:"domain"`
	Kind      string `json:"kind"`
	Title     string `json:"title,omitempty"`
	CleanText string `json:"clean_text"`
}

// Provenance ties a derived artifact back to the source and release that
// produced it.
type Provenance struct {
	SourceID  string `json:"source_id"`
	ReleaseID string `json:"release_id"`
}

// CanonicalObject is the durable form of a kept section. Body holds the
// section text split into paragraphs.
type CanonicalObject struct {
	ID         string     `json:"id"`
	Domain     string     `json:"domain"`
	Title      string     `json:"title"`
	Body       []string   `json:"body"`
	Provenance Provenance `json:"provenance"`
}

// Chunk is a bounded slice of a canonical object, sized for embedding.
// Sequence is the chunk's position within its canonical object.
type Chunk struct {
	ChunkID           string `json:"chunk_id"`
	Domain            string `json:"domain"`
	ReleaseID         string `json:"release_id"`
	CanonicalObjectID string `json:"canonical_object_id"`
	Sequence          int    `json:"sequence"`
	Title             string `json:"title,omitempty"`
	Text              string `json:"text"`
}

// Embedding is the persisted vector for a chunk, stamped with the provider
// and model that produced it.
type Embedding struct {
	ChunkID   string    `json:"chunk_id"`
	Domain    string    `json:"domain"`
	ReleaseID string    `json:"release_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// IndexEntry is one row of a release's vector index. Entries are denormalized
// so queries never need to join back to chunk or embedding files.
type IndexEntry struct {
	ChunkID           string            `json:"chunk_id"`
	CanonicalObjectID string            `json:"canonical_object_id"`
	Domain            string            `json:"domain"`
	ReleaseID         string            `json:"release_id"`
	Sequence          int               `json:"sequence"`
	Title             string            `json:"title,omitempty"`
	Text              string            `json:"text"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Vector            []float32         `json:"vector"`
	Provider          string            `json:"provider"`
	Model             string            `json:"model"`
	Dimension         int               `json:"dimension"`
	IndexedAt         time.Time         `json:"indexed_at"`
}

// ReleaseStatus is the lifecycle state of a release.
type ReleaseStatus string

const (
	// ReleaseStatusCandidate is a release that has been created but never promoted.
	ReleaseStatusCandidate ReleaseStatus = "candidate"
	// ReleaseStatusActive is the single release currently serving queries for a domain.
	ReleaseStatusActive ReleaseStatus = "active"
	// ReleaseStatusRetired is a previously active release. Retired releases stay
	// queryable by explicit id and can be promoted again.
	ReleaseStatusRetired ReleaseStatus = "retired"
)

// Counts summarizes what one pipeline run produced.
type Counts struct {
	SectionsTotal    int `json:"sections_total"`
	SectionsKept     int `json:"sections_kept"`
	CanonicalObjects int `json:"canonical_objects"`
	Chunks           int `json:"chunks"`
	Embeddings       int `json:"embeddings"`
}

// Add returns the element-wise sum of two Counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		SectionsTotal:    c.SectionsTotal + o.SectionsTotal,
		SectionsKept:     c.SectionsKept + o.SectionsKept,
		CanonicalObjects: c.CanonicalObjects + o.CanonicalObjects,
		Chunks:           c.Chunks + o.Chunks,
		Embeddings:       c.Embeddings + o.Embeddings,
	}
}

// Release is the metadata record for a versioned snapshot of a domain.
// Sources maps source_id to the counts contributed by that source, so
// re-running a source replaces its entry instead of double counting.
type Release struct {
	ReleaseID        string            `json:"release_id"`
	Domain           string            `json:"domain"`
	Status           ReleaseStatus     `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	CreatedBy        string            `json:"created_by,omitempty"`
	Mode             string            `json:"mode,omitempty"`
	Sources          map[string]Counts `json:"sources,omitempty"`
	SourceReleaseIDs []string          `json:"source_release_ids,omitempty"`
}

// Totals sums the per-source counts for the release.
func (r *Release) Totals() Counts {
	var total Counts
	for _, c := range r.Sources {
		total = total.Add(c)
	}
	return total
}

// AuditEvent records one promotion of a release to active.
type AuditEvent struct {
	Domain            string    `json:"domain"`
	ReleaseID         string    `json:"release_id"`
	PreviousReleaseID string    `json:"previous_release_id,omitempty"`
	Actor             string    `json:"actor,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// SearchResult pairs an index entry with its similarity score.
type SearchResult struct {
	Entry *IndexEntry
	Score float32
}
