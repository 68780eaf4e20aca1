package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/derrickSh43/ingestion/core"
)

// SourceRef names the content one run ingests: inline raw HTML, a local
// file path, or an already stored capture. Inline and path content is
// stored as a capture before the run so the integrity envelope covers
// every ingested byte. Resolution precedence is RawHTML, then Path, then
// the stored capture.
type SourceRef struct {
	// SourceID scopes the produced artifacts. Defaults to CaptureID.
	SourceID string `json:"source_id,omitempty"`

	// RawHTML is inline content, stored as a capture before the run.
	RawHTML string `json:"raw_html,omitempty"`

	// Path is a local file stored as a capture before the run.
	Path string `json:"path,omitempty"`

	// CaptureID names a stored capture to ingest. Captures are keyed by
	// their source id, so when both are set they must agree.
	CaptureID string `json:"capture_id,omitempty"`
}

// ID is the source id the run ingests under.
func (r SourceRef) ID() string {
	if r.SourceID != "" {
		return r.SourceID
	}
	return r.CaptureID
}

// Validate checks the reference names exactly one content origin and a
// usable source id.
func (r SourceRef) Validate() error {
	if r.RawHTML != "" && r.Path != "" {
		return fmt.Errorf("%w: raw html and path are mutually exclusive", core.ErrValidation)
	}
	if r.CaptureID != "" && (r.RawHTML != "" || r.Path != "") {
		return fmt.Errorf("%w: capture id and inline content are mutually exclusive", core.ErrValidation)
	}
	if r.SourceID != "" && r.CaptureID != "" && r.SourceID != r.CaptureID {
		return fmt.Errorf("%w: capture %q cannot be ingested under source id %q", core.ErrValidation, r.CaptureID, r.SourceID)
	}
	return core.ValidateSourceID(r.ID())
}

// readSourceFile loads a Path reference from disk.
func readSourceFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
		}
		return "", nil, err
	}
	return filepath.Base(path), data, nil
}
