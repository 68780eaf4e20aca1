package core

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{
			name:    "simple name",
			value:   "golang",
			wantErr: nil,
		},
		{
			name:    "name with separators",
			value:   "golang-docs_2025.1",
			wantErr: nil,
		},
		{
			name:    "empty name",
			value:   "",
			wantErr: ErrValidation,
		},
		{
			name:    "path traversal",
			value:   "../etc",
			wantErr: ErrValidation,
		},
		{
			name:    "embedded slash",
			value:   "a/b",
			wantErr: ErrValidation,
		},
		{
			name:    "leading dot",
			value:   ".hidden",
			wantErr: ErrValidation,
		},
		{
			name:    "whitespace",
			value:   "a b",
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("domain", tt.value)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateName() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateName() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateIndexEntry(t *testing.T) {
	valid := func() *IndexEntry {
		return &IndexEntry{
			ChunkID:           "chk_abc",
			CanonicalObjectID: "clo_abc",
			Domain:            "golang",
			ReleaseID:         "rel_1",
			Text:              "some text",
			Vector:            []float32{0.1, 0.2, 0.3},
			Dimension:         3,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*IndexEntry)
		wantErr error
	}{
		{
			name:    "valid entry",
			mutate:  func(e *IndexEntry) {},
			wantErr: nil,
		},
		{
			name:    "empty text",
			mutate:  func(e *IndexEntry) { e.Text = "" },
			wantErr: ErrValidation,
		},
		{
			name:    "empty vector",
			mutate:  func(e *IndexEntry) { e.Vector = nil },
			wantErr: ErrValidation,
		},
		{
			name:    "dimension mismatch",
			mutate:  func(e *IndexEntry) { e.Dimension = 4 },
			wantErr: ErrValidation,
		},
		{
			name:    "bad domain",
			mutate:  func(e *IndexEntry) { e.Domain = "a/b" },
			wantErr: ErrValidation,
		},
		{
			name:    "zero dimension accepted",
			mutate:  func(e *IndexEntry) { e.Dimension = 0 },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := valid()
			tt.mutate(entry)
			err := ValidateIndexEntry(entry)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateIndexEntry() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateIndexEntry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("nil entry", func(t *testing.T) {
		if err := ValidateIndexEntry(nil); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateIndexEntry(nil) error = %v, want %v", err, ErrValidation)
		}
	})
}

func TestValidateRelease(t *testing.T) {
	tests := []struct {
		name    string
		release *Release
		wantErr error
	}{
		{
			name: "candidate release",
			release: &Release{
				ReleaseID: "rel_1",
				Domain:    "golang",
				Status:    ReleaseStatusCandidate,
			},
			wantErr: nil,
		},
		{
			name: "unknown status",
			release: &Release{
				ReleaseID: "rel_1",
				Domain:    "golang",
				Status:    ReleaseStatus("draft"),
			},
			wantErr: ErrValidation,
		},
		{
			name:    "nil release",
			release: nil,
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelease(tt.release)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRelease() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRelease() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
