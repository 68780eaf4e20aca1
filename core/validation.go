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


package core

import (
	"fmt"
	"regexp"
)

// Domains, source ids, and release ids become directory names and store keys,
// so they are restricted to a filesystem-safe alphabet.
var nameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateName validates an identifier used as a path component.
//
// Validation rules:
//   - must not be empty
//   - must start with an alphanumeric character
//   - remaining characters limited to alphanumerics, '.', '_', '-'
func ValidateName(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidation, field)
	}
	if !nameRE.MatchString(value) {
		return fmt.Errorf("%w: %s %q contains unsafe characters", ErrValidation, field, value)
	}
	return nil
}

// ValidateDomain validates a domain identifier.
func ValidateDomain(domain string) error {
	return ValidateName("domain", domain)
}

// ValidateSourceID validates a source identifier.
func ValidateSourceID(sourceID string) error {
	return ValidateName("source_id", sourceID)
}

// ValidateReleaseID validates a release identifier.
func ValidateReleaseID(releaseID string) error {
	return ValidateName("release_id", releaseID)
}

// ValidateScope validates the (domain, release) pair that scopes every
// derived artifact.
func ValidateScope(domain, releaseID string) error {
	if err := ValidateDomain(domain); err != nil {
		return err
	}
	return ValidateReleaseID(releaseID)
}

// ValidateIndexEntry validates an index row before it is appended.
//
// Validation rules:
//   - scope, chunk id, and canonical object id must be well formed
//   - Text must not be empty
//   - Vector must be non-empty and match the declared Dimension
func ValidateIndexEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: index entry is nil", ErrValidation)
	}
	if err := ValidateScope(entry.Domain, entry.ReleaseID); err != nil {
		return err
	}
	if err := ValidateName("chunk_id", entry.ChunkID); err != nil {
		return err
	}
	if err := ValidateName("canonical_object_id", entry.CanonicalObjectID); err != nil {
		return err
	}
	if entry.Text == "" {
		return fmt.Errorf("%w: index entry text cannot be empty", ErrValidation)
	}
	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: index entry vector cannot be empty", ErrValidation)
	}
	if entry.Dimension != 0 && entry.Dimension != len(entry.Vector) {
		return fmt.Errorf("%w: declared dimension %d does not match vector length %d",
			ErrValidation, entry.Dimension, len(entry.Vector))
	}
	return nil
}

// ValidateRelease validates a release record.
//
// Validation rules:
//   - ReleaseID and Domain must be well formed
//   - Status must be one of the known lifecycle states
func ValidateRelease(release *Release) error {
	if release == nil {
		return fmt.Errorf("%w: release is nil", ErrValidation)
	}
	if err := ValidateScope(release.Domain, release.ReleaseID); err != nil {
		return err
	}
	switch release.Status {
	case ReleaseStatusCandidate, ReleaseStatusActive, ReleaseStatusRetired:
		return nil
	default:
		return fmt.Errorf("%w: unknown release status %q", ErrValidation, release.Status)
	}
}
