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
	"errors"
	"fmt"
)

// Shared error taxonomy. Callers branch with errors.Is against the sentinels;
// the struct types below carry payloads and wrap the matching sentinel.
var (
	// ErrNotFound indicates a capture, release, or index was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates an input failed domain validation.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates an operation referenced state that does not exist
	// or is not eligible, such as promoting an unknown release.
	ErrConflict = errors.New("conflict")

	// ErrIntegrity indicates stored content no longer matches its recorded
	// hash or signature.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrQuarantined indicates a quarantined capture was used without force.
	ErrQuarantined = errors.New("capture is quarantined")

	// ErrDimensionMismatch indicates a query vector's length does not match
	// the index it is being run against.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// IntegrityError reports a hash or signature mismatch for a capture.
type IntegrityError struct {
	Domain   string
	SourceID string
	Field    string // "content_hash" or "content_signature"
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s mismatch for %s/%s: %v", e.Field, e.Domain, e.SourceID, ErrIntegrity)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// DimensionMismatchError reports a query vector whose length differs from the
// index dimension.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("query vector has %d dimensions, index has %d: %v", e.Got, e.Want, ErrDimensionMismatch)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
