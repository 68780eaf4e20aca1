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


package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

// CaptureRepository implements storage.CaptureRepository for BadgerDB.
// Metadata and raw content are stored under separate keys so listing a
// domain never loads raw bytes.
type CaptureRepository struct {
	backend *Backend
}

var _ storage.CaptureRepository = (*CaptureRepository)(nil)

// NewCaptureRepository creates a new CaptureRepository.
func NewCaptureRepository(backend *Backend) *CaptureRepository {
	return &CaptureRepository{backend: backend}
}

// Close is a no-op; the owning backend manages the database lifecycle.
func (r *CaptureRepository) Close() error {
	return nil
}

// Put stores a capture and its raw bytes atomically, overwriting any
// previous capture for the same (domain, source_id).
func (r *CaptureRepository) Put(ctx context.Context, capture *core.Capture, raw []byte) error {
	if err := core.ValidateDomain(capture.Domain); err != nil {
		return err
	}
	if err := core.ValidateSourceID(capture.SourceID); err != nil {
		return err
	}
	value, err := storage.MarshalCapture(capture)
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeCaptureMetaKey(capture.Domain, capture.SourceID), value); err != nil {
			return err
		}
		if err := tx.Set(makeCaptureRawKey(capture.Domain, capture.SourceID), raw); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves capture metadata.
func (r *CaptureRepository) Get(ctx context.Context, domain, sourceID string) (*core.Capture, error) {
	var capture *core.Capture
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		capture, err = readCapture(tx, makeCaptureMetaKey(domain, sourceID))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return capture, nil
}

// GetRaw retrieves capture metadata together with the raw bytes.
func (r *CaptureRepository) GetRaw(ctx context.Context, domain, sourceID string) (*core.Capture, []byte, error) {
	var (
		capture *core.Capture
		raw     []byte
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		capture, err = readCapture(tx, makeCaptureMetaKey(domain, sourceID))
		if err != nil {
			return err
		}
		item, err := tx.Get(makeCaptureRawKey(domain, sourceID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, nil, err
	}
	return capture, raw, nil
}

// Update rewrites capture metadata, leaving the raw bytes untouched.
func (r *CaptureRepository) Update(ctx context.Context, capture *core.Capture) error {
	value, err := storage.MarshalCapture(capture)
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCaptureMetaKey(capture.Domain, capture.SourceID)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// List returns all captures for a domain, ordered by source_id.
func (r *CaptureRepository) List(ctx context.Context, domain string) ([]*core.Capture, error) {
	var captures []*core.Capture
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCaptureDomainPrefix(domain)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				capture, err := storage.UnmarshalCapture(val)
				if err != nil {
					return err
				}
				captures = append(captures, capture)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return captures, nil
}

func readCapture(tx *badger.Txn, key []byte) (*core.Capture, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var capture *core.Capture
	err = item.Value(func(val []byte) error {
		capture, err = storage.UnmarshalCapture(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return capture, nil
}
