package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

// defaultAuditLimit bounds Audit when the caller passes no limit.
const defaultAuditLimit = 100

// Index is the slice of the vector index the release manager needs for
// merging: reading a release's folded entries and writing merged ones.
type Index interface {
	Load(ctx context.Context, domain, releaseID string) ([]*core.IndexEntry, error)
	Upsert(ctx context.Context, entries []*core.IndexEntry) error
}

// Manager owns release metadata, the per-domain active pointer, and the
// promotion audit log. Promotion is serialized both in-process and across
// processes through a file lock, and the pointer swap itself is an atomic
// rename, so readers always observe either the old or the new release.
type Manager struct {
	layout    storage.Layout
	artifacts storage.ArtifactStore
	index     Index
	mu        sync.Mutex
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a release manager over the given layout. The artifact
// store and index are used when merging releases.
func NewManager(layout storage.Layout, artifacts storage.ArtifactStore, index Index, opts ...Option) (*Manager, error) {
	if artifacts == nil {
		return nil, ErrArtifactStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	m := &Manager{
		layout:    layout,
		artifacts: artifacts,
		index:     index,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "release-manager")
	return m, nil
}

// Create registers a new candidate release. Returns core.ErrConflict if the
// release already exists.
func (m *Manager) Create(ctx context.Context, domain, releaseID, createdBy string) (*core.Release, error) {
	if err := core.ValidateScope(domain, releaseID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.read(domain, releaseID); err == nil {
		return nil, fmt.Errorf("release %s/%s already exists: %w", domain, releaseID, core.ErrConflict)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	rel := &core.Release{
		ReleaseID: releaseID,
		Domain:    domain,
		Status:    core.ReleaseStatusCandidate,
		CreatedAt: time.Now().UTC(),
		CreatedBy: createdBy,
		Sources:   make(map[string]core.Counts),
	}
	if err := m.write(rel); err != nil {
		return nil, err
	}
	m.logger.Info("release created", "domain", domain, "release_id", releaseID, "created_by", createdBy)
	return rel, nil
}

// Ensure returns the release, creating it as a candidate if it does not
// exist yet.
func (m *Manager) Ensure(ctx context.Context, domain, releaseID, createdBy string) (*core.Release, error) {
	rel, err := m.Get(ctx, domain, releaseID)
	if err == nil {
		return rel, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	rel, err = m.Create(ctx, domain, releaseID, createdBy)
	if err != nil && errors.Is(err, core.ErrConflict) {
		// Lost a create race; the release exists now.
		return m.Get(ctx, domain, releaseID)
	}
	return rel, err
}

// Get loads release metadata. Returns core.ErrNotFound for unknown releases.
func (m *Manager) Get(ctx context.Context, domain, releaseID string) (*core.Release, error) {
	if err := core.ValidateScope(domain, releaseID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(domain, releaseID)
}

// List returns all releases for a domain ordered by release id.
func (m *Manager) List(ctx context.Context, domain string) ([]*core.Release, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.layout.ReleasesDir(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	releases := make([]*core.Release, 0, len(names))
	for _, name := range names {
		rel, err := m.read(domain, name)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releases, nil
}

// ActiveID returns the domain's active release id, or ErrNoActiveRelease.
func (m *Manager) ActiveID(ctx context.Context, domain string) (string, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return "", err
	}
	return m.readActiveID(domain)
}

// Active loads the domain's active release metadata.
func (m *Manager) Active(ctx context.Context, domain string) (*core.Release, error) {
	id, err := m.ActiveID(ctx, domain)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, domain, id)
}

// RecordSource stores the counts a source contributed to a release,
// replacing any earlier entry for the same source.
func (m *Manager) RecordSource(ctx context.Context, domain, releaseID, sourceID string, counts core.Counts) (*core.Release, error) {
	if err := core.ValidateScope(domain, releaseID); err != nil {
		return nil, err
	}
	if err := core.ValidateSourceID(sourceID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rel, err := m.read(domain, releaseID)
	if err != nil {
		return nil, err
	}
	if rel.Sources == nil {
		rel.Sources = make(map[string]core.Counts)
	}
	rel.Sources[sourceID] = counts
	if err := m.write(rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// Promote makes a release the domain's active one. The previously active
// release is retired, the pointer file is swapped atomically, and exactly one
// audit event is appended. Promoting a retired release again is how rollback
// works; promoting the release that is already active is a conflict.
func (m *Manager) Promote(ctx context.Context, domain, releaseID, actor, reason string) (*core.AuditEvent, error) {
	if err := core.ValidateScope(domain, releaseID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.layout.DomainReleasesDir(domain), 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(m.layout.PromoteLockFile(domain))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring promote lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("promote lock busy for domain %s: %w", domain, core.ErrConflict)
	}
	defer lock.Unlock()

	target, err := m.read(domain, releaseID)
	if err != nil {
		return nil, err
	}

	previousID, err := m.readActiveID(domain)
	if err != nil && !errors.Is(err, ErrNoActiveRelease) {
		return nil, err
	}
	if previousID == releaseID {
		return nil, fmt.Errorf("release %s/%s is already active: %w", domain, releaseID, core.ErrConflict)
	}

	if err := storage.WriteFileAtomic(m.layout.ActivePointerFile(domain), []byte(releaseID), 0o644); err != nil {
		return nil, err
	}

	if previousID != "" {
		if prev, err := m.read(domain, previousID); err == nil {
			prev.Status = core.ReleaseStatusRetired
			if err := m.write(prev); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
	}
	target.Status = core.ReleaseStatusActive
	if err := m.write(target); err != nil {
		return nil, err
	}

	event := &core.AuditEvent{
		Domain:            domain,
		ReleaseID:         releaseID,
		PreviousReleaseID: previousID,
		Actor:             actor,
		Reason:            reason,
		Timestamp:         time.Now().UTC(),
	}
	line, err := storage.MarshalJSON("audit event", event)
	if err != nil {
		return nil, err
	}
	if err := storage.AppendLine(m.layout.AuditFile(domain), line); err != nil {
		return nil, err
	}
	m.logger.Info("release promoted",
		"domain", domain, "release_id", releaseID,
		"previous_release_id", previousID, "actor", actor)
	return event, nil
}

// Audit returns the domain's promotion history, newest first. A limit of
// zero or less means the default of 100.
func (m *Manager) Audit(ctx context.Context, domain string, limit int) ([]*core.AuditEvent, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	lines, err := storage.ReadLines(m.layout.AuditFile(domain))
	if err != nil {
		return nil, err
	}
	var events []*core.AuditEvent
	for i := len(lines) - 1; i >= 0 && len(events) < limit; i-- {
		var ev core.AuditEvent
		if err := storage.UnmarshalJSON("audit event", lines[i], &ev); err != nil {
			continue
		}
		events = append(events, &ev)
	}
	return events, nil
}

func (m *Manager) read(domain, releaseID string) (*core.Release, error) {
	data, err := os.ReadFile(m.layout.ReleaseFile(domain, releaseID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("release %s/%s: %w", domain, releaseID, core.ErrNotFound)
		}
		return nil, err
	}
	var rel core.Release
	if err := storage.UnmarshalJSON("release", data, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (m *Manager) write(rel *core.Release) error {
	data, err := storage.MarshalJSON("release", rel)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(m.layout.ReleaseFile(rel.Domain, rel.ReleaseID), data, 0o644)
}

func (m *Manager) readActiveID(domain string) (string, error) {
	data, err := os.ReadFile(m.layout.ActivePointerFile(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("domain %s: %w", domain, ErrNoActiveRelease)
		}
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("domain %s: %w", domain, ErrNoActiveRelease)
	}
	return id, nil
}
