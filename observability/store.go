package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

// Event names recorded by the service layer.
const (
	EventCapture          = "ingestion_capture"
	EventQuarantine       = "ingestion_quarantine"
	EventIntegrityFailure = "ingestion_integrity_failure"
	EventIngest           = "ingestion_run"
	EventReleasePromoted  = "release_promoted"
	EventReleaseMerged    = "release_merged"
	EventRetrievalQuery   = "retrieval_query"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

const (
	defaultListLimit = 100
	// metricsScanLimit bounds how many recent events a metrics window reads.
	metricsScanLimit = 10000
)

// Event is one operational event in a domain's append-only log.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Domain    string            `json:"domain"`
	Event     string            `json:"event"`
	Status    string            `json:"status"`
	Level     string            `json:"level"`
	SourceID  string            `json:"source_id,omitempty"`
	ReleaseID string            `json:"release_id,omitempty"`
	Error     string            `json:"error,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Alert is a threshold breach derived from a metrics window.
type Alert struct {
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Severity string `json:"severity"`
}

// Metrics summarizes a domain's recent events. All numbers are derived from
// the event log at read time; nothing is pre-aggregated on disk.
type Metrics struct {
	Domain         string         `json:"domain"`
	WindowHours    int            `json:"window_hours"`
	EventCount     int            `json:"event_count"`
	CountsByEvent  map[string]int `json:"counts_by_event"`
	CountsByStatus map[string]int `json:"counts_by_status"`
	Alerts         []Alert        `json:"alerts"`
}

// Store writes and reads per-domain operational event logs.
type Store struct {
	layout storage.Layout
	mu     sync.Mutex
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an observability store over the given layout.
func NewStore(layout storage.Layout, opts ...Option) *Store {
	s := &Store{
		layout: layout,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "observability")
	return s
}

// Record appends an event to its domain's log, filling in the timestamp and
// defaults for status and level.
func (s *Store) Record(ctx context.Context, event *Event) error {
	if err := core.ValidateDomain(event.Domain); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}
	line, err := storage.MarshalJSON("event", event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.AppendLine(s.layout.EventsFile(event.Domain), line)
}

// ListEvents returns a domain's most recent events, newest first. A limit of
// zero or less means the default of 100.
func (s *Store) ListEvents(ctx context.Context, domain string, limit int) ([]*Event, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	lines, err := storage.ReadLines(s.layout.EventsFile(domain))
	if err != nil {
		return nil, err
	}
	var events []*Event
	for i := len(lines) - 1; i >= 0 && len(events) < limit; i-- {
		var ev Event
		if err := storage.UnmarshalJSON("event", lines[i], &ev); err != nil {
			continue
		}
		events = append(events, &ev)
	}
	return events, nil
}

// Metrics aggregates events within the last windowHours into counts and
// alerts. A window of zero or less means no time bound.
func (s *Store) Metrics(ctx context.Context, domain string, windowHours int) (*Metrics, error) {
	events, err := s.ListEvents(ctx, domain, metricsScanLimit)
	if err != nil {
		return nil, err
	}
	var since time.Time
	if windowHours > 0 {
		since = time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)
	}

	m := &Metrics{
		Domain:         domain,
		WindowHours:    windowHours,
		CountsByEvent:  make(map[string]int),
		CountsByStatus: make(map[string]int),
	}
	for _, ev := range events {
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		m.EventCount++
		m.CountsByEvent[ev.Event]++
		m.CountsByStatus[ev.Status]++
	}

	if n := m.CountsByEvent[EventIntegrityFailure]; n > 0 {
		m.Alerts = append(m.Alerts, Alert{Type: "integrity_failure", Count: n, Severity: "high"})
	}
	if n := m.CountsByEvent[EventQuarantine]; n > 0 {
		m.Alerts = append(m.Alerts, Alert{Type: "quarantine", Count: n, Severity: "medium"})
	}
	return m, nil
}
