package capture

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/derrickSh43/ingestion/core"
	"github.com/derrickSh43/ingestion/storage"
)

// maxBodyBytes bounds how much of a response body a single capture stores.
const maxBodyBytes = 16 * 1024 * 1024

// Service acquires source content and manages the capture store.
// Captures are immutable once written except for quarantine flags; a
// re-capture of the same (domain, source_id) replaces the previous one.
type Service struct {
	repo    storage.CaptureRepository
	signer  *Signer
	client  *http.Client
	timeout time.Duration

	// quarantineSuspicious controls whether not-OK captures are quarantined
	// on write. Defaults to true.
	quarantineSuspicious bool

	logger *slog.Logger
}

// Option is a functional option for configuring a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithTimeout bounds a single fetch.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithQuarantineSuspicious controls quarantine-on-failure behavior.
func WithQuarantineSuspicious(enabled bool) Option {
	return func(s *Service) {
		s.quarantineSuspicious = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "capture")
	}
}

// NewService creates a capture Service over the given repository and signer.
func NewService(repo storage.CaptureRepository, signer *Signer, opts ...Option) *Service {
	s := &Service{
		repo:                 repo,
		signer:               signer,
		client:               http.DefaultClient,
		timeout:              30 * time.Second,
		quarantineSuspicious: true,
		logger:               slog.Default().With("component", "capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves url and stores the result as a capture for
// (domain, sourceID). A transport failure or bad status still produces a
// stored capture with CaptureOK false; the capture store keeps exactly one
// record per source, so re-fetching replaces any previous capture.
func (s *Service) Fetch(ctx context.Context, domain, sourceID, url string) (*core.Capture, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if err := core.ValidateSourceID(sourceID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url is required", core.ErrValidation)
	}

	status, headers, raw, fetchErr := s.fetch(ctx, url)
	if fetchErr != nil {
		// Context cancellation aborts the operation outright; everything
		// else is recorded as a failed capture.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		terr := &TransportError{URL: url, Err: fetchErr}
		s.logger.Warn("fetch failed", "domain", domain, "source_id", sourceID, "err", terr)
		if headers == nil {
			headers = map[string]string{}
		}
		headers["fetch_error"] = fetchErr.Error()
	}

	captureOK := fetchErr == nil && status >= 200 && status < 300 && len(bytes.TrimSpace(raw)) > 0
	capture := s.buildCapture(domain, sourceID, url, status, headers, raw, captureOK, ReasonCaptureFailed)

	if err := s.repo.Put(ctx, capture, raw); err != nil {
		return nil, err
	}
	s.logger.Info("capture stored",
		"domain", domain, "source_id", sourceID,
		"http_status", status, "capture_ok", captureOK, "quarantined", capture.Quarantined)
	return capture, nil
}

// FromFile stores an uploaded file as a capture. HTML passes through; text
// formats are escaped and wrapped as preformatted HTML so the distiller has a
// uniform input. Parse failures quarantine with file_parse_failed, parses
// that yield nothing with empty_file.
func (s *Service) FromFile(ctx context.Context, domain, sourceID, filename string, data []byte) (*core.Capture, error) {
	if err := core.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if err := core.ValidateSourceID(sourceID); err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	rawHTML, parseErr := renderFileAsHTML(ext, data)

	captureOK := parseErr == nil && strings.TrimSpace(rawHTML) != ""
	reason := ReasonEmptyFile
	if parseErr != nil {
		reason = ReasonFileParseFailed
		s.logger.Warn("file parse failed", "domain", domain, "source_id", sourceID, "filename", filename, "err", parseErr)
	}

	status := http.StatusOK
	if !captureOK {
		status = http.StatusBadRequest
	}
	headers := map[string]string{"filename": filename, "ext": ext}

	capture := s.buildCapture(domain, sourceID, "", status, headers, []byte(rawHTML), captureOK, reason)
	if err := s.repo.Put(ctx, capture, []byte(rawHTML)); err != nil {
		return nil, err
	}
	s.logger.Info("file capture stored",
		"domain", domain, "source_id", sourceID, "filename", filename,
		"capture_ok", captureOK, "quarantined", capture.Quarantined)
	return capture, nil
}

// Quarantine marks an existing capture as quarantined. This is the only
// mutation a capture supports after creation.
func (s *Service) Quarantine(ctx context.Context, domain, sourceID, reason string) (*core.Capture, error) {
	capture, err := s.repo.Get(ctx, domain, sourceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: capture %s/%s", core.ErrNotFound, domain, sourceID)
		}
		return nil, err
	}

	if reason == "" {
		reason = ReasonManualQuarantine
	}
	capture.Quarantined = true
	capture.QuarantineReason = reason
	capture.QuarantinedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, capture); err != nil {
		return nil, err
	}
	s.logger.Info("capture quarantined", "domain", domain, "source_id", sourceID, "reason", reason)
	return capture, nil
}

// Get retrieves capture metadata.
func (s *Service) Get(ctx context.Context, domain, sourceID string) (*core.Capture, error) {
	capture, err := s.repo.Get(ctx, domain, sourceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: capture %s/%s", core.ErrNotFound, domain, sourceID)
		}
		return nil, err
	}
	return capture, nil
}

// List returns all captures for a domain.
func (s *Service) List(ctx context.Context, domain string) ([]*core.Capture, error) {
	return s.repo.List(ctx, domain)
}

// VerifiedRaw loads a capture's raw bytes for ingestion. Unless force is
// set, quarantined or failed captures are rejected. The stored hash and
// signature are always re-verified; a mismatch means the stored content was
// altered and the capture cannot be ingested.
func (s *Service) VerifiedRaw(ctx context.Context, domain, sourceID string, force bool) (*core.Capture, []byte, error) {
	capture, raw, err := s.repo.GetRaw(ctx, domain, sourceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: capture %s/%s", core.ErrNotFound, domain, sourceID)
		}
		return nil, nil, err
	}

	if !force {
		if capture.Quarantined {
			return nil, nil, fmt.Errorf("%w: %s/%s (%s)", core.ErrQuarantined, domain, sourceID, capture.QuarantineReason)
		}
		if !capture.CaptureOK {
			return nil, nil, fmt.Errorf("%w: capture %s/%s is not usable (http_status=%d)",
				core.ErrConflict, domain, sourceID, capture.HTTPStatus)
		}
	}

	if HashContent(raw) != capture.ContentHash {
		return nil, nil, &core.IntegrityError{Domain: domain, SourceID: sourceID, Field: "content_hash"}
	}
	if !s.signer.Verify(capture.ContentHash, capture.ContentSignature) {
		return nil, nil, &core.IntegrityError{Domain: domain, SourceID: sourceID, Field: "content_signature"}
	}
	return capture, raw, nil
}

func (s *Service) buildCapture(domain, sourceID, url string, status int, headers map[string]string, raw []byte, captureOK bool, failReason string) *core.Capture {
	hash := HashContent(raw)
	capture := &core.Capture{
		SourceID:         sourceID,
		Domain:           domain,
		URL:              url,
		HTTPStatus:       status,
		Headers:          headers,
		ContentHash:      hash,
		ContentSignature: s.signer.Sign(hash),
		RetrievedAt:      time.Now().UTC(),
		CaptureOK:        captureOK,
	}
	if s.quarantineSuspicious && !captureOK {
		capture.Quarantined = true
		capture.QuarantineReason = failReason
		capture.QuarantinedAt = capture.RetrievedAt
	}
	return capture
}

func (s *Service) fetch(ctx context.Context, url string) (int, map[string]string, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, headers, nil, err
	}
	return resp.StatusCode, headers, raw, nil
}

// renderFileAsHTML converts an uploaded file into the HTML form the
// distiller consumes.
func renderFileAsHTML(ext string, data []byte) (string, error) {
	switch ext {
	case "html", "htm":
		return string(data), nil
	case "docx":
		text, err := extractDocxText(data)
		if err != nil {
			return "", err
		}
		return wrapTextAsHTML(text), nil
	case "doc":
		return wrapTextAsHTML(bestEffortDocText(data)), nil
	default:
		// txt, md, and anything unknown are treated as plain text
		return wrapTextAsHTML(string(data)), nil
	}
}

func wrapTextAsHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "<pre>" + html.EscapeString(text) + "</pre>"
}

// extractDocxText pulls the text runs out of word/document.xml.
func extractDocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx: word/document.xml not found")
	}
	defer doc.Close()

	var parts []string
	decoder := xml.NewDecoder(doc)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			inText = false
		case xml.CharData:
			if inText && len(t) > 0 {
				parts = append(parts, string(t))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// bestEffortDocText decodes legacy .doc bytes as UTF-16LE first, then UTF-8,
// stripping NUL bytes. Good enough to rescue mostly-text documents.
func bestEffortDocText(data []byte) string {
	if len(data) >= 2 && len(data)%2 == 0 {
		u16 := make([]uint16, len(data)/2)
		for i := range u16 {
			u16[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
		}
		decoded := strings.ReplaceAll(string(utf16.Decode(u16)), "\x00", "")
		if isMostlyPrintable(decoded) {
			return decoded
		}
	}
	return strings.ReplaceAll(string(data), "\x00", "")
}

func isMostlyPrintable(s string) bool {
	if s == "" {
		return false
	}
	printable := 0
	total := 0
	for _, r := range s {
		total++
		if r == '\n' || r == '\r' || r == '\t' || (r >= 0x20 && r < 0xFFFD) {
			printable++
		}
	}
	return total > 0 && float64(printable)/float64(total) > 0.9
}
