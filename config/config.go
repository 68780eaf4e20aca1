package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// devSigningSecret keeps local runs working when no secret is configured.
// FromEnv logs a warning whenever it is used.
const devSigningSecret = "dev-ingestion-signing-secret-CHANGE-IN-PRODUCTION"

// Settings holds every runtime knob the service reads from the environment.
type Settings struct {
	// DataRoot is the base directory for all persisted artifacts
	// (capture store, canonical objects, chunks, embeddings, indexes,
	// releases, observability logs).
	DataRoot string

	// SigningSecret is the HMAC key for capture content signatures.
	SigningSecret string

	// EmbedProvider selects the embedding implementation: "openai" for an
	// OpenAI-compatible endpoint, "hash" for the deterministic local provider.
	EmbedProvider string

	// EmbedHost is the base URL of the OpenAI-compatible embedding service.
	EmbedHost string

	// EmbedModel is the embedding model identifier.
	EmbedModel string

	// EmbedDimension is the vector width of the deterministic hash provider.
	EmbedDimension int

	// EmbedWorkers bounds the worker pool used for the embedding stage.
	EmbedWorkers int

	// CaptureTimeout bounds a single HTTP capture.
	CaptureTimeout time.Duration

	// QueryMaxChars is the maximum query length embedded at retrieval time;
	// longer queries are trimmed.
	QueryMaxChars int

	// ChunkMaxChars is the chunking size bound.
	ChunkMaxChars int
}

// Default returns Settings with local development defaults.
func Default() *Settings {
	return &Settings{
		DataRoot:       "data",
		SigningSecret:  "",
		EmbedProvider:  "hash",
		EmbedHost:      "http://localhost:11434/v1",
		EmbedModel:     "mxbai-embed-large",
		EmbedDimension: 16,
		EmbedWorkers:   4,
		CaptureTimeout: 30 * time.Second,
		QueryMaxChars:  2000,
		ChunkMaxChars:  800,
	}
}

// FromEnv builds Settings from the INGESTION_* environment variables,
// falling back to Default for anything unset. Malformed numeric values are
// ignored in favor of the default.
func FromEnv(logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	s := Default()

	if v := strings.TrimSpace(os.Getenv("INGESTION_DATA_ROOT")); v != "" {
		s.DataRoot = v
	}
	if v := strings.TrimSpace(os.Getenv("INGESTION_SIGNING_SECRET")); v != "" {
		s.SigningSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("INGESTION_EMBED_PROVIDER")); v != "" {
		s.EmbedProvider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("INGESTION_EMBED_HOST")); v != "" {
		s.EmbedHost = v
	}
	if v := strings.TrimSpace(os.Getenv("INGESTION_EMBED_MODEL")); v != "" {
		s.EmbedModel = v
	}
	s.EmbedDimension = envInt("INGESTION_EMBED_DIM", s.EmbedDimension)
	s.EmbedWorkers = envInt("INGESTION_EMBED_WORKERS", s.EmbedWorkers)
	s.QueryMaxChars = envInt("INGESTION_QUERY_MAX_CHARS", s.QueryMaxChars)
	s.ChunkMaxChars = envInt("INGESTION_CHUNK_MAX_CHARS", s.ChunkMaxChars)
	if secs := envInt("INGESTION_CAPTURE_TIMEOUT_S", 0); secs > 0 {
		s.CaptureTimeout = time.Duration(secs) * time.Second
	}

	if s.SigningSecret == "" {
		logger.Warn("INGESTION_SIGNING_SECRET not set, using insecure dev default")
		s.SigningSecret = devSigningSecret
	}
	return s
}

func envInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// Normalize ensures the settings are in canonical form: the data root becomes
// absolute and the embedding host gains the /v1 suffix OpenAI-compatible APIs
// expect.
func (s *Settings) Normalize() {
	if abs, err := filepath.Abs(s.DataRoot); err == nil {
		s.DataRoot = abs
	}
	if s.EmbedHost != "" && !strings.HasSuffix(s.EmbedHost, "/v1") {
		s.EmbedHost = strings.TrimSuffix(s.EmbedHost, "/") + "/v1"
	}
}

// Validate checks that the settings are complete and consistent. It
// normalizes first.
func (s *Settings) Validate() error {
	s.Normalize()

	if s.DataRoot == "" {
		return errors.New("config: DataRoot is required")
	}
	if s.SigningSecret == "" {
		return errors.New("config: SigningSecret is required")
	}
	switch s.EmbedProvider {
	case "hash":
		if s.EmbedDimension < 1 {
			return errors.New("config: EmbedDimension must be positive")
		}
	case "openai":
		if s.EmbedHost == "" {
			return errors.New("config: EmbedHost is required for the openai provider")
		}
		if s.EmbedModel == "" {
			return errors.New("config: EmbedModel is required for the openai provider")
		}
	default:
		return errors.New("config: EmbedProvider must be \"openai\" or \"hash\"")
	}
	if s.EmbedWorkers < 1 {
		return errors.New("config: EmbedWorkers must be positive")
	}
	if s.QueryMaxChars < 1 {
		return errors.New("config: QueryMaxChars must be positive")
	}
	if s.ChunkMaxChars < 1 {
		return errors.New("config: ChunkMaxChars must be positive")
	}
	return nil
}
