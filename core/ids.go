package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// idDigestLen is the digest size for derived ids. 12 bytes hex-encodes to the
// 24 character suffix used across all artifact ids.
const idDigestLen = 12

func contentID(prefix string, parts ...string) string {
	h, _ := blake2b.New(idDigestLen, nil)
	h.Write([]byte(strings.Join(parts, "|")))
	return prefix + "_" + hex.EncodeToString(h.Sum(nil))
}

// SectionID derives a deterministic id for a distilled section. Identical
// source content yields identical ids across runs.
func SectionID(domain, sourceHash, kind, title, cleanText string) string {
	return contentID("sec", domain, sourceHash, kind, title, cleanText)
}

// CanonicalObjectID derives a deterministic id for a canonical object within
// a release.
func CanonicalObjectID(domain, releaseID, sourceID, sectionID string) string {
	return contentID("clo", domain, releaseID, sourceID, sectionID)
}

// NewReleaseID mints a release id from the domain, the current UTC time, and
// a short random suffix. Unlike artifact ids these are not content-derived:
// two runs over identical sources still get distinct releases.
func NewReleaseID(domain string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, domain)
	return slug + "_" + time.Now().UTC().Format("20060102-150405") + "_" + uuid.NewString()[:8]
}

// ChunkID derives a deterministic id for a chunk. The id covers the chunk's
// position and text, so re-chunking unchanged content reproduces it exactly.
func ChunkID(domain, releaseID, canonicalObjectID string, sequence int, text string) string {
	return contentID("chk", domain, releaseID, canonicalObjectID, strconv.Itoa(sequence), text)
}
