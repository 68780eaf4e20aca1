package badger

import "fmt"

// Key prefixes for different data types
const (
	captureMetaPrefix = "capmeta"
	captureRawPrefix  = "capraw"
)

// makeCaptureMetaKey generates the metadata key for a capture.
// Format: capmeta:domain:source_id
func makeCaptureMetaKey(domain, sourceID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", captureMetaPrefix, domain, sourceID))
}

// makeCaptureRawKey generates the raw-content key for a capture.
// Format: capraw:domain:source_id
func makeCaptureRawKey(domain, sourceID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", captureRawPrefix, domain, sourceID))
}

// makeCaptureDomainPrefix generates the iteration prefix for all capture
// metadata within a domain.
func makeCaptureDomainPrefix(domain string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", captureMetaPrefix, domain))
}
