package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derrickSh43/ingestion/core"
)

func TestCaptureSerialization_RoundTrip(t *testing.T) {
	capture := &core.Capture{
		SourceID:         "src-1",
		Domain:           "golang",
		URL:              "https://example.com",
		HTTPStatus:       200,
		Headers:          map[string]string{"Content-Type": "text/html"},
		ContentHash:      "sha256:abc",
		ContentSignature: "hmac-sha256:def",
		RetrievedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CaptureOK:        true,
	}

	data, err := MarshalCapture(capture)
	require.NoError(t, err)

	got, err := UnmarshalCapture(data)
	require.NoError(t, err)
	assert.Equal(t, capture, got)
}

func TestCaptureSerialization_QuarantineFields(t *testing.T) {
	capture := &core.Capture{
		SourceID:         "src-1",
		Domain:           "golang",
		HTTPStatus:       500,
		CaptureOK:        false,
		Quarantined:      true,
		QuarantineReason: "capture_failed",
		QuarantinedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := MarshalCapture(capture)
	require.NoError(t, err)

	got, err := UnmarshalCapture(data)
	require.NoError(t, err)
	assert.True(t, got.Quarantined)
	assert.Equal(t, "capture_failed", got.QuarantineReason)
	assert.Equal(t, capture.QuarantinedAt, got.QuarantinedAt)
}

func TestUnmarshalCapture_Corrupt(t *testing.T) {
	_, err := UnmarshalCapture([]byte("not json"))
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestMarshalJSON_Wrapping(t *testing.T) {
	type row struct {
		N int `json:"n"`
	}

	data, err := MarshalJSON("row", row{N: 7})
	require.NoError(t, err)

	var got row
	require.NoError(t, UnmarshalJSON("row", data, &got))
	assert.Equal(t, 7, got.N)

	err = UnmarshalJSON("row", []byte("{"), &got)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
