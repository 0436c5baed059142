package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "leasehold/pkg/platform/audit"
)

func TestDecodePayload(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	raw, err := json.Marshal(Payload{
		ID:        "id-1",
		Category:  string(audit.CategoryCompliance),
		Timestamp: ts.Format(time.RFC3339Nano),
		Action:    string(audit.EventDomainSetup),
		Domain:    "0xaa",
		Subject:   "0xaa",
		ActorID:   "0xbb",
		Details:   map[string]string{"oracle": "basic"},
	})
	require.NoError(t, err)

	event, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, ts, event.Timestamp)
	assert.Equal(t, audit.CategoryCompliance, event.Category)
	assert.Equal(t, "basic", event.Details["oracle"])

	_, err = DecodePayload([]byte(`{"timestamp":"yesterday"}`))
	assert.Error(t, err)
}
