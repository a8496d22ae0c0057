package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampCreateDefaults(t *testing.T) {
	var meta SyncMeta
	meta.stampCreate()

	assert.EqualValues(t, 1, meta.Version)
	assert.False(t, meta.LastModified.IsZero())
	assert.False(t, meta.Synced)

	// a cache-filled row keeps the server's version
	meta = SyncMeta{Version: 5}
	meta.stampCreate()
	assert.EqualValues(t, 5, meta.Version)
}

func TestMarkSynced(t *testing.T) {
	msg := "old failure"
	meta := SyncMeta{SyncError: &msg}
	at := time.Now()

	meta.MarkSynced(at)

	assert.True(t, meta.Synced)
	require.NotNil(t, meta.SyncTimestamp)
	assert.Equal(t, at, *meta.SyncTimestamp)
	assert.Nil(t, meta.SyncError)
}

func TestConsumptionIsLocalOnly(t *testing.T) {
	assert.True(t, (&Consumption{ID: -1756000000123}).IsLocalOnly())
	assert.False(t, (&Consumption{ID: 42}).IsLocalOnly())
}

func TestJSONPayloadRoundTrip(t *testing.T) {
	payload := JSONPayload(`{"id":1,"name":"Oats"}`)

	value, err := payload.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"Oats"}`, value)

	var scanned JSONPayload
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, payload, scanned)

	raw, err := json.Marshal(struct {
		Data JSONPayload `json:"data"`
	}{Data: payload})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"id":1,"name":"Oats"}}`, string(raw))
}

func TestJSONPayloadEmpty(t *testing.T) {
	var payload JSONPayload

	value, err := payload.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	raw, err := json.Marshal(struct {
		Data JSONPayload `json:"data"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null}`, string(raw))
}
