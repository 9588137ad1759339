package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/alertzarr/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("A1"),
		Value:     []byte(`{"id":"A1"}`),
		Topic:     "autopilot.alerts",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: domain.HeaderRoutingKey, Value: []byte("alerts.disaster.flood")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("A1"), raw.Key)
	assert.JSONEq(t, `{"id":"A1"}`, string(raw.Value))
	assert.Equal(t, "autopilot.alerts", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "alerts.disaster.flood", raw.Headers[domain.HeaderRoutingKey])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	evt := domain.AlertEvent{
		SpecVersion:     "1.0",
		ID:              "A1",
		Type:            "alert.flood",
		Source:          domain.DefaultEventSource,
		Time:            "2025-01-01T00:00:00Z",
		DataContentType: "application/json",
		Data:            json.RawMessage(`{"id":"A1","hazardType":"flood"}`),
	}

	msg, err := serializeToMessage(evt, "alerts.disaster.flood")
	require.NoError(t, err)

	assert.Equal(t, []byte("A1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"type":"alert.flood"`)
	assert.Contains(t, string(msg.Value), `"data":{"id":"A1","hazardType":"flood"}`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, domain.HeaderRoutingKey, msg.Headers[0].Key)
	assert.Equal(t, []byte("alerts.disaster.flood"), msg.Headers[0].Value)
	assert.Equal(t, domain.HeaderEventType, msg.Headers[1].Key)
	assert.Equal(t, []byte("alert.flood"), msg.Headers[1].Value)

	_, decoded, err := domain.DecodeAlertEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "flood", decoded.HazardType)
}
