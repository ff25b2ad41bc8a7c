package beats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vporoshin/logcourier/internal/logging"
)

func TestMakeEvents(t *testing.T) {
	now := time.Now()
	batch := []logging.LogEntry{
		{Text: "hello", Timestamp: now, Count: 1},
		{Text: "again and again", Timestamp: now.Add(time.Second), Count: 4},
	}

	events := makeEvents(batch, "courier-test")

	assert.Equal(t, 2, len(events))

	first, ok := events[0].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, now, first["@timestamp"])
	assert.Equal(t, "hello", first["message"])
	assert.Equal(t, map[string]interface{}{"count": 1}, first["log"])

	second := events[1].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"count": 4}, second["log"])
	assert.Equal(t, map[string]interface{}{"name": "courier-test", "type": "logcourier"}, second["agent"])
}

func TestSink_IsReady_DialFailure(t *testing.T) {
	// Port 1 is reserved and nothing listens on it.
	sink := NewSink("127.0.0.1:1", "courier-test")

	ok, err := sink.IsReady()
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSink_StoreLogs_EmptyBatch(t *testing.T) {
	sink := NewSink("127.0.0.1:1", "courier-test")

	// Empty batches return before any dial happens.
	err := sink.StoreLogs(nil)
	assert.NoError(t, err)
}

func TestSink_Close_WithoutConnection(t *testing.T) {
	sink := NewSink("127.0.0.1:1", "courier-test")

	assert.NoError(t, sink.Close())
}
