package events

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRouter(NewBus(), logger)
}

func TestRouter_DispatchesCallEvents(t *testing.T) {
	r := testRouter(t)

	var got []Event
	_, err := r.Bus().Subscribe("call.", func(evt Event) {
		got = append(got, evt)
	})
	require.NoError(t, err)

	r.HandleFrame([]byte(`{"type":"call.incoming","call_id":"c1","caller_id":"u2"}`))
	r.HandleFrame([]byte(`{"type":"call.offer","call_id":"c1"}`))

	require.Len(t, got, 2)
	assert.Equal(t, "call.incoming", got[0].Type)
	assert.Equal(t, "call.offer", got[1].Type)

	var payload struct {
		CallID   string `json:"call_id"`
		CallerID string `json:"caller_id"`
	}
	require.NoError(t, json.Unmarshal(got[0].Raw, &payload))
	assert.Equal(t, "c1", payload.CallID)
	assert.Equal(t, "u2", payload.CallerID)
}

func TestRouter_DropsMalformedFrames(t *testing.T) {
	r := testRouter(t)

	count := 0
	_, err := r.Bus().Subscribe("", func(evt Event) { count++ })
	require.NoError(t, err)

	r.HandleFrame([]byte(`{not json`))
	r.HandleFrame([]byte(`"just a string"`))
	r.HandleFrame([]byte(`{"no_type":"here"}`))
	r.HandleFrame([]byte(``))

	assert.Equal(t, 0, count, "malformed frames must be dropped, not dispatched")

	// The stream survives: the next valid frame goes through.
	r.HandleFrame([]byte(`{"type":"call.ended","call_id":"c1"}`))
	assert.Equal(t, 1, count)
}

func TestRouter_NotificationCallback(t *testing.T) {
	r := testRouter(t)

	received := make(chan json.RawMessage, 1)
	r.SetNotificationHandler(func(raw json.RawMessage) {
		received <- raw
	})

	r.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n1","kind":"follow"}}`))

	select {
	case raw := <-received:
		var frame struct {
			Notification struct {
				ID string `json:"id"`
			} `json:"notification"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Equal(t, "n1", frame.Notification.ID)
	default:
		t.Fatal("notification callback was not invoked")
	}

	// Removing the handler stops delivery without erroring.
	r.SetNotificationHandler(nil)
	r.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n2"}}`))
	assert.Empty(t, received)
}

func TestRouter_SwallowsControlFrames(t *testing.T) {
	r := testRouter(t)

	count := 0
	_, err := r.Bus().Subscribe("", func(evt Event) { count++ })
	require.NoError(t, err)

	r.HandleFrame([]byte(`{"type":"pong"}`))
	r.HandleFrame([]byte(`{"type":"connection.ack"}`))
	r.HandleFrame([]byte(`{"type":"presence.update","user_id":"u9"}`))

	assert.Equal(t, 0, count, "control and unknown frames stay off the call bus")
}
