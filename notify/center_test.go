package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnage999-max/liberty-realtime/api"
	"github.com/carnage999-max/liberty-realtime/events"
	"github.com/carnage999-max/liberty-realtime/wsconn"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testCenter wires a center against an offline manager; frames are injected
// through the router directly.
func testCenter(t *testing.T, client *api.Client) (*Center, *events.Router) {
	t.Helper()
	router := events.NewRouter(events.NewBus(), testLogger())
	manager := wsconn.NewManager(wsconn.Options{
		SocketURL: "ws://127.0.0.1:1/ws/notifications/",
		OnFrame:   router.HandleFrame,
		Dialer: func(ctx context.Context, socketURL string) (*websocket.Conn, error) {
			return nil, errors.New("offline")
		},
		Logger: testLogger(),
	})
	t.Cleanup(manager.Close)

	c := NewCenter(manager, router, client, "test-token", testLogger())
	t.Cleanup(c.Close)
	return c, router
}

func TestCenter_CountsAndFansOut(t *testing.T) {
	c, router := testCenter(t, nil)

	got := make([]api.Notification, 0, 2)
	unsub := c.OnNotification(func(n api.Notification) {
		got = append(got, n)
	})
	defer unsub()

	router.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n1","kind":"follow","body":"alice followed you"}}`))
	router.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n2","kind":"call.missed"}}`))

	assert.Equal(t, 2, c.Unread())
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "follow", got[0].Kind)
	assert.Equal(t, "call.missed", got[1].Kind)
}

func TestCenter_UnsubscribeStopsDelivery(t *testing.T) {
	c, router := testCenter(t, nil)

	count := 0
	unsub := c.OnNotification(func(api.Notification) { count++ })

	router.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n1"}}`))
	unsub()
	router.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n2"}}`))

	assert.Equal(t, 1, count)
	assert.Equal(t, 2, c.Unread(), "the count still tracks undelivered notifications")
}

func TestCenter_BadPayloadIgnored(t *testing.T) {
	c, router := testCenter(t, nil)

	router.HandleFrame([]byte(`{"type":"notification.created","notification":"not an object"}`))

	assert.Equal(t, 0, c.Unread())
}

func TestCenter_RefreshSeedsFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/notifications/unread-count/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"unread_count": 5})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "test-token", testLogger())
	c, _ := testCenter(t, client)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 5, c.Unread())
}

func TestCenter_MarkAllRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/notifications/read-all/", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "test-token", testLogger())
	c, router := testCenter(t, client)

	router.HandleFrame([]byte(`{"type":"notification.created","notification":{"id":"n1"}}`))
	require.Equal(t, 1, c.Unread())

	require.NoError(t, c.MarkAllRead(context.Background()))
	assert.Equal(t, 0, c.Unread())
}
