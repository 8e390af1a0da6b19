// Package notify consumes notification events from the shared connection and
// tracks the unread count. It holds its own reference on the connection, so
// notifications keep flowing while no call UI is mounted.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/carnage999-max/liberty-realtime/api"
	"github.com/carnage999-max/liberty-realtime/events"
	"github.com/carnage999-max/liberty-realtime/wsconn"
)

// Center is the notification hub for the application.
type Center struct {
	handle *wsconn.Handle
	router *events.Router
	api    *api.Client
	logger *slog.Logger

	mu        sync.Mutex
	unread    int
	handlers  map[uint64]func(api.Notification)
	handlerID uint64
}

// NewCenter acquires the shared connection and registers for notification
// frames. Callers must Close it when done.
func NewCenter(manager *wsconn.Manager, router *events.Router, client *api.Client, token string, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Center{
		handle:   manager.Acquire(token),
		router:   router,
		api:      client,
		logger:   logger.With("component", "notify"),
		handlers: make(map[uint64]func(api.Notification)),
	}
	router.SetNotificationHandler(c.handleFrame)
	return c
}

// Close unregisters and releases the connection reference.
func (c *Center) Close() {
	c.router.SetNotificationHandler(nil)
	c.handle.Release()
}

// OnNotification registers a callback for new notifications. The returned
// function unregisters it.
func (c *Center) OnNotification(fn func(api.Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlerID++
	id := c.handlerID
	c.handlers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Unread returns the current unread count.
func (c *Center) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Refresh seeds the unread count from the server, e.g. on startup or after
// a reconnect (events in flight during a disconnect may be lost).
func (c *Center) Refresh(ctx context.Context) error {
	n, err := c.api.UnreadCount(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unread = n
	c.mu.Unlock()
	return nil
}

// MarkAllRead clears the unread count server-side and locally.
func (c *Center) MarkAllRead(ctx context.Context) error {
	if err := c.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.unread = 0
	c.mu.Unlock()
	return nil
}

func (c *Center) handleFrame(raw json.RawMessage) {
	var frame struct {
		Notification api.Notification `json:"notification"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.logger.Warn("bad notification payload", "error", err)
		return
	}

	c.mu.Lock()
	c.unread++
	fns := make([]func(api.Notification), 0, len(c.handlers))
	for _, fn := range c.handlers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(frame.Notification)
	}
}
