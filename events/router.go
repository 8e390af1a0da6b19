// Package events decodes raw gateway frames into typed events and fans them
// out to interested subscribers.
package events

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// Frame types handled directly by the router. Call signaling types live in
// the call package; the router only cares about their "call." prefix.
const (
	TypeNotificationCreated = "notification.created"
	TypeConnectionAck       = "connection.ack"
	TypePong                = "pong"

	callPrefix = "call."
)

// Event is a typed, parsed message from the gateway. Raw is the whole frame;
// subscribers unmarshal it into the payload struct for the kind.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// NotificationHandler receives the raw frame of a notification.created event.
type NotificationHandler func(raw json.RawMessage)

// Router parses inbound frames and dispatches them: call signaling to the
// bus, notifications to the registered callback. Malformed frames are logged
// and dropped, never propagated.
type Router struct {
	bus    *Bus
	logger *slog.Logger

	mu             sync.RWMutex
	onNotification NotificationHandler
}

// NewRouter creates a router dispatching call events through bus.
func NewRouter(bus *Bus, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{bus: bus, logger: logger.With("component", "events")}
}

// Bus returns the call-signaling bus.
func (r *Router) Bus() *Bus {
	return r.bus
}

// SetNotificationHandler registers the callback for notification.created
// frames. Passing nil removes it.
func (r *Router) SetNotificationHandler(fn NotificationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onNotification = fn
}

// HandleFrame decodes one raw frame and dispatches it. Frames are dispatched
// in the order the transport delivers them; no reordering or batching.
func (r *Router) HandleFrame(raw []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		r.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if head.Type == "" {
		r.logger.Warn("dropping frame without type")
		return
	}

	switch {
	case strings.HasPrefix(head.Type, callPrefix):
		_ = r.bus.Publish(Event{Type: head.Type, Raw: raw})
	case head.Type == TypeNotificationCreated:
		r.mu.RLock()
		fn := r.onNotification
		r.mu.RUnlock()
		if fn != nil {
			fn(raw)
		}
	case head.Type == TypeConnectionAck, head.Type == TypePong:
		r.logger.Debug("frame acknowledged", "type", head.Type)
	default:
		r.logger.Debug("unhandled frame type", "type", head.Type)
	}
}
