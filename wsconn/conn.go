package wsconn

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the gateway
	writeWait = 10 * time.Second

	// Application-level keepalive period; the gateway answers with a pong frame
	heartbeatInterval = 30 * time.Second

	// Maximum message size accepted from the gateway
	maxMessageSize = 65536

	// Reconnect backoff: 1s doubling per attempt, capped, bounded attempt count
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
	maxReconnectAttempts  = 10
)

// State is the lifecycle state of a logical connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// conn is one logical connection: a dial loop that survives unexpected
// closures until deliberately shut down or out of attempts. Fields are
// guarded by the owning Manager's mutex except writeMu, which serializes
// writes to the socket.
type conn struct {
	id         string
	credential string

	ws          *websocket.Conn
	state       State
	refs        int
	closing     bool
	lingerTimer *time.Timer
	stop        chan struct{}

	writeMu sync.Mutex
}

// pingFrame is the application-level keepalive.
type pingFrame struct {
	Type string `json:"type"`
}

func (c *conn) writeJSON(ws *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(v)
}

// run is the connection's lifecycle loop: dial, pump frames, and on
// unexpected closure back off and redial while references remain.
func (m *Manager) run(c *conn) {
	target := m.dialURL(c.credential)
	attempt := 0

	for {
		ws, err := m.dial(context.Background(), target)
		if err != nil {
			m.logger.Warn("dial failed", "conn_id", c.id, "error", err)
		} else {
			m.mu.Lock()
			if c.closing {
				m.mu.Unlock()
				_ = ws.Close()
				return
			}
			c.ws = ws
			c.state = StateOpen
			attempt = 0 // delay counter resets on any successful open
			m.mu.Unlock()

			m.logger.Info("connected", "conn_id", c.id)
			m.notifyWatchers(true)

			stopPing := make(chan struct{})
			go m.heartbeat(c, ws, stopPing)
			normal := m.readLoop(c, ws)
			close(stopPing)
			_ = ws.Close()

			m.mu.Lock()
			c.ws = nil
			deliberate := c.closing
			if !deliberate {
				c.state = StateConnecting
			}
			m.mu.Unlock()

			m.notifyWatchers(false)

			if deliberate {
				return
			}
			if normal {
				// Server closed with a normal-closure code; honor it.
				m.logger.Info("server closed connection", "conn_id", c.id)
				m.finish(c)
				return
			}
		}

		attempt++
		if attempt > maxReconnectAttempts {
			m.logger.Error("giving up on reconnection", "conn_id", c.id, "attempts", attempt-1)
			m.finish(c)
			return
		}

		delay := reconnectDelay(attempt)
		m.logger.Info("scheduling reconnect", "conn_id", c.id, "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-c.stop:
			return
		}

		m.mu.Lock()
		deliberate := c.closing
		m.mu.Unlock()
		if deliberate {
			return
		}
	}
}

// readLoop pumps inbound frames to the frame handler. Returns true if the
// connection ended with a normal-closure code.
func (m *Manager) readLoop(c *conn, ws *websocket.Conn) bool {
	ws.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read error", "conn_id", c.id, "error", err)
			}
			return false
		}
		if m.onFrame != nil {
			m.onFrame(raw)
		}
	}
}

// heartbeat sends a JSON ping frame on a fixed interval while the socket is
// open. The gateway's pong response is swallowed by the event router.
func (m *Manager) heartbeat(c *conn, ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.writeJSON(ws, pingFrame{Type: "ping"}); err != nil {
				m.logger.Warn("heartbeat write failed", "conn_id", c.id, "error", err)
				return
			}
		}
	}
}

// finish marks the connection permanently closed.
func (m *Manager) finish(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.state = StateClosed
	if m.current == c {
		m.current = nil
	}
}

// reconnectDelay returns the backoff before reconnect attempt k (1-based):
// min(30s, 1s << (k-1)).
func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 { // 1s << 5 = 32s, already past the cap
		return maxReconnectDelay
	}
	d := initialReconnectDelay << (attempt - 1)
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}
