// Package wsconn owns the shared WebSocket session to the realtime gateway.
// Consumers acquire refcounted handles keyed by the bearer credential; the
// manager keeps exactly one live connection per credential, reconnects with
// exponential backoff on unexpected closure, and sends application-level
// heartbeats while open.
package wsconn

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// FrameHandler receives every raw inbound frame in arrival order.
type FrameHandler func(raw []byte)

// Dialer establishes the underlying WebSocket connection. Overridable in tests.
type Dialer func(ctx context.Context, socketURL string) (*websocket.Conn, error)

func defaultDialer(ctx context.Context, socketURL string) (*websocket.Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return ws, err
}

// Options configures a Manager.
type Options struct {
	// SocketURL is the gateway endpoint without the credential, e.g.
	// "wss://api.example.com/ws/notifications/". The credential is appended
	// as a "token" query parameter on dial.
	SocketURL string

	// OnFrame is invoked for every inbound frame. Typically the event
	// router's HandleFrame.
	OnFrame FrameHandler

	// Linger defers the actual socket close after the last handle is
	// released, so a quick release/acquire cycle does not flap the
	// connection. Zero closes immediately.
	Linger time.Duration

	Dialer Dialer
	Logger *slog.Logger
}

// Manager hands out shared connection handles. All methods are safe for
// concurrent use.
type Manager struct {
	socketURL string
	onFrame   FrameHandler
	dial      Dialer
	linger    time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	current   *conn
	watchers  map[uint64]func(connected bool)
	watcherID uint64
}

// NewManager creates a connection manager for the given gateway endpoint.
func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = defaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		socketURL: opts.SocketURL,
		onFrame:   opts.OnFrame,
		dial:      opts.Dialer,
		linger:    opts.Linger,
		logger:    opts.Logger.With("component", "wsconn"),
		watchers:  make(map[uint64]func(bool)),
	}
}

// Handle is one consumer's reference to the shared connection.
type Handle struct {
	m        *Manager
	c        *conn
	released bool
}

// Acquire returns a handle to the live connection for the credential,
// creating one if needed. Acquiring with a different credential than the
// current connection's closes the old connection first (credential rotation
// on re-login).
func (m *Manager) Acquire(credential string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c := m.current; c != nil && c.credential == credential && !c.closing {
		c.refs++
		if c.lingerTimer != nil {
			c.lingerTimer.Stop()
			c.lingerTimer = nil
		}
		return &Handle{m: m, c: c}
	}

	if m.current != nil {
		m.logger.Info("credential changed, rotating connection", "conn_id", m.current.id)
		m.shutdownLocked(m.current)
	}

	c := &conn{
		id:         uuid.NewString(),
		credential: credential,
		refs:       1,
		state:      StateConnecting,
		stop:       make(chan struct{}),
	}
	m.current = c
	go m.run(c)
	return &Handle{m: m, c: c}
}

// Release drops the handle's reference. When the last reference is released
// the underlying socket is closed with a normal-closure code (after the
// configured linger, if any). Releasing twice is a no-op.
func (h *Handle) Release() {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()

	if h.released {
		return
	}
	h.released = true

	c := h.c
	c.refs--
	if c.refs > 0 || c.closing {
		return
	}

	if h.m.linger > 0 {
		m := h.m
		c.lingerTimer = time.AfterFunc(m.linger, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c.refs == 0 && !c.closing {
				m.shutdownLocked(c)
			}
		})
		return
	}
	h.m.shutdownLocked(c)
}

// Send delivers a JSON-serializable message if the socket is currently open
// and silently drops it otherwise. Retry and ordering across reconnects are
// the caller's concern.
func (h *Handle) Send(v any) error {
	h.m.mu.Lock()
	ws := h.c.ws
	open := h.c.state == StateOpen && ws != nil
	h.m.mu.Unlock()

	if !open {
		h.m.logger.Debug("dropping send, connection not open", "conn_id", h.c.id)
		return nil
	}
	return h.c.writeJSON(ws, v)
}

// Connected reports whether the underlying socket is open.
func (h *Handle) Connected() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.c.state == StateOpen
}

// Connected reports whether the current connection, if any, is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.state == StateOpen
}

// OnConnectivityChange registers a watcher invoked with true on open and
// false on close. The returned function unregisters it.
func (m *Manager) OnConnectivityChange(fn func(connected bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watcherID++
	id := m.watcherID
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

// Close tears down the current connection regardless of outstanding handles.
// Intended for process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.shutdownLocked(m.current)
	}
}

// shutdownLocked performs a deliberate close: no reconnection is attempted.
// Caller must hold m.mu.
func (m *Manager) shutdownLocked(c *conn) {
	if c.closing {
		return
	}
	c.closing = true
	c.state = StateClosing
	if c.lingerTimer != nil {
		c.lingerTimer.Stop()
		c.lingerTimer = nil
	}
	close(c.stop)

	if ws := c.ws; ws != nil {
		// Network writes happen off the manager lock.
		go func() {
			c.writeMu.Lock()
			defer c.writeMu.Unlock()
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = ws.Close()
		}()
	}
	c.state = StateClosed
	if m.current == c {
		m.current = nil
	}
	m.logger.Debug("connection shut down", "conn_id", c.id)
}

func (m *Manager) notifyWatchers(connected bool) {
	m.mu.Lock()
	fns := make([]func(bool), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(connected)
	}
}

// dialURL appends the credential as an authentication query parameter.
func (m *Manager) dialURL(credential string) string {
	sep := "?"
	if strings.Contains(m.socketURL, "?") {
		sep = "&"
	}
	return m.socketURL + sep + "token=" + url.QueryEscape(credential)
}
