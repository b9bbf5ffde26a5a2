// Package connection keeps the single push connection to the trading engine
// alive and feeds its decoded frames to the state store.
package connection

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"market-sync/src/helpers"
	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/metrics"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	DefaultURL              = "ws://127.0.0.1:8090/ws"
	DefaultReconnectDelay   = time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	// The engine pings every 30 seconds.
	pingWait       = 75 * time.Second
	writeWait      = 2 * time.Second
	maxMessageSize = 4 * 1024 * 1024
)

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------
// Injection points
// -----------------------------------------------------------------------------

// Dialer is satisfied by *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Scheduler runs fn once after d and returns a function that cancels it.
// fn must not be called before Scheduler returns.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

func timerScheduler(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type Option func(*Manager)

func WithDialer(d Dialer) Option { return func(m *Manager) { m.dialer = d } }

func WithScheduler(s Scheduler) Option { return func(m *Manager) { m.schedule = s } }

// WithOnOpen sets the first action performed on every opened connection.
func WithOnOpen(fn func()) Option { return func(m *Manager) { m.onOpen = fn } }

// -----------------------------------------------------------------------------
// Manager
// -----------------------------------------------------------------------------

// Manager owns the connection lifecycle. Every failed or closed attempt
// schedules exactly one reconnect after a fixed delay, until Close.
type Manager struct {
	Logger *logger.Logger
	Errors *helpers.ErrorHandler

	url              string
	delay            time.Duration
	handshakeTimeout time.Duration
	dialer           Dialer
	schedule         Scheduler
	sink             interfaces.IMessageSink
	onOpen           func()

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	state     State
	attempt   uint64
	conn      *websocket.Conn
	stopRetry func() bool
	closed    bool
}

// -----------------------------------------------------------------------------

func NewManager(cfg *models.MConfig, sink interfaces.IMessageSink, log *logger.Logger, errs *helpers.ErrorHandler, opts ...Option) *Manager {
	m := &Manager{
		Logger:           log,
		Errors:           errs,
		url:              DefaultURL,
		delay:            DefaultReconnectDelay,
		handshakeTimeout: DefaultHandshakeTimeout,
		schedule:         timerScheduler,
		sink:             sink,
	}
	if cfg != nil {
		if cfg.Engine.WSURL != "" {
			m.url = cfg.Engine.WSURL
		}
		if cfg.Engine.ReconnectDelayMs > 0 {
			m.delay = time.Duration(cfg.Engine.ReconnectDelayMs) * time.Millisecond
		}
		if cfg.Engine.HandshakeTimeoutSeconds > 0 {
			m.handshakeTimeout = time.Duration(cfg.Engine.HandshakeTimeoutSeconds) * time.Second
		}
	}
	m.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: m.handshakeTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.Errors == nil {
		m.Errors = helpers.NewErrorHandler(log)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// -----------------------------------------------------------------------------

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) StateName() string {
	return m.State().String()
}

// setState must be called with mu held.
func (m *Manager) setState(s State) {
	m.state = s
	metrics.ConnectionState.Set(float64(s))
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Connect starts an attempt. It does nothing while an attempt is connecting
// or open, or after Close.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.state == Connecting || m.state == Open {
		m.mu.Unlock()
		return
	}
	// An explicit Connect replaces the pending retry.
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	m.attempt++
	id := m.attempt
	m.setState(Connecting)
	ctx := m.ctx
	m.mu.Unlock()

	m.Logger.Info("Connecting to %s", m.url)
	go m.run(ctx, id)
}

// -----------------------------------------------------------------------------

// Close cancels a pending reconnect and tears down the socket. No reconnect
// follows.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.attempt++
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	conn := m.conn
	m.conn = nil
	m.setState(Closed)
	m.cancel()
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	m.Logger.Info("Connection closed")
}

// -----------------------------------------------------------------------------

func (m *Manager) run(ctx context.Context, id uint64) {
	dialCtx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
	conn, _, err := m.dialer.DialContext(dialCtx, m.url, nil)
	cancel()
	if err != nil {
		m.fail(id, helpers.NewTransportError("dial "+m.url, err))
		return
	}

	m.mu.Lock()
	if m.closed || m.attempt != id {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.setState(Open)
	m.mu.Unlock()

	m.Logger.Info("Connected to %s", m.url)
	if m.onOpen != nil {
		m.onOpen()
	}
	m.readLoop(conn, id)
}

// -----------------------------------------------------------------------------

func (m *Manager) readLoop(conn *websocket.Conn, id uint64) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.fail(id, helpers.NewTransportError("read", err))
			return
		}
		metrics.FramesReceived.Inc()

		msg, err := protocol.Decode(data)
		if err != nil {
			metrics.DecodeFailures.Inc()
			m.Errors.Handle(helpers.NewDecodeError("dropped frame", err), "connection")
			continue
		}
		m.sink.Enqueue(msg)
	}
}

// -----------------------------------------------------------------------------

// fail ends attempt id and schedules its one reconnect. Stale attempts and
// repeated failures of the same attempt are ignored.
func (m *Manager) fail(id uint64, err error) {
	m.mu.Lock()
	if m.closed || m.attempt != id || (m.state != Connecting && m.state != Open) {
		m.mu.Unlock()
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		m.setState(Closed)
	} else {
		m.setState(Errored)
	}
	conn := m.conn
	m.conn = nil
	m.stopRetry = m.schedule(m.delay, m.Connect)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	metrics.ReconnectsScheduled.Inc()
	m.Errors.Handle(err, "connection")
	m.Logger.Info("Reconnecting in %v", m.delay)
}
