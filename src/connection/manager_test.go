package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"market-sync/src/helpers"
	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type chanSink chan protocol.Message

func (c chanSink) Enqueue(msg protocol.Message) { c <- msg }

// manualScheduler records scheduled retries and runs them on demand. A
// stopped retry no longer runs, like a stopped timer.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*scheduledRetry
	stopped int
}

type scheduledRetry struct {
	fn      func()
	stopped bool
}

func (s *manualScheduler) schedule(_ time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &scheduledRetry{fn: fn}
	s.pending = append(s.pending, r)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped++
		wasPending := !r.stopped
		r.stopped = true
		return wasPending
	}
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *manualScheduler) stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *manualScheduler) fire(i int) {
	s.mu.Lock()
	r := s.pending[i]
	skip := r.stopped
	s.mu.Unlock()
	if !skip {
		r.fn()
	}
}

type failingDialer struct{ calls atomic.Int32 }

func (d *failingDialer) DialContext(context.Context, string, http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	return nil, nil, errors.New("connection refused")
}

type blockingDialer struct {
	calls   atomic.Int32
	release chan struct{}
}

func (d *blockingDialer) DialContext(ctx context.Context, _ string, _ http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return nil, nil, errors.New("gave up")
}

// engineServer writes frames to each connection, then holds it until the
// test ends or closeAfter is set.
func engineServer(t *testing.T, frames []string, closeAfter bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var accepted atomic.Int32
	upgrader := websocket.Upgrader{}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		accepted.Add(1)
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		}
		<-done
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})
	return srv, &accepted
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestManager(url string, sink chanSink, opts ...Option) *Manager {
	cfg := &models.MConfig{Engine: models.MEngineConfig{WSURL: url, ReconnectDelayMs: 10, HandshakeTimeoutSeconds: 2}}
	log := logger.NewNopLogger()
	return NewManager(cfg, sink, log, helpers.NewErrorHandler(log), opts...)
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestFramesReachSinkAndBadFramesAreDropped(t *testing.T) {
	srv, _ := engineServer(t, []string{
		`{"updateTotalMargin":100}`,
		`not json`,
		`{"unknownTag":1}`,
		`{"updatePrice":["BTC",65000.5]}`,
	}, false)

	sink := make(chanSink, 8)
	var opened atomic.Int32
	sched := &manualScheduler{}
	m := newTestManager(wsURL(srv), sink,
		WithScheduler(sched.schedule),
		WithOnOpen(func() { opened.Add(1) }))
	defer m.Close()

	m.Connect()

	for _, want := range []protocol.Message{
		protocol.TotalMarginUpdated{Amount: 100},
		protocol.PriceUpdated{Asset: "BTC", Price: 65000.5},
	} {
		select {
		case got := <-sink:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing %v", want)
		}
	}

	assert.Equal(t, Open, m.State())
	assert.Equal(t, int32(1), opened.Load())
	assert.Equal(t, 2, m.Errors.Count(helpers.CategoryDecode))
	assert.Zero(t, sched.count())
}

func TestConnectIsNoOpWhileConnecting(t *testing.T) {
	dialer := &blockingDialer{release: make(chan struct{})}
	sched := &manualScheduler{}
	m := newTestManager(DefaultURL, make(chanSink, 1), WithDialer(dialer), WithScheduler(sched.schedule))

	m.Connect()
	m.Connect()
	m.Connect()
	assert.Equal(t, Connecting, m.State())

	close(dialer.release)
	require.Eventually(t, func() bool { return m.State() == Errored }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), dialer.calls.Load())
	assert.Equal(t, 1, sched.count())
	m.Close()
}

func TestConnectIsNoOpWhileOpen(t *testing.T) {
	srv, accepted := engineServer(t, nil, false)
	m := newTestManager(wsURL(srv), make(chanSink, 1))
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool { return m.State() == Open }, 2*time.Second, 5*time.Millisecond)
	m.Connect()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), accepted.Load())
}

func TestEachFailureSchedulesOneReconnect(t *testing.T) {
	dialer := &failingDialer{}
	sched := &manualScheduler{}
	m := newTestManager(DefaultURL, make(chanSink, 1), WithDialer(dialer), WithScheduler(sched.schedule))
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool { return sched.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Errored, m.State())

	// a second report for the same attempt is ignored
	m.mu.Lock()
	id := m.attempt
	m.mu.Unlock()
	m.fail(id, errors.New("late"))
	assert.Equal(t, 1, sched.count())

	sched.fire(0)
	require.Eventually(t, func() bool { return sched.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), dialer.calls.Load())
	require.Eventually(t, func() bool {
		return m.Errors.Count(helpers.CategoryTransport) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestConnectReplacesPendingRetry(t *testing.T) {
	dialer := &failingDialer{}
	sched := &manualScheduler{}
	m := newTestManager(DefaultURL, make(chanSink, 1), WithDialer(dialer), WithScheduler(sched.schedule))
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool { return sched.count() == 1 }, time.Second, 5*time.Millisecond)

	// explicit reconnect while the retry is still pending
	m.Connect()
	assert.Equal(t, 1, sched.stops())
	require.Eventually(t, func() bool { return sched.count() == 2 }, time.Second, 5*time.Millisecond)

	// the replaced retry never dials
	sched.fire(0)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), dialer.calls.Load())
	assert.Equal(t, 2, sched.count())
}

func TestServerCloseSchedulesReconnect(t *testing.T) {
	srv, accepted := engineServer(t, []string{`{"updateTotalMargin":1}`}, true)
	sink := make(chanSink, 4)
	sched := &manualScheduler{}
	m := newTestManager(wsURL(srv), sink, WithScheduler(sched.schedule))
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool { return sched.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Closed, m.State())
	assert.Len(t, sink, 1)

	sched.fire(0)
	require.Eventually(t, func() bool { return accepted.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestReconnectsWithRealTimer(t *testing.T) {
	dialer := &failingDialer{}
	m := newTestManager(DefaultURL, make(chanSink, 1), WithDialer(dialer))
	defer m.Close()

	m.Connect()
	require.Eventually(t, func() bool { return dialer.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	dialer := &failingDialer{}
	sched := &manualScheduler{}
	m := newTestManager(DefaultURL, make(chanSink, 1), WithDialer(dialer), WithScheduler(sched.schedule))

	m.Connect()
	require.Eventually(t, func() bool { return sched.count() == 1 }, time.Second, 5*time.Millisecond)

	m.Close()
	assert.Equal(t, 1, sched.stops())
	assert.Equal(t, Closed, m.State())

	// a timer that slipped through does nothing after Close
	sched.pending[0].fn()
	m.Connect()
	assert.Equal(t, Closed, m.State())
	assert.Equal(t, int32(1), dialer.calls.Load())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "errored", Errored.String())
	assert.Equal(t, "unknown", State(42).String())
}
