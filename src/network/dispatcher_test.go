package network

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"market-sync/src/helpers"
	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	body      string
	requestID string
	mediaType string
}

type fakeEngine struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		body:      string(body),
		requestID: r.Header.Get("X-Request-ID"),
		mediaType: r.Header.Get("Content-Type"),
	})
	status := f.status
	f.mu.Unlock()
	w.WriteHeader(status)
}

func (f *fakeEngine) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// recordingApplier keeps the messages applied before any request completes.
type recordingApplier struct {
	mu      sync.Mutex
	applied []protocol.Message
}

func (r *recordingApplier) Apply(msg protocol.Message) models.MSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, msg)
	return models.EmptySnapshot()
}

func newTestDispatcher(t *testing.T, status int) (*CommandDispatcher, *fakeEngine, *recordingApplier) {
	t.Helper()
	engine := &fakeEngine{status: status}
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	cfg := &models.MConfig{Engine: models.MEngineConfig{CommandURL: srv.URL + "/command"}}
	applier := &recordingApplier{}
	log := logger.NewNopLogger()
	return NewCommandDispatcher(cfg, applier, log, helpers.NewErrorHandler(log)), engine, applier
}

func TestSubmitPostsWireForm(t *testing.T) {
	d, engine, _ := newTestDispatcher(t, http.StatusOK)

	d.Submit(protocol.CloseAll{})
	d.Wait()

	reqs := engine.recorded()
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"closeAll":null}`, reqs[0].body)
	assert.Equal(t, "application/json", reqs[0].mediaType)
	_, err := uuid.Parse(reqs[0].requestID)
	assert.NoError(t, err)
	assert.Zero(t, d.Errors.Count(helpers.CategoryCommand))
}

func TestRemoveIsAppliedBeforeSending(t *testing.T) {
	block := make(chan struct{})
	var seen []protocol.Message
	applier := &recordingApplier{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &models.MConfig{Engine: models.MEngineConfig{CommandURL: srv.URL}}
	d := NewCommandDispatcher(cfg, applier, logger.NewNopLogger(), nil)

	d.Submit(protocol.RemoveMarket{Asset: "eth"})

	// the engine has not answered yet
	applier.mu.Lock()
	seen = append(seen, applier.applied...)
	applier.mu.Unlock()
	assert.Equal(t, []protocol.Message{protocol.MarketRemoved{Asset: "ETH"}}, seen)

	close(block)
	d.Wait()
}

func TestToggleIsAppliedAndSent(t *testing.T) {
	d, engine, applier := newTestDispatcher(t, http.StatusOK)

	d.Submit(protocol.ToggleMarket{Asset: "btc"})
	d.Wait()

	assert.Equal(t, []protocol.Message{protocol.PauseToggled{Asset: "BTC"}}, applier.applied)
	reqs := engine.recorded()
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"toggleMarket":"BTC"}`, reqs[0].body)
}

func TestOtherCommandsAreNotOptimistic(t *testing.T) {
	d, engine, applier := newTestDispatcher(t, http.StatusOK)

	d.Submit(protocol.PauseAll{})
	d.Submit(protocol.GetSession{})
	d.Wait()

	assert.Empty(t, applier.applied)
	assert.Len(t, engine.recorded(), 2)
}

func TestFailedCommandIsReportedNotRetried(t *testing.T) {
	d, engine, applier := newTestDispatcher(t, http.StatusInternalServerError)

	d.Submit(protocol.RemoveMarket{Asset: "ETH"})
	d.Wait()

	assert.Len(t, engine.recorded(), 1)
	assert.Equal(t, 1, d.Errors.Count(helpers.CategoryCommand))
	// the optimistic removal stands
	assert.Len(t, applier.applied, 1)
}

func TestUnreachableEngine(t *testing.T) {
	cfg := &models.MConfig{Engine: models.MEngineConfig{CommandURL: "http://127.0.0.1:1/command"}}
	d := NewCommandDispatcher(cfg, &recordingApplier{}, logger.NewNopLogger(), nil)
	d.Client.Timeout = 2 * time.Second

	d.Submit(protocol.PauseAll{})
	d.Wait()
	assert.Equal(t, 1, d.Errors.Count(helpers.CategoryCommand))
}

func TestDefaultCommandURL(t *testing.T) {
	d := NewCommandDispatcher(nil, &recordingApplier{}, logger.NewNopLogger(), nil)
	assert.Equal(t, DefaultCommandURL, d.url)
}
