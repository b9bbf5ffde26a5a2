// Package network sends user commands to the trading engine over its HTTP
// command endpoint.
package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"market-sync/src/helpers"
	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/metrics"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/google/uuid"
)

const DefaultCommandURL = "http://127.0.0.1:8090/command"

// CommandDispatcher is fire-and-forget: replies are not correlated with
// commands, failures are not retried and requests carry no timeout. The
// engine reports outcomes through the push connection.
type CommandDispatcher struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
	Errors *helpers.ErrorHandler

	url     string
	applier interfaces.IStateApplier
	wg      sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewCommandDispatcher(cfg *models.MConfig, applier interfaces.IStateApplier, log *logger.Logger, errs *helpers.ErrorHandler) *CommandDispatcher {
	url := DefaultCommandURL
	if cfg != nil && cfg.Engine.CommandURL != "" {
		url = cfg.Engine.CommandURL
	}
	if errs == nil {
		errs = helpers.NewErrorHandler(log)
	}
	return &CommandDispatcher{
		Config:  cfg,
		Client:  &http.Client{},
		Logger:  log,
		Errors:  errs,
		url:     url,
		applier: applier,
	}
}

// -----------------------------------------------------------------------------

// Submit applies the optimistic update of cmd, if any, then sends it in the
// background. It never blocks on the engine.
func (d *CommandDispatcher) Submit(cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.RemoveMarket:
		d.applier.Apply(protocol.MarketRemoved{Asset: protocol.NormalizeAsset(c.Asset)})
	case protocol.ToggleMarket:
		d.applier.Apply(protocol.PauseToggled{Asset: protocol.NormalizeAsset(c.Asset)})
	}

	body, err := protocol.EncodeCommand(cmd)
	if err != nil {
		metrics.CommandsFailed.WithLabelValues(cmd.CommandTag()).Inc()
		d.Errors.Handle(helpers.NewCommandError("encode "+cmd.CommandTag(), err), "dispatcher")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.post(cmd.CommandTag(), body)
	}()
}

// -----------------------------------------------------------------------------

func (d *CommandDispatcher) post(tag string, body []byte) {
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.failed(tag, requestID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := d.Client.Do(req)
	if err != nil {
		d.failed(tag, requestID, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.failed(tag, requestID, fmt.Errorf("bad status: %d", resp.StatusCode))
		return
	}

	metrics.CommandsSent.WithLabelValues(tag).Inc()
	d.Logger.Debug("Command %s accepted (request %s)", tag, requestID)
}

func (d *CommandDispatcher) failed(tag, requestID string, err error) {
	metrics.CommandsFailed.WithLabelValues(tag).Inc()
	d.Errors.Handle(helpers.NewCommandError(fmt.Sprintf("%s (request %s)", tag, requestID), err), "dispatcher")
}

// -----------------------------------------------------------------------------

// Wait blocks until all in-flight requests have finished.
func (d *CommandDispatcher) Wait() {
	d.wg.Wait()
}
