// Package session owns the process-wide synchronization state: one store, one
// engine connection and one command dispatcher, created together and torn
// down together.
package session

import (
	"context"
	"errors"
	"sync"

	"market-sync/src/connection"
	"market-sync/src/helpers"
	"market-sync/src/interfaces"
	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/network"
	"market-sync/src/protocol"
	"market-sync/src/state"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrStopped        = errors.New("session stopped")
)

// -----------------------------------------------------------------------------

type Session struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Errors     *helpers.ErrorHandler
	Store      *state.Store
	Connection *connection.Manager
	Dispatcher *network.CommandDispatcher
	Journal    interfaces.IJournal

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// -----------------------------------------------------------------------------

// New builds the session. journal may be nil. opts reach the connection
// manager and are mostly used by tests.
func New(cfg *models.MConfig, log *logger.Logger, journal interfaces.IJournal, opts ...connection.Option) *Session {
	errs := helpers.NewErrorHandler(log.Named("Errors"))
	store := state.NewStore(cfg, log.Named("Store"))
	dispatcher := network.NewCommandDispatcher(cfg, store, log.Named("Dispatcher"), errs)

	// Every opened connection starts by asking for the full session.
	onOpen := connection.WithOnOpen(func() {
		dispatcher.Submit(protocol.GetSession{})
	})
	manager := connection.NewManager(cfg, store, log.Named("Connection"), errs, append([]connection.Option{onOpen}, opts...)...)

	s := &Session{
		Config:     cfg,
		Logger:     log,
		Errors:     errs,
		Store:      store,
		Connection: manager,
		Dispatcher: dispatcher,
		Journal:    journal,
		done:       make(chan struct{}),
	}
	if journal != nil {
		store.AddHook(s.journalHook)
	}
	return s
}

// -----------------------------------------------------------------------------

// Start runs the apply loop and opens the connection. A session starts once.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.Store.Run(runCtx)
	}()

	s.Connection.Connect()
	s.Logger.Info("Session started")
	return nil
}

// -----------------------------------------------------------------------------

// Stop closes the connection, drains in-flight commands and stops the apply
// loop. Later calls do nothing.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.Connection.Close()
	s.Dispatcher.Wait()
	if started {
		s.cancel()
		<-s.done
	}
	s.Store.Stop()
	s.Logger.Info("Session stopped")
}

// -----------------------------------------------------------------------------

// Submit is the command entry point for the form layer.
func (s *Session) Submit(cmd protocol.Command) {
	s.Dispatcher.Submit(cmd)
}

// -----------------------------------------------------------------------------

// journalHook records appended trades of tracked markets and every notice.
func (s *Session) journalHook(msg protocol.Message, prev, next models.MSnapshot) {
	var err error
	switch m := msg.(type) {
	case protocol.TradeAppended:
		if prev.IndexOf(m.Asset) < 0 {
			return
		}
		err = s.Journal.RecordTrade(m.Asset, m.Trade)
	case protocol.ErrorNotice:
		err = s.Journal.RecordNotice(m.Message)
	default:
		return
	}
	if err != nil {
		s.Logger.Warning("Journal write for %s failed: %v", msg.Tag(), err)
	}
}
