package state

import (
	"context"
	"sync"
	"time"

	"market-sync/src/logger"
	"market-sync/src/metrics"
	"market-sync/src/models"
	"market-sync/src/protocol"
)

// DefaultNoticeExpiry is how long an engine notice stays visible.
const DefaultNoticeExpiry = 5 * time.Second

const inboxSize = 1024

// Hook observes every application. Hooks run inside the apply context and
// must not call Apply.
type Hook func(msg protocol.Message, prev, next models.MSnapshot)

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store owns the session's only snapshot. Apply is the single mutation path;
// each call is atomic for readers. Messages from the connection are queued
// with Enqueue and applied in order by Run.
type Store struct {
	Logger       *logger.Logger
	noticeExpiry time.Duration

	// applyMu serializes Apply, its hooks and its publication.
	applyMu     sync.Mutex
	noticeTimer *time.Timer
	hooks       []Hook

	mu       sync.RWMutex
	snapshot models.MSnapshot

	inbox chan protocol.Message

	subMu   sync.Mutex
	subs    map[int]chan models.MSnapshot
	nextSub int
}

// NewStore creates an empty store. cfg.Notice.ExpiryMs overrides the notice expiry.
func NewStore(cfg *models.MConfig, log *logger.Logger) *Store {
	expiry := DefaultNoticeExpiry
	if cfg != nil && cfg.Notice.ExpiryMs > 0 {
		expiry = time.Duration(cfg.Notice.ExpiryMs) * time.Millisecond
	}
	return &Store{
		Logger:       log,
		noticeExpiry: expiry,
		snapshot:     models.EmptySnapshot(),
		inbox:        make(chan protocol.Message, inboxSize),
		subs:         make(map[int]chan models.MSnapshot),
	}
}

// -----------------------------------------------------------------------------

// AddHook registers h for every later application.
func (s *Store) AddHook(h Hook) {
	s.applyMu.Lock()
	s.hooks = append(s.hooks, h)
	s.applyMu.Unlock()
}

// -----------------------------------------------------------------------------

// Snapshot returns the current snapshot. It must be treated as read-only.
func (s *Store) Snapshot() models.MSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// -----------------------------------------------------------------------------

// Enqueue queues msg for Run.
func (s *Store) Enqueue(msg protocol.Message) {
	s.inbox <- msg
}

// Run applies queued messages until ctx is done.
func (s *Store) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			s.Apply(msg)
		}
	}
}

// -----------------------------------------------------------------------------

// Apply reduces msg into the snapshot and publishes the result.
func (s *Store) Apply(msg protocol.Message) models.MSnapshot {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	prev := s.snapshot
	next := Reduce(prev, msg)
	s.snapshot = next
	s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.ErrorNotice:
		s.armNoticeExpiry(next.NoticeSeq)
		s.Logger.Warning("Engine notice: %s", m.Message)
	case protocol.NoticeDismissed:
		if m.Seq == 0 && s.noticeTimer != nil {
			s.noticeTimer.Stop()
			s.noticeTimer = nil
		}
	}

	metrics.MessagesApplied.WithLabelValues(msg.Tag()).Inc()
	for _, h := range s.hooks {
		h(msg, prev, next)
	}
	s.publish(next)
	return next
}

// DismissNotice is the manual close of the visible notice.
func (s *Store) DismissNotice() {
	s.Apply(protocol.NoticeDismissed{})
}

// armNoticeExpiry replaces any pending expiry. A timer that already fired
// carries an older seq and is ignored by the reducer.
func (s *Store) armNoticeExpiry(seq uint64) {
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
	}
	s.noticeTimer = time.AfterFunc(s.noticeExpiry, func() {
		s.Apply(protocol.NoticeDismissed{Seq: seq})
	})
}

// Stop cancels the pending notice expiry.
func (s *Store) Stop() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// Subscribe returns a channel that always holds the latest unread snapshot.
// Slow readers skip intermediate snapshots, never see partial ones.
func (s *Store) Subscribe() (<-chan models.MSnapshot, func()) {
	ch := make(chan models.MSnapshot, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) publish(snap models.MSnapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the unread snapshot with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}
