package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"market-sync/src/logger"
	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(expiry time.Duration) *Store {
	cfg := &models.MConfig{Notice: models.MNoticeConfig{ExpiryMs: int(expiry / time.Millisecond)}}
	return NewStore(cfg, logger.NewNopLogger())
}

func TestStoreApplyPublishesSnapshot(t *testing.T) {
	store := newTestStore(time.Second)
	defer store.Stop()

	updates, cancel := store.Subscribe()
	defer cancel()

	store.Apply(protocol.MarketConfirmed{Market: testMarket("BTC")})

	select {
	case snap := <-updates:
		assert.Equal(t, []string{"BTC"}, snap.Assets())
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
	assert.Equal(t, []string{"BTC"}, store.Snapshot().Assets())
}

func TestStoreSubscriberSeesLatestOnly(t *testing.T) {
	store := newTestStore(time.Second)
	defer store.Stop()

	updates, cancel := store.Subscribe()
	defer cancel()

	store.Apply(protocol.MarketConfirmed{Market: testMarket("BTC")})
	for i := 1; i <= 5; i++ {
		store.Apply(protocol.PriceUpdated{Asset: "BTC", Price: float64(i)})
	}

	snap := <-updates
	assert.Equal(t, 5.0, snap.Markets[0].Price)
	select {
	case <-updates:
		t.Fatal("stale snapshot left in channel")
	default:
	}
}

func TestStoreCancelSubscription(t *testing.T) {
	store := newTestStore(time.Second)
	_, cancel := store.Subscribe()
	assert.Equal(t, 1, store.Subscribers())
	cancel()
	cancel()
	assert.Equal(t, 0, store.Subscribers())

	// publishing without subscribers is fine
	store.Apply(protocol.TotalMarginUpdated{Amount: 1})
}

func TestStoreRunAppliesInOrder(t *testing.T) {
	store := newTestStore(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Run(ctx)

	store.Enqueue(protocol.MarketConfirmed{Market: testMarket("ETH")})
	store.Enqueue(protocol.PriceUpdated{Asset: "ETH", Price: 1})
	store.Enqueue(protocol.PriceUpdated{Asset: "ETH", Price: 2})
	store.Enqueue(protocol.PriceUpdated{Asset: "ETH", Price: 3})

	require.Eventually(t, func() bool {
		m, ok := store.Snapshot().Market("ETH")
		return ok && m.Price == 3
	}, time.Second, 5*time.Millisecond)
}

func TestStoreHooksSeeEveryApplication(t *testing.T) {
	store := newTestStore(time.Second)

	var (
		mu   sync.Mutex
		tags []string
	)
	store.AddHook(func(msg protocol.Message, prev, next models.MSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		tags = append(tags, msg.Tag())
		if _, ok := msg.(protocol.MarketConfirmed); ok {
			assert.Empty(t, prev.Markets)
			assert.Len(t, next.Markets, 1)
		}
	})

	store.Apply(protocol.MarketConfirmed{Market: testMarket("BTC")})
	store.Apply(protocol.MarketRemoved{Asset: "BTC"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{protocol.TagMarketConfirmed, protocol.MarketRemoved{}.Tag()}, tags)
}

func TestNoticeIsReplacedAndExpiresFromLatest(t *testing.T) {
	expiry := 150 * time.Millisecond
	store := newTestStore(expiry)
	defer store.Stop()

	store.Apply(protocol.ErrorNotice{Message: "x"})
	time.Sleep(expiry / 2)
	store.Apply(protocol.ErrorNotice{Message: "y"})
	assert.Equal(t, "y", store.Snapshot().Notice)

	// the first notice's deadline passes without clearing "y"
	assert.Never(t, func() bool {
		return store.Snapshot().Notice != "y"
	}, expiry*2/3, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return store.Snapshot().Notice == ""
	}, expiry*2, 5*time.Millisecond)
}

func TestDismissNoticeClearsImmediately(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Stop()

	store.Apply(protocol.ErrorNotice{Message: "insufficient margin"})
	require.Equal(t, "insufficient margin", store.Snapshot().Notice)

	store.DismissNotice()
	assert.Empty(t, store.Snapshot().Notice)

	// dismissing with nothing visible changes nothing
	before := store.Snapshot()
	store.DismissNotice()
	assert.Equal(t, before, store.Snapshot())
}

func TestStoreDefaultsNoticeExpiry(t *testing.T) {
	store := NewStore(nil, logger.NewNopLogger())
	assert.Equal(t, DefaultNoticeExpiry, store.noticeExpiry)
	assert.Equal(t, models.EmptySnapshot(), store.Snapshot())
}
