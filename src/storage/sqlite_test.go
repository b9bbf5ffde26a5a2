package storage

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"market-sync/src/logger"
	"market-sync/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *AsyncSQLiteJournal {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &models.MConfig{Storage: models.MStorageConfig{
		DBType: "sqlite",
		DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}}
	j, err := NewAsyncSQLiteJournal(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, j.Initialize())
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestNewJournalRejectsOtherTypes(t *testing.T) {
	_, err := NewAsyncSQLiteJournal(nil, logger.NewNopLogger())
	assert.Error(t, err)

	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "postgres"}}
	_, err = NewAsyncSQLiteJournal(cfg, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestTradesRoundTrip(t *testing.T) {
	j := newTestJournal(t)

	duration := uint64(3600)
	first := models.MTradeRecord{
		Open: 100, Close: 110, PnL: 9.5, Fee: 0.5, IsLong: true,
		Duration: &duration, Oid: [2]uint64{1, math.MaxUint64},
	}
	second := models.MTradeRecord{Open: 110, Close: 105, PnL: -5.2, Fee: 0.3, Oid: [2]uint64{2, 3}}

	require.NoError(t, j.RecordTrade("BTC", first))
	require.NoError(t, j.RecordTrade("ETH", second))
	require.NoError(t, j.RecordTrade("BTC", second))

	btc, err := j.TradesFor("BTC")
	require.NoError(t, err)
	assert.Equal(t, []models.MTradeRecord{first, second}, btc)

	none, err := j.TradesFor("SOL")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRecentNoticesNewestFirst(t *testing.T) {
	j := newTestJournal(t)

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, j.RecordNotice(msg))
	}

	notices, err := j.RecentNotices(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, notices)

	notices, err = j.RecentNotices(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, notices)

	notices, err = j.RecentNotices(0)
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestInitializeStartsEmpty(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.RecordNotice("old"))

	require.NoError(t, j.recreateTables())
	notices, err := j.RecentNotices(5)
	require.NoError(t, err)
	assert.Empty(t, notices)
}
