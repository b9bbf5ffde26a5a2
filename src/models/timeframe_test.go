package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeFrameSymbolRoundTrip(t *testing.T) {
	all := AllTimeFrames()
	require.Len(t, all, 13)

	for _, tf := range all {
		symbol := tf.Symbol()
		require.NotEmpty(t, symbol, "time frame %s has no symbol", tf)

		parsed, err := ParseTimeFrameSymbol(symbol)
		require.NoError(t, err)
		assert.Equal(t, tf, parsed)
		assert.Equal(t, symbol, parsed.Symbol())
	}
}

func TestTimeFrameSymbolsAreUnique(t *testing.T) {
	seen := map[string]TimeFrame{}
	for _, tf := range AllTimeFrames() {
		prev, dup := seen[tf.Symbol()]
		require.False(t, dup, "%s and %s share symbol %q", prev, tf, tf.Symbol())
		seen[tf.Symbol()] = tf
	}
}

func TestParseTimeFrameSymbolRejectsUnknown(t *testing.T) {
	for _, symbol := range []string{"", "2m", "1H", "hour1", " 1h", "1w", "M"} {
		_, err := ParseTimeFrameSymbol(symbol)
		assert.ErrorIs(t, err, ErrUnknownTimeFrame, "symbol %q", symbol)
	}
}

func TestTimeFramesAscend(t *testing.T) {
	var last time.Duration
	for _, tf := range AllTimeFrames() {
		assert.Greater(t, tf.Duration(), last, "%s", tf)
		last = tf.Duration()
	}
}

func TestTimeFrameJSON(t *testing.T) {
	raw, err := json.Marshal(TimeFrameHour4)
	require.NoError(t, err)
	assert.JSONEq(t, `"hour4"`, string(raw))

	var tf TimeFrame
	require.NoError(t, json.Unmarshal([]byte(`"week"`), &tf))
	assert.Equal(t, TimeFrameWeek, tf)

	assert.ErrorIs(t, json.Unmarshal([]byte(`"fortnight"`), &tf), ErrUnknownTimeFrame)
	assert.Error(t, json.Unmarshal([]byte(`3`), &tf))

	_, err = json.Marshal(TimeFrame(0))
	assert.ErrorIs(t, err, ErrUnknownTimeFrame)
	assert.False(t, TimeFrame(42).Valid())
}
