package models

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketJSON = `{
	"asset": "BTC",
	"lev": 10,
	"price": 65000.5,
	"params": {
		"timeFrame": "hour1",
		"lev": 10,
		"strategy": {"custom": {"risk": "Normal", "style": "Swing", "stance": "Neutral", "followTrend": true}},
		"tradeTime": 3600
	},
	"margin": 1000,
	"pnl": -2.5,
	"isPaused": false,
	"indicators": [{"id": [{"rsi": 14}, "hour1"], "value": {"rsiValue": 61.2}}]
	%s
}`

func decodeMarketJSON(t *testing.T, tradesField string) MMarket {
	t.Helper()
	raw := []byte(fmt.Sprintf(marketJSON, tradesField))
	var m MMarket
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestMarketTradesNormalization(t *testing.T) {
	cases := map[string]string{
		"absent":    ``,
		"null":      `, "trades": null`,
		"malformed": `, "trades": {"not": "a list"}`,
		"empty":     `, "trades": []`,
	}
	for name, field := range cases {
		t.Run(name, func(t *testing.T) {
			m := decodeMarketJSON(t, field)
			require.NotNil(t, m.Trades)
			assert.Empty(t, m.Trades)
		})
	}
}

func TestMarketDecodesFields(t *testing.T) {
	m := decodeMarketJSON(t, `, "trades": [{"open": 1, "close": 2, "pnl": 1, "fee": 0.1, "isLong": true, "oid": [7, 8]}]`)

	assert.Equal(t, "BTC", m.Asset)
	assert.Equal(t, uint32(10), m.Lev)
	assert.Equal(t, TimeFrameHour1, m.Params.TimeFrame)
	assert.Equal(t, RiskNormal, m.Params.Strategy.Custom.Risk)
	assert.True(t, m.Params.Strategy.Custom.FollowTrend)
	assert.Equal(t, uint64(3600), m.Params.TradeTime)
	require.Len(t, m.Indicators, 1)
	assert.Equal(t, RsiValue(61.2), m.Indicators[0].Value)
	require.Len(t, m.Trades, 1)
	assert.Nil(t, m.Trades[0].Duration)
	assert.Equal(t, [2]uint64{7, 8}, m.Trades[0].Oid)
}

func TestMarketIndicatorsDefaultToEmpty(t *testing.T) {
	raw := `{"asset":"ETH","lev":1,"price":0,"params":{"timeFrame":"min5","lev":1,"strategy":{"custom":{"risk":"Low","style":"Scalp","stance":"Bull","followTrend":false}},"tradeTime":0},"margin":0,"pnl":0,"isPaused":true}`
	var m MMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.NotNil(t, m.Indicators)
	assert.Empty(t, m.Indicators)
	assert.True(t, m.IsPaused)
}

func TestMarketCloneIsIndependent(t *testing.T) {
	m := decodeMarketJSON(t, `, "trades": [{"open": 1, "close": 2, "pnl": 1, "fee": 0, "isLong": false, "oid": [1, 2]}]`)
	c := m.Clone()
	c.Trades[0].PnL = 99
	c.Indicators[0].Value = nil

	assert.Equal(t, 1.0, m.Trades[0].PnL)
	assert.NotNil(t, m.Indicators[0].Value)
}

func TestSnapshotLookups(t *testing.T) {
	s := EmptySnapshot()
	assert.Equal(t, -1, s.IndexOf("BTC"))
	assert.Empty(t, s.Assets())

	s.Markets = append(s.Markets, MMarket{Asset: "BTC"}, MMarket{Asset: "ETH"})
	assert.Equal(t, 1, s.IndexOf("ETH"))
	assert.Equal(t, []string{"BTC", "ETH"}, s.Assets())

	m, ok := s.Market("ETH")
	assert.True(t, ok)
	assert.Equal(t, "ETH", m.Asset)

	raw, err := json.Marshal(EmptySnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"markets":[],"totalMargin":0}`, string(raw))
}
