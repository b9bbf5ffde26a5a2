package main

import (
	"testing"

	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() addForm {
	return addForm{
		Asset:     "btc",
		TimeFrame: "1h",
		Lev:       5,
		Risk:      "Normal",
		Style:     "Swing",
		Stance:    "Neutral",
		TradeTime: 3600,
		Alloc:     0.2,
	}
}

func TestBuildAddMarket(t *testing.T) {
	f := validForm()
	f.FollowTrend = true
	f.Indicators = "rsi:14@1h, ema:20@15m"
	f.IndicatorsJSON = `[[{"emaCross":{"short":9,"long":21}},"hour4"]]`

	cmd, err := f.build()
	require.NoError(t, err)

	info := cmd.Info
	assert.Equal(t, "BTC", info.Asset)
	assert.Equal(t, protocol.MarginAllocation{Mode: protocol.MarginAlloc, Value: 0.2}, info.MarginAlloc)
	assert.Equal(t, models.TimeFrameHour1, info.TradeParams.TimeFrame)
	assert.Equal(t, uint32(5), info.TradeParams.Lev)
	assert.True(t, info.TradeParams.Strategy.Custom.FollowTrend)
	assert.Equal(t, []models.IndicatorID{
		{Kind: models.Rsi{Periods: 14}, TimeFrame: models.TimeFrameHour1},
		{Kind: models.Ema{Periods: 20}, TimeFrame: models.TimeFrameMin15},
		{Kind: models.EmaCross{Short: 9, Long: 21}, TimeFrame: models.TimeFrameHour4},
	}, info.Config)
}

func TestBuildWithFixedAmount(t *testing.T) {
	f := validForm()
	f.Alloc = 0
	f.Amount = 150

	cmd, err := f.build()
	require.NoError(t, err)
	assert.Equal(t, protocol.MarginAllocation{Mode: protocol.MarginAmount, Value: 150}, cmd.Info.MarginAlloc)
	assert.Empty(t, cmd.Info.Config)
}

func TestBuildRejectsInvalidForms(t *testing.T) {
	cases := map[string]func(f *addForm){
		"missing asset":       func(f *addForm) { f.Asset = "" },
		"asset with symbols":  func(f *addForm) { f.Asset = "BTC/USD" },
		"zero leverage":       func(f *addForm) { f.Lev = 0 },
		"leverage too high":   func(f *addForm) { f.Lev = 500 },
		"lowercase risk":      func(f *addForm) { f.Risk = "low" },
		"unknown style":       func(f *addForm) { f.Style = "Hodl" },
		"unknown stance":      func(f *addForm) { f.Stance = "Sideways" },
		"alloc above one":     func(f *addForm) { f.Alloc = 1.5 },
		"negative amount":     func(f *addForm) { f.Alloc, f.Amount = 0, -1 },
		"both margins":        func(f *addForm) { f.Amount = 10 },
		"no margin":           func(f *addForm) { f.Alloc = 0 },
		"unknown time frame":  func(f *addForm) { f.TimeFrame = "7m" },
		"canonical tf name":   func(f *addForm) { f.TimeFrame = "hour1" },
		"broken json":         func(f *addForm) { f.IndicatorsJSON = `[[` },
		"unknown json kind":   func(f *addForm) { f.IndicatorsJSON = `[[{"macd":12},"hour1"]]` },
		"bad shorthand":       func(f *addForm) { f.Indicators = "rsi14@1h" },
		"shorthand no tf":     func(f *addForm) { f.Indicators = "rsi:14" },
		"shorthand zero":      func(f *addForm) { f.Indicators = "rsi:0@1h" },
		"shorthand bad tf":    func(f *addForm) { f.Indicators = "rsi:14@2m" },
		"shorthand two-param": func(f *addForm) { f.Indicators = "emaCross:9@1h" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := validForm()
			mutate(&f)
			_, err := f.build()
			assert.Error(t, err)
		})
	}
}

func TestFormErrorNamesFields(t *testing.T) {
	f := validForm()
	f.Lev = 0
	f.Risk = "Extreme"

	_, err := f.build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lev fails required")
	assert.Contains(t, err.Error(), "risk fails oneof")
}

func TestAllocPreview(t *testing.T) {
	assert.Equal(t, "1000.00", allocPreview(0.2, 5000).StringFixed(2))
	assert.Equal(t, "33.33", allocPreview(0.3333, 100).StringFixed(2))
	assert.Equal(t, "0.00", allocPreview(0.5, 0).StringFixed(2))
}
