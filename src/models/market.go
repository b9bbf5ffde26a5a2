package models

import (
	"encoding/json"
)

// -----------------------------------------------------------------------------
// Strategy descriptor
// -----------------------------------------------------------------------------

type Risk string
type Style string
type Stance string

const (
	RiskLow    Risk = "Low"
	RiskNormal Risk = "Normal"
	RiskHigh   Risk = "High"

	StyleScalp Style = "Scalp"
	StyleSwing Style = "Swing"

	StanceBull    Stance = "Bull"
	StanceBear    Stance = "Bear"
	StanceNeutral Stance = "Neutral"
)

type MCustomStrategy struct {
	Risk        Risk   `json:"risk"`
	Style       Style  `json:"style"`
	Stance      Stance `json:"stance"`
	FollowTrend bool   `json:"followTrend"`
}

// MStrategy is a tagged object with a single "custom" variant.
type MStrategy struct {
	Custom MCustomStrategy `json:"custom"`
}

// MTradeParams carries TradeTime in seconds.
type MTradeParams struct {
	TimeFrame TimeFrame `json:"timeFrame"`
	Lev       uint32    `json:"lev"`
	Strategy  MStrategy `json:"strategy"`
	TradeTime uint64    `json:"tradeTime"`
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

// MTradeRecord is one closed trade. Oid is the (open, close) order id pair.
type MTradeRecord struct {
	Open     float64   `json:"open"`
	Close    float64   `json:"close"`
	PnL      float64   `json:"pnl"`
	Fee      float64   `json:"fee"`
	IsLong   bool      `json:"isLong"`
	Duration *uint64   `json:"duration,omitempty"`
	Oid      [2]uint64 `json:"oid"`
}

// -----------------------------------------------------------------------------
// Market
// -----------------------------------------------------------------------------

// MMarket is one tradable asset's state, keyed by Asset.
type MMarket struct {
	Asset      string              `json:"asset"`
	Lev        uint32              `json:"lev"`
	Price      float64             `json:"price"`
	Params     MTradeParams        `json:"params"`
	Margin     float64             `json:"margin"`
	PnL        float64             `json:"pnl"`
	IsPaused   bool                `json:"isPaused"`
	Indicators []MIndicatorReading `json:"indicators"`
	Trades     []MTradeRecord      `json:"trades"`
}

// UnmarshalJSON accepts a market whose trades field is absent, null or
// malformed; trades then start empty.
func (m *MMarket) UnmarshalJSON(data []byte) error {
	type plain MMarket
	var w struct {
		plain
		Trades json.RawMessage `json:"trades"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = MMarket(w.plain)

	m.Trades = []MTradeRecord{}
	if len(w.Trades) > 0 {
		var trades []MTradeRecord
		if err := json.Unmarshal(w.Trades, &trades); err == nil && trades != nil {
			m.Trades = trades
		}
	}
	if m.Indicators == nil {
		m.Indicators = []MIndicatorReading{}
	}
	return nil
}

// Clone copies the slices so the copy can be changed independently.
func (m MMarket) Clone() MMarket {
	out := m
	out.Indicators = append([]MIndicatorReading(nil), m.Indicators...)
	out.Trades = append([]MTradeRecord(nil), m.Trades...)
	return out
}
