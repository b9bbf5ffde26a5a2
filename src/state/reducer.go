// Package state owns the synchronized snapshot: the pure reducer that merges
// engine messages into it and the store that serializes their application.
package state

import (
	"math"

	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/shopspring/decimal"
)

// Reduce returns the snapshot that results from applying msg to s.
// It never mutates s; unchanged markets share their slices with s.
// Messages for assets absent from s return s unchanged, except
// MarketConfirmed and SessionLoaded.
func Reduce(s models.MSnapshot, msg protocol.Message) models.MSnapshot {
	switch m := msg.(type) {
	case protocol.MarketConfirmed:
		market := normalizeMarket(m.Market)
		if i := s.IndexOf(market.Asset); i >= 0 {
			return replaceAt(s, i, market)
		}
		next := s
		next.Markets = append(append(make([]models.MMarket, 0, len(s.Markets)+1), s.Markets...), market)
		return next

	case protocol.PriceUpdated:
		return updateMarket(s, m.Asset, func(mk *models.MMarket) {
			mk.Price = m.Price
		})

	case protocol.TradeAppended:
		return updateMarket(s, m.Asset, func(mk *models.MMarket) {
			trades := make([]models.MTradeRecord, 0, len(mk.Trades)+1)
			mk.Trades = append(append(trades, mk.Trades...), m.Trade)
			mk.PnL = addExact(mk.PnL, m.Trade.PnL)
		})

	case protocol.TotalMarginUpdated:
		next := s
		next.TotalMargin = m.Amount
		return next

	case protocol.MarketMarginUpdated:
		return updateMarket(s, m.Asset, func(mk *models.MMarket) {
			mk.Margin = m.Amount
		})

	case protocol.IndicatorsUpdated:
		return updateMarket(s, m.Asset, func(mk *models.MMarket) {
			mk.Indicators = append(make([]models.MIndicatorReading, 0, len(m.Readings)), m.Readings...)
		})

	case protocol.MarketFieldEdited:
		return updateMarket(s, m.Asset, func(mk *models.MMarket) {
			applyEdit(mk, m.Edit)
		})

	case protocol.ErrorNotice:
		next := s
		next.Notice = m.Message
		next.NoticeSeq = s.NoticeSeq + 1
		return next

	case protocol.SessionLoaded:
		next := s
		next.Markets = make([]models.MMarket, 0, len(m.Markets))
		for _, mk := range m.Markets {
			mk = normalizeMarket(mk)
			if i := next.IndexOf(mk.Asset); i >= 0 {
				next.Markets[i] = mk
				continue
			}
			next.Markets = append(next.Markets, mk)
		}
		return next

	case protocol.MarketRemoved:
		i := s.IndexOf(m.Asset)
		if i < 0 {
			return s
		}
		next := s
		next.Markets = make([]models.MMarket, 0, len(s.Markets)-1)
		next.Markets = append(next.Markets, s.Markets[:i]...)
		next.Markets = append(next.Markets, s.Markets[i+1:]...)
		return next

	case protocol.PauseToggled:
		return updateMarket(s, m.Asset, func(mk *models.MMarket) {
			mk.IsPaused = !mk.IsPaused
		})

	case protocol.NoticeDismissed:
		if s.Notice == "" || (m.Seq != 0 && m.Seq != s.NoticeSeq) {
			return s
		}
		next := s
		next.Notice = ""
		return next
	}
	return s
}

// -----------------------------------------------------------------------------

func applyEdit(mk *models.MMarket, edit protocol.FieldEdit) {
	switch e := edit.(type) {
	case protocol.LeverageEdit:
		mk.Lev = e.Lev
		mk.Params.Lev = e.Lev
	case protocol.StrategyEdit:
		mk.Params.Strategy = e.Strategy
	case protocol.MarginEdit:
		mk.Margin = e.Margin
	}
}

// updateMarket copies s and the market for asset, then lets fn change the copy.
func updateMarket(s models.MSnapshot, asset string, fn func(*models.MMarket)) models.MSnapshot {
	i := s.IndexOf(asset)
	if i < 0 {
		return s
	}
	mk := s.Markets[i]
	fn(&mk)
	return replaceAt(s, i, mk)
}

func replaceAt(s models.MSnapshot, i int, mk models.MMarket) models.MSnapshot {
	next := s
	next.Markets = append(make([]models.MMarket, 0, len(s.Markets)), s.Markets...)
	next.Markets[i] = mk
	return next
}

func normalizeMarket(mk models.MMarket) models.MMarket {
	if mk.Trades == nil {
		mk.Trades = []models.MTradeRecord{}
	}
	if mk.Indicators == nil {
		mk.Indicators = []models.MIndicatorReading{}
	}
	return mk
}

// addExact sums in decimal so repeated trade pnl does not drift. Values
// decimal cannot hold, such as an overflowed total, fall back to float addition.
func addExact(a, b float64) float64 {
	if !finite(a) || !finite(b) {
		return a + b
	}
	sum, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return sum
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
