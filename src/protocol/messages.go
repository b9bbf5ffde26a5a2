// Package protocol holds the typed messages exchanged with the trading engine
// and the codec between them and their JSON wire form.
package protocol

import "market-sync/src/models"

// Message is one input of the state reducer. The set is closed.
type Message interface {
	// Tag is the wire key of the variant, or a local name for inputs that
	// never travel over the wire.
	Tag() string
}

// Wire tags of the inbound variants.
const (
	TagMarketConfirmed     = "confirmMarket"
	TagPriceUpdated        = "updatePrice"
	TagTradeAppended       = "newTradeInfo"
	TagTotalMarginUpdated  = "updateTotalMargin"
	TagMarketMarginUpdated = "updateMarketMargin"
	TagIndicatorsUpdated   = "updateIndicatorValues"
	TagMarketFieldEdited   = "marketInfoEdit"
	TagErrorNotice         = "userError"
	TagSessionLoaded       = "loadSession"
)

// InboundTags lists the nine tags the decoder recognizes.
var InboundTags = []string{
	TagMarketConfirmed,
	TagPriceUpdated,
	TagTradeAppended,
	TagTotalMarginUpdated,
	TagMarketMarginUpdated,
	TagIndicatorsUpdated,
	TagMarketFieldEdited,
	TagErrorNotice,
	TagSessionLoaded,
}

// -----------------------------------------------------------------------------
// Inbound variants
// -----------------------------------------------------------------------------

type MarketConfirmed struct{ Market models.MMarket }

type PriceUpdated struct {
	Asset string
	Price float64
}

type TradeAppended struct {
	Asset string
	Trade models.MTradeRecord
}

type TotalMarginUpdated struct{ Amount float64 }

type MarketMarginUpdated struct {
	Asset  string
	Amount float64
}

// IndicatorsUpdated carries the complete indicator set for one asset.
type IndicatorsUpdated struct {
	Asset    string
	Readings []models.MIndicatorReading
}

type MarketFieldEdited struct {
	Asset string
	Edit  FieldEdit
}

type ErrorNotice struct{ Message string }

type SessionLoaded struct{ Markets []models.MMarket }

func (MarketConfirmed) Tag() string     { return TagMarketConfirmed }
func (PriceUpdated) Tag() string        { return TagPriceUpdated }
func (TradeAppended) Tag() string       { return TagTradeAppended }
func (TotalMarginUpdated) Tag() string  { return TagTotalMarginUpdated }
func (MarketMarginUpdated) Tag() string { return TagMarketMarginUpdated }
func (IndicatorsUpdated) Tag() string   { return TagIndicatorsUpdated }
func (MarketFieldEdited) Tag() string   { return TagMarketFieldEdited }
func (ErrorNotice) Tag() string         { return TagErrorNotice }
func (SessionLoaded) Tag() string       { return TagSessionLoaded }

// -----------------------------------------------------------------------------
// Field edits
// -----------------------------------------------------------------------------

// FieldEdit is one of LeverageEdit, StrategyEdit or MarginEdit.
type FieldEdit interface {
	EditKind() string
}

type LeverageEdit struct{ Lev uint32 }
type StrategyEdit struct{ Strategy models.MStrategy }
type MarginEdit struct{ Margin float64 }

func (LeverageEdit) EditKind() string { return "lev" }
func (StrategyEdit) EditKind() string { return "strategy" }
func (MarginEdit) EditKind() string   { return "margin" }

// -----------------------------------------------------------------------------
// Local inputs (applied by this process, never decoded from the wire)
// -----------------------------------------------------------------------------

// MarketRemoved is the optimistic half of a remove command.
type MarketRemoved struct{ Asset string }

// PauseToggled is the optimistic half of a toggle command.
type PauseToggled struct{ Asset string }

// NoticeDismissed clears the notice armed with Seq. Seq zero clears any notice.
type NoticeDismissed struct{ Seq uint64 }

func (MarketRemoved) Tag() string   { return "local.marketRemoved" }
func (PauseToggled) Tag() string    { return "local.pauseToggled" }
func (NoticeDismissed) Tag() string { return "local.noticeDismissed" }
