package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"market-sync/src/models"
	"market-sync/src/protocol"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// addForm is the add-market form as typed on the command line.
type addForm struct {
	Asset          string  `validate:"required,alphanum,max=20"`
	TimeFrame      string  `validate:"required"`
	Lev            uint32  `validate:"required,min=1,max=200"`
	Risk           string  `validate:"required,oneof=Low Normal High"`
	Style          string  `validate:"required,oneof=Scalp Swing"`
	Stance         string  `validate:"required,oneof=Bull Bear Neutral"`
	FollowTrend    bool    ``
	TradeTime      uint64  ``
	Alloc          float64 `validate:"gte=0,lte=1"`
	Amount         float64 `validate:"gte=0"`
	Indicators     string  ``
	IndicatorsJSON string  `validate:"omitempty,json"`
}

// -----------------------------------------------------------------------------

// build validates the form and turns it into the addMarket command.
func (f addForm) build() (protocol.AddMarket, error) {
	if err := validate.Struct(f); err != nil {
		return protocol.AddMarket{}, formError(err)
	}
	if (f.Alloc > 0) == (f.Amount > 0) {
		return protocol.AddMarket{}, fmt.Errorf("invalid form: set exactly one of alloc and amount")
	}

	tf, err := models.ParseTimeFrameSymbol(f.TimeFrame)
	if err != nil {
		return protocol.AddMarket{}, err
	}

	alloc := protocol.MarginAllocation{Mode: protocol.MarginAlloc, Value: f.Alloc}
	if f.Amount > 0 {
		alloc = protocol.MarginAllocation{Mode: protocol.MarginAmount, Value: f.Amount}
	}

	ids, err := parseIndicators(f.Indicators)
	if err != nil {
		return protocol.AddMarket{}, err
	}
	if f.IndicatorsJSON != "" {
		var extra []models.IndicatorID
		if err := json.Unmarshal([]byte(f.IndicatorsJSON), &extra); err != nil {
			return protocol.AddMarket{}, fmt.Errorf("indicators-json: %w", err)
		}
		ids = append(ids, extra...)
	}

	return protocol.AddMarket{Info: protocol.AddMarketInfo{
		Asset:       protocol.NormalizeAsset(f.Asset),
		MarginAlloc: alloc,
		TradeParams: models.MTradeParams{
			TimeFrame: tf,
			Lev:       f.Lev,
			Strategy: models.MStrategy{Custom: models.MCustomStrategy{
				Risk:        models.Risk(f.Risk),
				Style:       models.Style(f.Style),
				Stance:      models.Stance(f.Stance),
				FollowTrend: f.FollowTrend,
			}},
			TradeTime: f.TradeTime,
		},
		Config: ids,
	}}, nil
}

func formError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid form: %s", strings.Join(msgs, ", "))
}

// -----------------------------------------------------------------------------

// parseIndicators reads the shorthand "rsi:14@1h,ema:20@15m". Only the
// single-period kinds have a shorthand.
func parseIndicators(list string) ([]models.IndicatorID, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var ids []models.IndicatorID
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		kindPart, symbol, ok := strings.Cut(item, "@")
		if !ok {
			return nil, fmt.Errorf("indicator %q: missing @timeframe", item)
		}
		name, periodsRaw, ok := strings.Cut(kindPart, ":")
		if !ok {
			return nil, fmt.Errorf("indicator %q: missing :periods", item)
		}
		periods, err := strconv.ParseUint(periodsRaw, 10, 32)
		if err != nil || periods == 0 {
			return nil, fmt.Errorf("indicator %q: invalid periods", item)
		}
		tf, err := models.ParseTimeFrameSymbol(symbol)
		if err != nil {
			return nil, fmt.Errorf("indicator %q: %w", item, err)
		}

		var kind models.IndicatorKind
		switch strings.ToLower(name) {
		case "rsi":
			kind = models.Rsi{Periods: uint32(periods)}
		case "atr":
			kind = models.Atr{Periods: uint32(periods)}
		case "ema":
			kind = models.Ema{Periods: uint32(periods)}
		case "sma":
			kind = models.Sma{Periods: uint32(periods)}
		default:
			return nil, fmt.Errorf("indicator %q: no shorthand for %s, use --indicators-json", item, name)
		}
		ids = append(ids, models.IndicatorID{Kind: kind, TimeFrame: tf})
	}
	return ids, nil
}

// -----------------------------------------------------------------------------

// allocPreview is the margin an alloc fraction takes from total.
func allocPreview(fraction, total float64) decimal.Decimal {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromFloat(total)).Round(2)
}
