package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"market-sync/src/models"
)

// ErrUnrecognizedMessage wraps every decode failure.
var ErrUnrecognizedMessage = errors.New("unrecognized message")

func unrecognized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnrecognizedMessage, fmt.Sprintf(format, args...))
}

// Decode turns one inbound frame into a typed Message. Exactly one known tag
// key must be present; unknown keys are ignored.
func Decode(raw []byte) (Message, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, unrecognized("frame is not an object: %v", err)
	}

	var found []string
	for _, tag := range InboundTags {
		if _, ok := envelope[tag]; ok {
			found = append(found, tag)
		}
	}
	switch len(found) {
	case 0:
		return nil, unrecognized("no known tag")
	case 1:
	default:
		return nil, unrecognized("multiple tags: %s", strings.Join(found, ","))
	}

	tag := found[0]
	msg, err := decodePayload(tag, envelope[tag])
	if err != nil {
		return nil, unrecognized("%s: %v", tag, err)
	}
	return msg, nil
}

func decodePayload(tag string, payload json.RawMessage) (Message, error) {
	switch tag {
	case TagMarketConfirmed:
		m, err := decodeMarket(payload)
		if err != nil {
			return nil, err
		}
		return MarketConfirmed{Market: m}, nil

	case TagPriceUpdated:
		asset, price, err := decodeAssetNumber(payload)
		if err != nil {
			return nil, err
		}
		if price < 0 {
			return nil, fmt.Errorf("negative price %v", price)
		}
		return PriceUpdated{Asset: asset, Price: price}, nil

	case TagTradeAppended:
		var w struct {
			Asset string               `json:"asset"`
			Info  *models.MTradeRecord `json:"info"`
		}
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if w.Asset == "" || w.Info == nil {
			return nil, fmt.Errorf("asset and info are required")
		}
		return TradeAppended{Asset: w.Asset, Trade: *w.Info}, nil

	case TagTotalMarginUpdated:
		amount, err := decodeNumber(payload)
		if err != nil {
			return nil, err
		}
		return TotalMarginUpdated{Amount: amount}, nil

	case TagMarketMarginUpdated:
		asset, amount, err := decodeAssetNumber(payload)
		if err != nil {
			return nil, err
		}
		if amount < 0 {
			return nil, fmt.Errorf("negative margin %v", amount)
		}
		return MarketMarginUpdated{Asset: asset, Amount: amount}, nil

	case TagIndicatorsUpdated:
		var w struct {
			Asset string                      `json:"asset"`
			Data  *[]models.MIndicatorReading `json:"data"`
		}
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, err
		}
		if w.Asset == "" || w.Data == nil {
			return nil, fmt.Errorf("asset and data are required")
		}
		if err := checkReadings(*w.Data); err != nil {
			return nil, err
		}
		return IndicatorsUpdated{Asset: w.Asset, Readings: *w.Data}, nil

	case TagMarketFieldEdited:
		parts, err := decodePair(payload)
		if err != nil {
			return nil, err
		}
		asset, err := decodeAsset(parts[0])
		if err != nil {
			return nil, err
		}
		edit, err := decodeFieldEdit(parts[1])
		if err != nil {
			return nil, err
		}
		return MarketFieldEdited{Asset: asset, Edit: edit}, nil

	case TagErrorNotice:
		var text string
		if err := json.Unmarshal(payload, &text); err != nil || isNull(payload) {
			return nil, fmt.Errorf("notice must be a string")
		}
		return ErrorNotice{Message: text}, nil

	case TagSessionLoaded:
		if isNull(payload) {
			return nil, fmt.Errorf("session must be an array")
		}
		var raws []json.RawMessage
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, err
		}
		markets := make([]models.MMarket, 0, len(raws))
		for i, r := range raws {
			m, err := decodeMarket(r)
			if err != nil {
				return nil, fmt.Errorf("market %d: %w", i, err)
			}
			markets = append(markets, m)
		}
		return SessionLoaded{Markets: markets}, nil
	}
	return nil, fmt.Errorf("no decoder for %s", tag)
}

// -----------------------------------------------------------------------------
// Payload helpers
// -----------------------------------------------------------------------------

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeMarket(raw json.RawMessage) (models.MMarket, error) {
	var m models.MMarket
	if isNull(raw) || len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '{' {
		return m, fmt.Errorf("market must be an object")
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, err
	}
	if m.Asset == "" {
		return m, fmt.Errorf("market without asset")
	}
	if !m.Params.TimeFrame.Valid() {
		return m, fmt.Errorf("market %s without params.timeFrame", m.Asset)
	}
	switch {
	case m.Price < 0:
		return m, fmt.Errorf("market %s: negative price", m.Asset)
	case m.Margin < 0:
		return m, fmt.Errorf("market %s: negative margin", m.Asset)
	case m.Lev < 1:
		return m, fmt.Errorf("market %s: leverage below 1", m.Asset)
	}
	if err := checkReadings(m.Indicators); err != nil {
		return m, fmt.Errorf("market %s: %w", m.Asset, err)
	}
	return m, nil
}

// checkReadings rejects a collection holding two readings of one indicator.
func checkReadings(readings []models.MIndicatorReading) error {
	seen := make(map[models.IndicatorID]struct{}, len(readings))
	for _, r := range readings {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate indicator %s on %s", r.ID.Kind.Tag().Key(), r.ID.TimeFrame)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if isNull(raw) {
		return 0, fmt.Errorf("expected a number")
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("expected a number: %w", err)
	}
	return f, nil
}

func decodeAsset(raw json.RawMessage) (string, error) {
	var asset string
	if err := json.Unmarshal(raw, &asset); err != nil || asset == "" {
		return "", fmt.Errorf("expected an asset string")
	}
	return asset, nil
}

func decodePair(raw json.RawMessage) ([]json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("expected a 2-element array: %w", err)
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected a 2-element array, got %d", len(parts))
	}
	return parts, nil
}

// decodeAssetNumber reads an [asset, number] pair.
func decodeAssetNumber(raw json.RawMessage) (string, float64, error) {
	parts, err := decodePair(raw)
	if err != nil {
		return "", 0, err
	}
	asset, err := decodeAsset(parts[0])
	if err != nil {
		return "", 0, err
	}
	n, err := decodeNumber(parts[1])
	if err != nil {
		return "", 0, err
	}
	return asset, n, nil
}

func decodeFieldEdit(raw json.RawMessage) (FieldEdit, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) != 1 {
		return nil, fmt.Errorf("edit must be a single-key object")
	}
	for kind, payload := range obj {
		switch kind {
		case "lev":
			var lev uint32
			if isNull(payload) {
				return nil, fmt.Errorf("lev must be a number")
			}
			if err := json.Unmarshal(payload, &lev); err != nil {
				return nil, fmt.Errorf("lev: %w", err)
			}
			if lev < 1 {
				return nil, fmt.Errorf("lev must be at least 1")
			}
			return LeverageEdit{Lev: lev}, nil
		case "strategy":
			var s models.MStrategy
			if isNull(payload) {
				return nil, fmt.Errorf("strategy must be an object")
			}
			if err := json.Unmarshal(payload, &s); err != nil {
				return nil, fmt.Errorf("strategy: %w", err)
			}
			return StrategyEdit{Strategy: s}, nil
		case "margin":
			m, err := decodeNumber(payload)
			if err != nil {
				return nil, fmt.Errorf("margin: %w", err)
			}
			if m < 0 {
				return nil, fmt.Errorf("negative margin %v", m)
			}
			return MarginEdit{Margin: m}, nil
		default:
			return nil, fmt.Errorf("unknown edit kind %q", kind)
		}
	}
	return nil, fmt.Errorf("empty edit")
}
