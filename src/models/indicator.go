package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// IndicatorTag names one of the eight indicator families shared by kinds and values.
type IndicatorTag uint8

const (
	IndicatorRsi IndicatorTag = iota + 1
	IndicatorSmaOnRsi
	IndicatorStochRsi
	IndicatorAdx
	IndicatorAtr
	IndicatorEma
	IndicatorEmaCross
	IndicatorSma
)

var (
	ErrUnknownIndicator  = errors.New("unknown indicator")
	ErrIndicatorMismatch = errors.New("indicator value does not match its kind")
)

type indicatorTagEntry struct {
	kindKey  string
	valueKey string
	label    string
}

var indicatorTagTable = map[IndicatorTag]indicatorTagEntry{
	IndicatorRsi:      {"rsi", "rsiValue", "RSI"},
	IndicatorSmaOnRsi: {"smaOnRsi", "smaRsiValue", "SMA on RSI"},
	IndicatorStochRsi: {"stochRsi", "stochRsiValue", "Stoch RSI"},
	IndicatorAdx:      {"adx", "adxValue", "ADX"},
	IndicatorAtr:      {"atr", "atrValue", "ATR"},
	IndicatorEma:      {"ema", "emaValue", "EMA"},
	IndicatorEmaCross: {"emaCross", "emaCrossValue", "EMA Cross"},
	IndicatorSma:      {"sma", "smaValue", "SMA"},
}

// AllIndicatorTags lists the tags in wire order.
func AllIndicatorTags() []IndicatorTag {
	return []IndicatorTag{
		IndicatorRsi, IndicatorSmaOnRsi, IndicatorStochRsi, IndicatorAdx,
		IndicatorAtr, IndicatorEma, IndicatorEmaCross, IndicatorSma,
	}
}

// Label is the display name used by render clients.
func (t IndicatorTag) Label() string { return indicatorTagTable[t].label }

// Key is the wire key of the kind variant.
func (t IndicatorTag) Key() string { return indicatorTagTable[t].kindKey }

// -----------------------------------------------------------------------------
// Kinds
// -----------------------------------------------------------------------------

// IndicatorKind is the configuration of one indicator. Implementations are
// comparable value types so an IndicatorID can be used as a map key.
type IndicatorKind interface {
	Tag() IndicatorTag
	kindPayload() any
}

type Rsi struct{ Periods uint32 }
type SmaOnRsi struct{ Periods, SmoothingLength uint32 }

// StochRsi smoothing of zero means the engine default (null on the wire).
type StochRsi struct{ Periods, KSmoothing, DSmoothing uint32 }
type Adx struct{ Periods, DiLength uint32 }
type Atr struct{ Periods uint32 }
type Ema struct{ Periods uint32 }
type EmaCross struct{ Short, Long uint32 }
type Sma struct{ Periods uint32 }

func (Rsi) Tag() IndicatorTag      { return IndicatorRsi }
func (SmaOnRsi) Tag() IndicatorTag { return IndicatorSmaOnRsi }
func (StochRsi) Tag() IndicatorTag { return IndicatorStochRsi }
func (Adx) Tag() IndicatorTag      { return IndicatorAdx }
func (Atr) Tag() IndicatorTag      { return IndicatorAtr }
func (Ema) Tag() IndicatorTag      { return IndicatorEma }
func (EmaCross) Tag() IndicatorTag { return IndicatorEmaCross }
func (Sma) Tag() IndicatorTag      { return IndicatorSma }

type smaOnRsiWire struct {
	Periods         uint32 `json:"periods"`
	SmoothingLength uint32 `json:"smoothing_length"`
}

type stochRsiWire struct {
	Periods    uint32  `json:"periods"`
	KSmoothing *uint32 `json:"k_smoothing"`
	DSmoothing *uint32 `json:"d_smoothing"`
}

type adxWire struct {
	Periods  uint32 `json:"periods"`
	DiLength uint32 `json:"di_length"`
}

type emaCrossWire struct {
	Short uint32 `json:"short"`
	Long  uint32 `json:"long"`
}

func optionalPeriod(v uint32) *uint32 {
	if v == 0 {
		return nil
	}
	return &v
}

func (k Rsi) kindPayload() any { return k.Periods }
func (k SmaOnRsi) kindPayload() any {
	return smaOnRsiWire{Periods: k.Periods, SmoothingLength: k.SmoothingLength}
}
func (k StochRsi) kindPayload() any {
	return stochRsiWire{Periods: k.Periods, KSmoothing: optionalPeriod(k.KSmoothing), DSmoothing: optionalPeriod(k.DSmoothing)}
}
func (k Adx) kindPayload() any      { return adxWire{Periods: k.Periods, DiLength: k.DiLength} }
func (k Atr) kindPayload() any      { return k.Periods }
func (k Ema) kindPayload() any      { return k.Periods }
func (k EmaCross) kindPayload() any { return emaCrossWire{Short: k.Short, Long: k.Long} }
func (k Sma) kindPayload() any      { return k.Periods }

// MarshalIndicatorKind encodes a kind as a single-key object, e.g. {"rsi":14}.
func MarshalIndicatorKind(k IndicatorKind) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: nil kind", ErrUnknownIndicator)
	}
	return json.Marshal(map[string]any{k.Tag().Key(): k.kindPayload()})
}

// UnmarshalIndicatorKind decodes a single-key kind object.
func UnmarshalIndicatorKind(data []byte) (IndicatorKind, error) {
	key, payload, err := singleKey(data)
	if err != nil {
		return nil, fmt.Errorf("indicator kind: %w", err)
	}

	switch key {
	case "rsi", "atr", "ema", "sma":
		var periods uint32
		if err := json.Unmarshal(payload, &periods); err != nil {
			return nil, fmt.Errorf("indicator kind %s: %w", key, err)
		}
		switch key {
		case "rsi":
			return Rsi{Periods: periods}, nil
		case "atr":
			return Atr{Periods: periods}, nil
		case "ema":
			return Ema{Periods: periods}, nil
		default:
			return Sma{Periods: periods}, nil
		}
	case "smaOnRsi":
		var w smaOnRsiWire
		if err := strictObject(payload, &w); err != nil {
			return nil, fmt.Errorf("indicator kind %s: %w", key, err)
		}
		return SmaOnRsi{Periods: w.Periods, SmoothingLength: w.SmoothingLength}, nil
	case "stochRsi":
		var w stochRsiWire
		if err := strictObject(payload, &w); err != nil {
			return nil, fmt.Errorf("indicator kind %s: %w", key, err)
		}
		k := StochRsi{Periods: w.Periods}
		if w.KSmoothing != nil {
			k.KSmoothing = *w.KSmoothing
		}
		if w.DSmoothing != nil {
			k.DSmoothing = *w.DSmoothing
		}
		return k, nil
	case "adx":
		var w adxWire
		if err := strictObject(payload, &w); err != nil {
			return nil, fmt.Errorf("indicator kind %s: %w", key, err)
		}
		return Adx{Periods: w.Periods, DiLength: w.DiLength}, nil
	case "emaCross":
		var w emaCrossWire
		if err := strictObject(payload, &w); err != nil {
			return nil, fmt.Errorf("indicator kind %s: %w", key, err)
		}
		return EmaCross{Short: w.Short, Long: w.Long}, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnknownIndicator, key)
}

// -----------------------------------------------------------------------------
// Values
// -----------------------------------------------------------------------------

// IndicatorValue is one computed readout.
type IndicatorValue interface {
	Tag() IndicatorTag
	Label() string
	valuePayload() any
}

type RsiValue float64
type SmaRsiValue float64
type AdxValue float64
type AtrValue float64
type EmaValue float64
type SmaValue float64

type StochRsiValue struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// EmaCrossValue Trend is true while the short average is above the long one.
type EmaCrossValue struct {
	Short float64 `json:"short"`
	Long  float64 `json:"long"`
	Trend bool    `json:"trend"`
}

func (RsiValue) Tag() IndicatorTag      { return IndicatorRsi }
func (SmaRsiValue) Tag() IndicatorTag   { return IndicatorSmaOnRsi }
func (StochRsiValue) Tag() IndicatorTag { return IndicatorStochRsi }
func (AdxValue) Tag() IndicatorTag      { return IndicatorAdx }
func (AtrValue) Tag() IndicatorTag      { return IndicatorAtr }
func (EmaValue) Tag() IndicatorTag      { return IndicatorEma }
func (EmaCrossValue) Tag() IndicatorTag { return IndicatorEmaCross }
func (SmaValue) Tag() IndicatorTag      { return IndicatorSma }

func (v RsiValue) Label() string    { return fmt.Sprintf("RSI: %.2f", float64(v)) }
func (v SmaRsiValue) Label() string { return fmt.Sprintf("SMA on RSI: %.2f", float64(v)) }
func (v AdxValue) Label() string    { return fmt.Sprintf("ADX: %.2f", float64(v)) }
func (v AtrValue) Label() string    { return fmt.Sprintf("ATR: %.2f", float64(v)) }
func (v EmaValue) Label() string    { return fmt.Sprintf("EMA: %.2f", float64(v)) }
func (v SmaValue) Label() string    { return fmt.Sprintf("SMA: %.2f", float64(v)) }
func (v StochRsiValue) Label() string {
	return fmt.Sprintf("StochRSI: K=%.2f, D=%.2f", v.K, v.D)
}
func (v EmaCrossValue) Label() string {
	arrow := "↓"
	if v.Trend {
		arrow = "↑"
	}
	return fmt.Sprintf("EMA Cross: short=%.2f, long=%.2f, trend=%s", v.Short, v.Long, arrow)
}

func (v RsiValue) valuePayload() any      { return float64(v) }
func (v SmaRsiValue) valuePayload() any   { return float64(v) }
func (v AdxValue) valuePayload() any      { return float64(v) }
func (v AtrValue) valuePayload() any      { return float64(v) }
func (v EmaValue) valuePayload() any      { return float64(v) }
func (v SmaValue) valuePayload() any      { return float64(v) }
func (v StochRsiValue) valuePayload() any { return v }
func (v EmaCrossValue) valuePayload() any { return v }

// FormatValue renders a readout, or "No value" before the first computation.
func FormatValue(v IndicatorValue) string {
	if v == nil {
		return "No value"
	}
	return v.Label()
}

func MarshalIndicatorValue(v IndicatorValue) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]any{indicatorTagTable[v.Tag()].valueKey: v.valuePayload()})
}

func UnmarshalIndicatorValue(data []byte) (IndicatorValue, error) {
	key, payload, err := singleKey(data)
	if err != nil {
		return nil, fmt.Errorf("indicator value: %w", err)
	}

	switch key {
	case "stochRsiValue":
		var v StochRsiValue
		if err := strictObject(payload, &v); err != nil {
			return nil, fmt.Errorf("indicator value %s: %w", key, err)
		}
		return v, nil
	case "emaCrossValue":
		var v EmaCrossValue
		if err := strictObject(payload, &v); err != nil {
			return nil, fmt.Errorf("indicator value %s: %w", key, err)
		}
		return v, nil
	}

	var f float64
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("indicator value %s: %w", key, err)
	}
	switch key {
	case "rsiValue":
		return RsiValue(f), nil
	case "smaRsiValue":
		return SmaRsiValue(f), nil
	case "adxValue":
		return AdxValue(f), nil
	case "atrValue":
		return AtrValue(f), nil
	case "emaValue":
		return EmaValue(f), nil
	case "smaValue":
		return SmaValue(f), nil
	}
	return nil, fmt.Errorf("%w: value %q", ErrUnknownIndicator, key)
}

// -----------------------------------------------------------------------------
// Identity and readings
// -----------------------------------------------------------------------------

// IndicatorID names one indicator series on one market. Wire form: [kind, timeframe].
type IndicatorID struct {
	Kind      IndicatorKind
	TimeFrame TimeFrame
}

func (id IndicatorID) MarshalJSON() ([]byte, error) {
	kind, err := MarshalIndicatorKind(id.Kind)
	if err != nil {
		return nil, err
	}
	tf, err := id.TimeFrame.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal([]json.RawMessage{kind, tf})
}

func (id *IndicatorID) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("indicator id must be an array: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("indicator id must have 2 elements, got %d", len(parts))
	}
	kind, err := UnmarshalIndicatorKind(parts[0])
	if err != nil {
		return err
	}
	var tf TimeFrame
	if err := tf.UnmarshalJSON(parts[1]); err != nil {
		return err
	}
	id.Kind, id.TimeFrame = kind, tf
	return nil
}

// MIndicatorReading is one indicator series and its latest value, if computed yet.
type MIndicatorReading struct {
	ID    IndicatorID
	Value IndicatorValue
}

type indicatorReadingWire struct {
	ID    IndicatorID     `json:"id"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (r MIndicatorReading) MarshalJSON() ([]byte, error) {
	w := indicatorReadingWire{ID: r.ID}
	if r.Value != nil {
		v, err := MarshalIndicatorValue(r.Value)
		if err != nil {
			return nil, err
		}
		w.Value = v
	}
	return json.Marshal(w)
}

func (r *MIndicatorReading) UnmarshalJSON(data []byte) error {
	var w indicatorReadingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID.Kind == nil {
		return fmt.Errorf("indicator reading without id")
	}
	r.ID = w.ID
	r.Value = nil
	if len(w.Value) == 0 || bytes.Equal(bytes.TrimSpace(w.Value), []byte("null")) {
		return nil
	}
	v, err := UnmarshalIndicatorValue(w.Value)
	if err != nil {
		return err
	}
	if v.Tag() != w.ID.Kind.Tag() {
		return fmt.Errorf("%w: %s carries %s", ErrIndicatorMismatch, w.ID.Kind.Tag().Key(), indicatorTagTable[v.Tag()].valueKey)
	}
	r.Value = v
	return nil
}

// -----------------------------------------------------------------------------
// JSON helpers
// -----------------------------------------------------------------------------

// singleKey splits a {"tag": payload} object.
func singleKey(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("expected a single-key object: %w", err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected a single-key object, got %d keys", len(obj))
	}
	for k, v := range obj {
		return k, v, nil
	}
	return "", nil, nil
}

func strictObject(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
