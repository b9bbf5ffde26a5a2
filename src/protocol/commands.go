package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"market-sync/src/models"
)

// ErrUnknownCommand is returned by DecodeCommand for unknown or malformed commands.
var ErrUnknownCommand = errors.New("unknown command")

// Command is an outbound request to the engine, sent as a single-key object.
type Command interface {
	CommandTag() string
}

const (
	CmdAddMarket    = "addMarket"
	CmdRemoveMarket = "removeMarket"
	CmdToggleMarket = "toggleMarket"
	CmdCloseAll     = "closeAll"
	CmdPauseAll     = "pauseAll"
	CmdGetSession   = "getSession"
)

// -----------------------------------------------------------------------------
// Margin allocation
// -----------------------------------------------------------------------------

type MarginMode string

const (
	// MarginAlloc is a fraction (0..1) of the available total margin.
	MarginAlloc MarginMode = "alloc"
	// MarginAmount is a fixed amount.
	MarginAmount MarginMode = "amount"
)

type MarginAllocation struct {
	Mode  MarginMode
	Value float64
}

func (a MarginAllocation) MarshalJSON() ([]byte, error) {
	switch a.Mode {
	case MarginAlloc, MarginAmount:
		return json.Marshal(map[string]float64{string(a.Mode): a.Value})
	}
	return nil, fmt.Errorf("unknown margin mode %q", a.Mode)
}

func (a *MarginAllocation) UnmarshalJSON(data []byte) error {
	var obj map[string]float64
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("margin allocation: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("margin allocation must have exactly one key")
	}
	for k, v := range obj {
		mode := MarginMode(k)
		if mode != MarginAlloc && mode != MarginAmount {
			return fmt.Errorf("unknown margin mode %q", k)
		}
		a.Mode, a.Value = mode, v
	}
	return nil
}

// -----------------------------------------------------------------------------
// Commands
// -----------------------------------------------------------------------------

type AddMarketInfo struct {
	Asset       string               `json:"asset"`
	MarginAlloc MarginAllocation     `json:"marginAlloc"`
	TradeParams models.MTradeParams  `json:"tradeParams"`
	Config      []models.IndicatorID `json:"config,omitempty"`
}

type AddMarket struct{ Info AddMarketInfo }
type RemoveMarket struct{ Asset string }
type ToggleMarket struct{ Asset string }
type CloseAll struct{}
type PauseAll struct{}

// GetSession asks the engine to answer with loadSession.
type GetSession struct{}

func (AddMarket) CommandTag() string    { return CmdAddMarket }
func (RemoveMarket) CommandTag() string { return CmdRemoveMarket }
func (ToggleMarket) CommandTag() string { return CmdToggleMarket }
func (CloseAll) CommandTag() string     { return CmdCloseAll }
func (PauseAll) CommandTag() string     { return CmdPauseAll }
func (GetSession) CommandTag() string   { return CmdGetSession }

// NormalizeAsset is the form every asset takes on the wire.
func NormalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// EncodeCommand serializes a command as {"tag": payload}. Assets are uppercased.
func EncodeCommand(c Command) ([]byte, error) {
	var payload any
	switch cmd := c.(type) {
	case AddMarket:
		info := cmd.Info
		info.Asset = NormalizeAsset(info.Asset)
		payload = info
	case RemoveMarket:
		payload = NormalizeAsset(cmd.Asset)
	case ToggleMarket:
		payload = NormalizeAsset(cmd.Asset)
	case CloseAll, PauseAll, GetSession:
		payload = nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, c)
	}
	return json.Marshal(map[string]any{c.CommandTag(): payload})
}

// DecodeCommand parses the single-key form produced by EncodeCommand.
func DecodeCommand(raw []byte) (Command, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCommand, err)
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("%w: expected one key, got %d", ErrUnknownCommand, len(obj))
	}

	for tag, payload := range obj {
		switch tag {
		case CmdAddMarket:
			var info AddMarketInfo
			if err := json.Unmarshal(payload, &info); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCommand, tag, err)
			}
			if NormalizeAsset(info.Asset) == "" {
				return nil, fmt.Errorf("%w: %s without asset", ErrUnknownCommand, tag)
			}
			return AddMarket{Info: info}, nil
		case CmdRemoveMarket, CmdToggleMarket:
			var asset string
			if err := json.Unmarshal(payload, &asset); err != nil || NormalizeAsset(asset) == "" {
				return nil, fmt.Errorf("%w: %s needs an asset string", ErrUnknownCommand, tag)
			}
			if tag == CmdRemoveMarket {
				return RemoveMarket{Asset: NormalizeAsset(asset)}, nil
			}
			return ToggleMarket{Asset: NormalizeAsset(asset)}, nil
		case CmdCloseAll, CmdPauseAll, CmdGetSession:
			if !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
				return nil, fmt.Errorf("%w: %s takes no payload", ErrUnknownCommand, tag)
			}
			switch tag {
			case CmdCloseAll:
				return CloseAll{}, nil
			case CmdPauseAll:
				return PauseAll{}, nil
			}
			return GetSession{}, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, tag)
		}
	}
	return nil, ErrUnknownCommand
}
