package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimeFrame is a canonical candle/aggregation duration.
type TimeFrame uint8

const (
	timeFrameInvalid TimeFrame = iota
	TimeFrameMin1
	TimeFrameMin3
	TimeFrameMin5
	TimeFrameMin15
	TimeFrameMin30
	TimeFrameHour1
	TimeFrameHour2
	TimeFrameHour4
	TimeFrameHour12
	TimeFrameDay1
	TimeFrameDay3
	TimeFrameWeek
	TimeFrameMonth
)

// ErrUnknownTimeFrame is returned for symbols or names outside the table.
var ErrUnknownTimeFrame = errors.New("unknown time frame")

// -----------------------------------------------------------------------------
// Static table
// -----------------------------------------------------------------------------

type timeFrameEntry struct {
	tf        TimeFrame
	canonical string
	symbol    string
	duration  time.Duration
}

var timeFrameTable = [...]timeFrameEntry{
	{TimeFrameMin1, "min1", "1m", time.Minute},
	{TimeFrameMin3, "min3", "3m", 3 * time.Minute},
	{TimeFrameMin5, "min5", "5m", 5 * time.Minute},
	{TimeFrameMin15, "min15", "15m", 15 * time.Minute},
	{TimeFrameMin30, "min30", "30m", 30 * time.Minute},
	{TimeFrameHour1, "hour1", "1h", time.Hour},
	{TimeFrameHour2, "hour2", "2h", 2 * time.Hour},
	{TimeFrameHour4, "hour4", "4h", 4 * time.Hour},
	{TimeFrameHour12, "hour12", "12h", 12 * time.Hour},
	{TimeFrameDay1, "day1", "1d", 24 * time.Hour},
	{TimeFrameDay3, "day3", "3d", 3 * 24 * time.Hour},
	{TimeFrameWeek, "week", "w", 7 * 24 * time.Hour},
	{TimeFrameMonth, "month", "m", 30 * 24 * time.Hour},
}

var (
	timeFrameBySymbol    map[string]TimeFrame
	timeFrameByCanonical map[string]TimeFrame
)

func init() {
	timeFrameBySymbol = make(map[string]TimeFrame, len(timeFrameTable))
	timeFrameByCanonical = make(map[string]TimeFrame, len(timeFrameTable))
	for i, e := range timeFrameTable {
		if int(e.tf) != i+1 {
			panic(fmt.Sprintf("time frame table out of order at %d", i))
		}
		if _, dup := timeFrameBySymbol[e.symbol]; dup {
			panic(fmt.Sprintf("duplicate time frame symbol %q", e.symbol))
		}
		timeFrameBySymbol[e.symbol] = e.tf
		timeFrameByCanonical[e.canonical] = e.tf
	}
}

// -----------------------------------------------------------------------------
// Codec
// -----------------------------------------------------------------------------

// ParseTimeFrameSymbol maps a short wire symbol such as "1h" to its canonical value.
func ParseTimeFrameSymbol(symbol string) (TimeFrame, error) {
	tf, ok := timeFrameBySymbol[symbol]
	if !ok {
		return timeFrameInvalid, fmt.Errorf("%w: symbol %q", ErrUnknownTimeFrame, symbol)
	}
	return tf, nil
}

// ParseTimeFrame maps a canonical name such as "hour1" to its value.
func ParseTimeFrame(name string) (TimeFrame, error) {
	tf, ok := timeFrameByCanonical[name]
	if !ok {
		return timeFrameInvalid, fmt.Errorf("%w: %q", ErrUnknownTimeFrame, name)
	}
	return tf, nil
}

// AllTimeFrames returns the 13 canonical values in ascending duration.
func AllTimeFrames() []TimeFrame {
	out := make([]TimeFrame, 0, len(timeFrameTable))
	for _, e := range timeFrameTable {
		out = append(out, e.tf)
	}
	return out
}

func (tf TimeFrame) entry() (timeFrameEntry, bool) {
	if tf == timeFrameInvalid || int(tf) > len(timeFrameTable) {
		return timeFrameEntry{}, false
	}
	return timeFrameTable[tf-1], true
}

// Valid reports whether tf is one of the registered values.
func (tf TimeFrame) Valid() bool {
	_, ok := tf.entry()
	return ok
}

// Symbol returns the short wire form. Empty for an unregistered value.
func (tf TimeFrame) Symbol() string {
	e, _ := tf.entry()
	return e.symbol
}

// Duration approximates a month as 30 days.
func (tf TimeFrame) Duration() time.Duration {
	e, _ := tf.entry()
	return e.duration
}

func (tf TimeFrame) String() string {
	e, ok := tf.entry()
	if !ok {
		return fmt.Sprintf("TimeFrame(%d)", uint8(tf))
	}
	return e.canonical
}

func (tf TimeFrame) MarshalJSON() ([]byte, error) {
	e, ok := tf.entry()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTimeFrame, uint8(tf))
	}
	return json.Marshal(e.canonical)
}

func (tf *TimeFrame) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("time frame must be a string: %w", err)
	}
	parsed, err := ParseTimeFrame(name)
	if err != nil {
		return err
	}
	*tf = parsed
	return nil
}
