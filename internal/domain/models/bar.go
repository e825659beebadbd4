package models

import "time"

// Bar is one OHLCV observation for a fixed interval. An ordered slice of
// bars with strictly increasing timestamps is the universal input to the
// feature and forecast pipelines.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Consistent reports whether the bar satisfies basic OHLC sanity:
// high covers open/close/low, low is under open/close/high, volume is
// non-negative. Violations are logged by callers, never fatal.
func (b Bar) Consistent() bool {
	if b.Volume < 0 {
		return false
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return false
	}
	if b.Low > b.Open || b.Low > b.Close {
		return false
	}
	return true
}

// SortedByTime reports whether timestamps are strictly increasing.
func SortedByTime(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return false
		}
	}
	return true
}
