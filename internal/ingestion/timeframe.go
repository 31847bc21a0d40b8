package ingestion

import (
	"fmt"
	"time"
)

// timeframeMinutes mirrors the engine's supported candle grids.
var timeframeMinutes = map[string]int{
	"M1":  1,
	"M5":  5,
	"M15": 15,
	"M30": 30,
	"H1":  60,
	"H4":  240,
	"D1":  1440,
}

// Duration returns the bar length for a timeframe code.
func Duration(timeframe string) (time.Duration, error) {
	minutes, ok := timeframeMinutes[timeframe]
	if !ok {
		return 0, fmt.Errorf("invalid timeframe: %s", timeframe)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// AlignedOpenTime truncates t to the timeframe's epoch-anchored grid.
func AlignedOpenTime(t time.Time, timeframe string) (time.Time, error) {
	step, err := Duration(timeframe)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	rem := t.Sub(time.Unix(0, 0).UTC()) % step
	return t.Add(-rem), nil
}
