package store

import (
	"time"

	"main/internal/model"
)

// Defaults for judging whether a day of candles is dense enough to trade on.
// A regular session spans 390 minutes; a handful may be missing, and a few
// prolonged gaps are tolerated.
const (
	_minMinutesWithData = 380
	_maxGap             = 160 * time.Second
	_gapGraces          = 5
)

// ValidDay reports whether the day's candles pass the default density and
// gap thresholds.
func ValidDay(sd *model.SymbolDay) bool {
	if sd == nil {
		return false
	}
	return ValidateCandles(sd.Candles, _minMinutesWithData, _maxGap, _gapGraces)
}

// ValidateCandles checks a day of candles for minimum density, maximum gap
// length, and positive prices. Data failing these checks triggers a
// re-collection attempt instead of being traded on.
func ValidateCandles(candles []model.Candle, minMinutes int, maxGap time.Duration, gapGraces int) bool {
	if len(candles) == 0 {
		return false
	}

	minutes := make(map[int64]struct{}, minMinutes)
	graces := 0
	last := candles[0].Moment
	for _, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return false
		}
		minutes[c.Moment.Unix()/60] = struct{}{}
		if c.Moment.Sub(last) > maxGap {
			graces++
			if graces > gapGraces {
				return false
			}
		}
		last = c.Moment
	}
	return len(minutes) >= minMinutes
}
