package model

import "time"

// Candle is one second of price data for a symbol.
type Candle struct {
	Moment time.Time `json:"moment"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SymbolDay holds every candle recorded for a symbol on one market day.
type SymbolDay struct {
	Symbol  string    `json:"symbol"`
	Day     time.Time `json:"day"`
	Candles []Candle  `json:"candles"`
}

// DailyCandle aggregates a full day of trading into a single candle.
type DailyCandle struct {
	Symbol string    `json:"symbol"`
	Day    time.Time `json:"day"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Aggregate collapses the day's candles into a DailyCandle.
func (d SymbolDay) Aggregate() DailyCandle {
	agg := DailyCandle{Symbol: d.Symbol, Day: d.Day}
	for i, c := range d.Candles {
		if i == 0 {
			agg.Open = c.Open
			agg.High = c.High
			agg.Low = c.Low
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume += c.Volume
	}
	return agg
}
