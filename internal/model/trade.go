package model

import "time"

// RoundTripTrade pairs a filled buy with the filled sell that closed it.
type RoundTripTrade struct {
	Symbol    string    `json:"symbol"`
	BuyTime   time.Time `json:"buy_time"`
	SellTime  time.Time `json:"sell_time"`
	BuyPrice  float64   `json:"buy_price"`
	SellPrice float64   `json:"sell_price"`
	Qty       int64     `json:"qty"`
}

// Profit returns the fractional gain of the round trip.
func (t RoundTripTrade) Profit() float64 {
	if t.BuyPrice == 0 {
		return 0
	}
	return (t.SellPrice - t.BuyPrice) / t.BuyPrice
}
