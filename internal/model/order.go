package model

import (
	"time"

	"main/internal/model/enum"
)

// Order is the engine's view of a brokerage order. An order is created open,
// transitions to filled or canceled exactly once, and is immutable afterward.
type Order struct {
	ID     string           `json:"id"`
	Symbol string           `json:"symbol"`
	Type   enum.OrderType   `json:"type"`
	Status enum.OrderStatus `json:"status"`
	Price  float64          `json:"price"`
	Qty    int64            `json:"qty"`
	Moment time.Time        `json:"moment"`
}

// Position is the number of shares held in a symbol. Never more than one
// Position record per symbol exists in an account cache.
type Position struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// AccountInfo is a brokerage balance snapshot. Each update replaces the
// account's cached balance wholesale.
type AccountInfo struct {
	ID               string  `json:"id"`
	Cash             float64 `json:"cash"`
	WithdrawableCash float64 `json:"cash_withdrawable"`
}
