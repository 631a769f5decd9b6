package stream

import (
	"time"

	"github.com/google/uuid"

	"main/internal/model"
	"main/internal/model/enum"
)

// Update is a single timestamped event from the broker or data stream, meant
// to trigger strategy logic. Updates are immutable once constructed and equal
// iff their ids match.
type Update struct {
	ID     uuid.UUID
	Moment time.Time
	Type   enum.UpdateType
	Symbol string

	AcctInfo *model.AccountInfo
	Candle   *model.Candle
	Order    *model.Order
}

// NewAcctInfoUpdate wraps a balance snapshot in an update.
func NewAcctInfoUpdate(moment time.Time, info model.AccountInfo) Update {
	return Update{
		ID:       uuid.New(),
		Moment:   moment,
		Type:     enum.UpdateAcctInfo,
		AcctInfo: &info,
	}
}

// NewCandleUpdate wraps a fresh candle in an update.
func NewCandleUpdate(moment time.Time, symbol string, candle model.Candle) Update {
	return Update{
		ID:     uuid.New(),
		Moment: moment,
		Type:   enum.UpdateCandle,
		Symbol: symbol,
		Candle: &candle,
	}
}

// NewOrderUpdate wraps an order status change in an update.
func NewOrderUpdate(moment time.Time, order model.Order) Update {
	return Update{
		ID:     uuid.New(),
		Moment: moment,
		Type:   enum.UpdateOrder,
		Symbol: order.Symbol,
		Order:  &order,
	}
}

// NewStartedUpUpdate signals that live streaming (re)connected.
func NewStartedUpUpdate(moment time.Time) Update {
	return Update{
		ID:     uuid.New(),
		Moment: moment,
		Type:   enum.UpdateStartedUp,
	}
}
