package account

import (
	"time"

	"github.com/google/uuid"

	"main/internal/env"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/stream"
)

// _fillTolerance is how far a candle's moment may sit from virtual now and
// still count as "the latest price" when simulating fills.
const _fillTolerance = 900 * time.Millisecond

// SimulatedAccount mimics a brokerage account against stored price data. It
// is time agnostic: the harness advances virtual time and feeds it one
// symbol-day at a time, and orders fill deterministically from candle data.
// One instance is required per simulated symbol.
type SimulatedAccount struct {
	book

	env   *env.ExecEnv
	feed  *stream.Feed
	queue *stream.Queue
}

func NewSimulatedAccount(e *env.ExecEnv, startBalance float64) *SimulatedAccount {
	a := &SimulatedAccount{
		book:  newBook(),
		env:   e,
		feed:  stream.NewFeed(stream.RetentionWindow),
		queue: stream.NewQueue(),
	}
	a.balance = startBalance
	a.withdrawable = startBalance
	return a
}

func (a *SimulatedAccount) PlaceLimitBuy(symbol string, limit float64, qty int64) bool {
	a.placeOrder(symbol, enum.OrderTypeLimitBuy, limit, qty)
	return true
}

func (a *SimulatedAccount) PlaceLimitSell(symbol string, limit float64, qty int64) bool {
	a.placeOrder(symbol, enum.OrderTypeLimitSell, limit, qty)
	return true
}

func (a *SimulatedAccount) PlaceStopOrder(symbol string, price float64, qty int64) bool {
	a.placeOrder(symbol, enum.OrderTypeStop, price, qty)
	return true
}

// placeOrder replaces any open order of the same type for the symbol, so the
// account never holds two competing orders on one side.
func (a *SimulatedAccount) placeOrder(symbol string, typ enum.OrderType, price float64, qty int64) {
	kept := a.openOrders[:0]
	for _, order := range a.openOrders {
		if order.Symbol != symbol || order.Type != typ {
			kept = append(kept, order)
		}
	}
	a.openOrders = append(kept, model.Order{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Type:   typ,
		Status: enum.OrderStatusOpen,
		Price:  price,
		Qty:    qty,
		Moment: a.env.Clock().Now(),
	})
}

func (a *SimulatedAccount) CancelOpenOrders(symbols []string) {
	kept := a.openOrders[:0]
	for _, order := range a.openOrders {
		if !containsSymbol(symbols, order.Symbol) {
			kept = append(kept, order)
		}
	}
	a.openOrders = kept
}

func (a *SimulatedAccount) LiquidatePositions(symbols []string) {
	kept := a.positions[:0]
	for _, pos := range a.positions {
		if !containsSymbol(symbols, pos.Symbol) {
			kept = append(kept, pos)
		}
	}
	a.positions = kept
}

// Advance simulates one check of the brokerage stream at the given virtual
// moment. If a candle sits within the fill tolerance of that moment, open
// orders are tested against it and a candle update is emitted; an order
// whose status changed emits an order update first.
//
// Fill rules, per order type:
//   - stop: fills when the candle's low trades through the stop price;
//   - limit buy: fills when the limit beats 0.85*open + 0.15*high and the
//     order is small next to the candle's volume;
//   - limit sell: fills when the limit undercuts 0.85*open + 0.15*low and
//     the order is small next to the candle's volume.
func (a *SimulatedAccount) Advance(virtualTime time.Time, day *model.SymbolDay) {
	var latest *model.Candle
	for i := range day.Candles {
		moment := day.Candles[i].Moment
		if !moment.Before(virtualTime.Add(-_fillTolerance)) && moment.Before(virtualTime.Add(_fillTolerance)) {
			latest = &day.Candles[i]
			break
		}
	}
	if latest == nil {
		return
	}

	for i := range a.openOrders {
		order := &a.openOrders[i]
		if order.Symbol != day.Symbol || order.Status != enum.OrderStatusOpen {
			continue
		}

		switch {
		case order.Type == enum.OrderTypeStop &&
			latest.Low < order.Price:
			order.Status = enum.OrderStatusFilled

		case order.Type == enum.OrderTypeLimitBuy &&
			order.Price > 0.85*latest.Open+0.15*latest.High &&
			float64(order.Qty) < 2*float64(latest.Volume):
			order.Status = enum.OrderStatusFilled

		case order.Type == enum.OrderTypeLimitSell &&
			order.Price < 0.85*latest.Open+0.15*latest.Low &&
			float64(order.Qty) < 2*float64(latest.Volume):
			order.Status = enum.OrderStatusFilled
		}

		if order.Status == enum.OrderStatusFilled {
			filled := *order
			filled.Moment = virtualTime
			a.feed.Publish(stream.NewOrderUpdate(virtualTime, filled))
		}
	}

	a.feed.Publish(stream.NewCandleUpdate(virtualTime, day.Symbol, *latest))
}

func (a *SimulatedAccount) NextTradingUpdate(symbols []string, strategyStart time.Time) *stream.Update {
	now := a.env.Clock().Now()
	if strategyStart.IsZero() {
		strategyStart = now.Add(-20 * time.Second)
	}

	for {
		u := a.queue.NextUpdate(a.feed.Snapshot(), a.env.Clock().Now(), strategyStart, symbols)
		if u == nil {
			return nil
		}

		// Show the update to the account before the strategy.
		a.preprocess(u)

		if (u.Type == enum.UpdateCandle || u.Type == enum.UpdateOrder) && containsSymbol(symbols, u.Symbol) {
			return u
		}
	}
}

func (a *SimulatedAccount) TradeHistory(symbol string) []model.RoundTripTrade {
	return a.trades[symbol]
}

func (a *SimulatedAccount) Shutdown() {}
