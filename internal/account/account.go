package account

import (
	"time"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/stream"
)

// Account is a brokerage account the decision logic trades through. The live
// implementation talks to the real brokerage; the simulated one replays
// stored price data. Strategies never know which they are holding.
//
// Placement methods report success as a bool: a false return means the order
// was not placed and the strategy should adjust, not crash. Cached state
// (balance, positions, open orders) is refreshed by the update stream and is
// not guaranteed up to the second.
type Account interface {
	PlaceLimitBuy(symbol string, limit float64, qty int64) bool
	PlaceLimitSell(symbol string, limit float64, qty int64) bool
	PlaceStopOrder(symbol string, price float64, qty int64) bool

	CancelOpenOrders(symbols []string)
	LiquidatePositions(symbols []string)

	// NextTradingUpdate returns the next update that should advance strategy
	// logic, or nil when none is pending. The account sees each update before
	// the strategy does.
	NextTradingUpdate(symbols []string, strategyStart time.Time) *stream.Update

	Balance() float64
	WithdrawableBalance() float64
	Positions() []model.Position
	OpenOrders() []model.Order
	TradeHistory(symbol string) []model.RoundTripTrade

	Shutdown()
}

// book is the cached account state shared by account implementations. It is
// confined to the goroutine that runs the account's strategy.
type book struct {
	balance      float64
	withdrawable float64
	positions    []model.Position
	openOrders   []model.Order
	trades       map[string][]model.RoundTripTrade
}

func newBook() book {
	return book{trades: make(map[string][]model.RoundTripTrade)}
}

func (b *book) Balance() float64 {
	return b.balance
}

func (b *book) WithdrawableBalance() float64 {
	return b.withdrawable
}

func (b *book) Positions() []model.Position {
	return b.positions
}

func (b *book) OpenOrders() []model.Order {
	return b.openOrders
}

// preprocess folds a stream update into the cached state before the strategy
// is informed.
func (b *book) preprocess(u *stream.Update) {
	switch u.Type {
	case enum.UpdateAcctInfo:
		b.balance = u.AcctInfo.Cash
		b.withdrawable = u.AcctInfo.WithdrawableCash

	case enum.UpdateOrder:
		order := *u.Order
		if order.Status != enum.OrderStatusFilled {
			b.openOrders = append(b.openOrders, order)
			return
		}

		kept := b.openOrders[:0]
		for _, open := range b.openOrders {
			if open.ID != order.ID {
				kept = append(kept, open)
			}
		}
		b.openOrders = kept

		switch {
		case order.Type.IsSell():
			b.addShares(order.Symbol, -order.Qty)
		case order.Type.IsBuy():
			b.addShares(order.Symbol, order.Qty)
		}
	}
}

func (b *book) addShares(symbol string, qty int64) {
	for i := range b.positions {
		if b.positions[i].Symbol == symbol {
			b.positions[i].Shares += qty
			if b.positions[i].Shares == 0 {
				b.positions = append(b.positions[:i], b.positions[i+1:]...)
			}
			return
		}
	}
	if qty != 0 {
		b.positions = append(b.positions, model.Position{Symbol: symbol, Shares: qty})
	}
}

// TradesSince returns round trips whose buy leg happened at or after the
// given moment.
func TradesSince(trades []model.RoundTripTrade, moment time.Time) []model.RoundTripTrade {
	var out []model.RoundTripTrade
	for _, t := range trades {
		if !t.BuyTime.Before(moment) {
			out = append(out, t)
		}
	}
	return out
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
