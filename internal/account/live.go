package account

import (
	"context"
	"math"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/env"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/stream"
)

const (
	// _orderCooldown is the minimum wait between placing two orders on the
	// same side (buy/sell).
	_orderCooldown = 500 * time.Millisecond

	// _orderPause spaces out cancel-then-place call pairs and cooldown polls.
	_orderPause = 200 * time.Millisecond

	// _historyWindow bounds how far back closed orders are fetched when
	// loading a symbol's trade history.
	_historyWindow = 48 * time.Hour
)

// LiveAccount executes orders on the real brokerage account. Create at most
// one per process; the brokerage treats concurrent sessions unkindly.
type LiveAccount struct {
	book

	ctx    context.Context
	env    *env.ExecEnv
	client *broker.Client
	feed   *stream.Feed
	queue  *stream.Queue

	lastBuyOrderAt  time.Time
	lastSellOrderAt time.Time
	historyLoaded   map[string]bool
}

// NewLiveAccount builds a live account reading updates from the shared feed.
// The initial balance is fetched immediately; trade history is loaded lazily
// per symbol.
func NewLiveAccount(ctx context.Context, e *env.ExecEnv, client *broker.Client, feed *stream.Feed) *LiveAccount {
	l := &LiveAccount{
		book:            newBook(),
		ctx:             ctx,
		env:             e,
		client:          client,
		feed:            feed,
		queue:           stream.NewQueue(),
		lastBuyOrderAt:  e.Clock().Now().Add(-time.Minute),
		lastSellOrderAt: e.Clock().Now().Add(-time.Minute),
		historyLoaded:   make(map[string]bool),
	}
	l.refreshBalanceInfo()
	return l
}

func (l *LiveAccount) PlaceLimitBuy(symbol string, limit float64, qty int64) bool {
	for l.env.Clock().Now().Sub(l.lastBuyOrderAt) <= _orderCooldown {
		logs.Warn("cooling down before placing next buy order")
		time.Sleep(_orderPause)
	}

	limit = roundDownCents(limit)
	l.CancelOpenOrders([]string{symbol})
	time.Sleep(_orderPause)
	if err := l.client.SubmitLimitOrder(l.ctx, symbol, "buy", limit, qty); err != nil {
		logs.Errorf("place limit buy for %d %s at $%.2f, err: %+v", qty, symbol, limit, err)
		return false
	}
	l.lastBuyOrderAt = l.env.Clock().Now()
	return true
}

func (l *LiveAccount) PlaceLimitSell(symbol string, limit float64, qty int64) bool {
	for l.env.Clock().Now().Sub(l.lastSellOrderAt) <= _orderCooldown {
		logs.Warn("cooling down before placing next sell order")
		time.Sleep(_orderPause)
	}

	limit = roundUpCents(limit)
	l.CancelOpenOrders([]string{symbol})
	time.Sleep(_orderPause)
	if err := l.client.SubmitLimitOrder(l.ctx, symbol, "sell", limit, qty); err != nil {
		logs.Errorf("place limit sell for %d %s at $%.2f, err: %+v", qty, symbol, limit, err)
		return false
	}
	l.lastSellOrderAt = l.env.Clock().Now()
	return true
}

func (l *LiveAccount) PlaceStopOrder(symbol string, price float64, qty int64) bool {
	price = roundDownCents(price)
	l.CancelOpenOrders([]string{symbol})
	time.Sleep(_orderPause)
	if err := l.client.SubmitStopOrder(l.ctx, symbol, price, qty); err != nil {
		logs.Errorf("place stop order for %d %s at $%.2f, err: %+v", qty, symbol, price, err)
		return false
	}
	return true
}

// CanDayTrade reports whether another day trade is allowed under the
// pattern-day-trader rule.
func (l *LiveAccount) CanDayTrade() (bool, error) {
	return l.client.CanDayTrade(l.ctx)
}

func (l *LiveAccount) CancelOpenOrders(symbols []string) {
	orders, err := l.client.OpenOrders(l.ctx)
	if err != nil {
		logs.Errorf("list open orders to cancel, err: %+v", err)
		return
	}
	for _, order := range orders {
		if !containsSymbol(symbols, order.Symbol) {
			continue
		}
		logs.Warnf("canceling open order for %s", order.Symbol)
		if err := l.client.CancelOrder(l.ctx, order.ID); err != nil {
			logs.Errorf("cancel order %s, err: %+v", order.ID, err)
		}
	}
}

func (l *LiveAccount) LiquidatePositions(symbols []string) {
	holdings, err := l.client.Holdings(l.ctx)
	if err != nil {
		logs.Errorf("list positions to liquidate, err: %+v", err)
		return
	}
	for _, h := range holdings {
		if !containsSymbol(symbols, h.Symbol) {
			continue
		}
		if h.Shares < 0 {
			logs.Warnf("liquidating short position in %s: dumping %d shares", h.Symbol, h.Shares)
			l.PlaceLimitBuy(h.Symbol, h.CurrentPrice*1.03, -h.Shares)
		} else {
			logs.Warnf("liquidating position in %s: dumping %d shares", h.Symbol, h.Shares)
			l.PlaceLimitSell(h.Symbol, h.CurrentPrice*0.97, h.Shares)
		}
	}
}

func (l *LiveAccount) NextTradingUpdate(symbols []string, strategyStart time.Time) *stream.Update {
	now := l.env.Clock().Now()
	if strategyStart.IsZero() {
		strategyStart = now.Add(-20 * time.Second)
	}

	for {
		u := l.queue.NextUpdate(l.feed.Snapshot(), l.env.Clock().Now(), strategyStart, symbols)
		if u == nil {
			return nil
		}

		// A fresh stream connection invalidates everything cached.
		if u.Type == enum.UpdateStartedUp {
			l.refreshBalanceInfo()
			l.refreshPositions(symbols)
			l.refreshOpenOrders(symbols)
			continue
		}

		if u.Type == enum.UpdateAcctInfo || containsSymbol(symbols, u.Symbol) {
			l.preprocess(u)
			return u
		}
	}
}

func (l *LiveAccount) TradeHistory(symbol string) []model.RoundTripTrade {
	if !l.historyLoaded[symbol] {
		now := l.env.Clock().Now()
		l.loadTradeHistory(symbol, now.Add(-_historyWindow), now.Add(24*time.Hour))
	}
	return l.trades[symbol]
}

// loadTradeHistory merges cached round trips with fresh ones parsed from the
// brokerage's closed orders. Orders arrive newest first; a filled non-buy
// order opens a pair and the next filled limit buy closes it.
func (l *LiveAccount) loadTradeHistory(symbol string, after, until time.Time) {
	cached, err := l.env.CacheStore().TradeHistory(symbol)
	if err != nil {
		logs.Errorf("load cached trade history for %s, err: %+v", symbol, err)
	}
	l.trades[symbol] = cached

	orders, err := l.client.ClosedOrders(l.ctx, after, until, 500)
	if err != nil {
		logs.Errorf("load closed orders for %s, err: %+v", symbol, err)
		return
	}

	var sellOrder *model.Order
	for _, order := range orders {
		if order.Status != enum.OrderStatusFilled {
			continue
		}
		order := order
		if sellOrder == nil && order.Type != enum.OrderTypeLimitBuy {
			sellOrder = &order
		} else if sellOrder != nil && order.Type == enum.OrderTypeLimitBuy {
			trade := model.RoundTripTrade{
				Symbol:    order.Symbol,
				BuyTime:   order.Moment,
				SellTime:  sellOrder.Moment,
				BuyPrice:  order.Price,
				SellPrice: sellOrder.Price,
				Qty:       order.Qty,
			}
			if !tradeSeen(l.trades[symbol], trade) {
				l.trades[symbol] = append(l.trades[symbol], trade)
				if err := l.env.CacheStore().RecordTrade(trade); err != nil {
					logs.Errorf("record trade for %s, err: %+v", symbol, err)
				}
			}
			sellOrder = nil
		}
	}
	l.historyLoaded[symbol] = true
}

func (l *LiveAccount) refreshBalanceInfo() {
	info, err := l.client.Account(l.ctx)
	if err != nil {
		logs.Errorf("refresh balance info, err: %+v", err)
	}
	if info.Cash > 0 {
		l.balance = info.Cash
		l.withdrawable = info.WithdrawableCash
	}
}

func (l *LiveAccount) refreshOpenOrders(symbols []string) {
	orders, err := l.client.OpenOrders(l.ctx)
	if err != nil {
		logs.Errorf("refresh open orders, err: %+v", err)
		return
	}
	l.openOrders = l.openOrders[:0]
	for _, order := range orders {
		if containsSymbol(symbols, order.Symbol) && order.Status == enum.OrderStatusOpen {
			l.openOrders = append(l.openOrders, order)
		}
	}
}

func (l *LiveAccount) refreshPositions(symbols []string) {
	holdings, err := l.client.Holdings(l.ctx)
	if err != nil {
		logs.Errorf("refresh positions, err: %+v", err)
		return
	}
	l.positions = l.positions[:0]
	for _, h := range holdings {
		if containsSymbol(symbols, h.Symbol) {
			l.positions = append(l.positions, model.Position{Symbol: h.Symbol, Shares: h.Shares})
		}
	}
}

func (l *LiveAccount) Shutdown() {}

func tradeSeen(trades []model.RoundTripTrade, trade model.RoundTripTrade) bool {
	for _, t := range trades {
		if t.Symbol == trade.Symbol &&
			t.BuyTime.Equal(trade.BuyTime) && t.SellTime.Equal(trade.SellTime) &&
			t.BuyPrice == trade.BuyPrice && t.SellPrice == trade.SellPrice &&
			t.Qty == trade.Qty {
			return true
		}
	}
	return false
}

func roundDownCents(v float64) float64 {
	return math.Floor(v*100) / 100
}

func roundUpCents(v float64) float64 {
	return math.Ceil(v*100) / 100
}
