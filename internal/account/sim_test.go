package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/clock"
	"main/internal/env"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

func newSimEnv(t *testing.T) *env.ExecEnv {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	midday := time.Date(2024, 3, 5, 12, 0, 0, 0, loc)

	clk := clock.New(midday, clock.NewTradingCalendar())
	e, err := env.New(enum.EnvTypeSimulation, clk, nil,
		env.NewSettings(nil), env.NewShared(), store.NewMemoryFactory())
	require.NoError(t, err)
	return e
}

// dayWith wraps one candle in a symbol day for Advance.
func dayWith(symbol string, c model.Candle) *model.SymbolDay {
	return &model.SymbolDay{Symbol: symbol, Day: c.Moment, Candles: []model.Candle{c}}
}

// drain pulls every pending update so later assertions see the cached book.
func drain(a *SimulatedAccount, symbols []string, start time.Time) (orders, candles int) {
	for {
		u := a.NextTradingUpdate(symbols, start)
		if u == nil {
			return orders, candles
		}
		switch u.Type {
		case enum.UpdateOrder:
			orders++
		case enum.UpdateCandle:
			candles++
		}
	}
}

func TestStopOrderFillsWhenLowTradesThrough(t *testing.T) {
	e := newSimEnv(t)
	vt := e.Clock().Now()
	start := vt.Add(-time.Minute)

	a := NewSimulatedAccount(e, 30000)
	require.True(t, a.PlaceLimitBuy("SPXL", 51.00, 100))
	a.Advance(vt, dayWith("SPXL", model.Candle{
		Moment: vt, Open: 50.50, High: 50.60, Low: 50.20, Close: 50.40, Volume: 10000,
	}))
	orders, _ := drain(a, []string{"SPXL"}, start)
	require.Equal(t, 1, orders)
	require.Len(t, a.Positions(), 1)

	require.True(t, a.PlaceStopOrder("SPXL", 50.00, 100))

	a.Advance(vt, dayWith("SPXL", model.Candle{
		Moment: vt, Open: 50.50, High: 50.60, Low: 50.00, Close: 50.10, Volume: 10000,
	}))
	orders, _ = drain(a, []string{"SPXL"}, start)
	assert.Zero(t, orders, "a low touching the stop price exactly does not fill")

	a.Advance(vt, dayWith("SPXL", model.Candle{
		Moment: vt, Open: 50.50, High: 50.60, Low: 49.99, Close: 50.10, Volume: 10000,
	}))
	orders, _ = drain(a, []string{"SPXL"}, start)
	assert.Equal(t, 1, orders)
	assert.Empty(t, a.Positions(), "a filled stop sells out the position")
}

func TestLimitBuyFillBoundaries(t *testing.T) {
	// Weighted price is 0.85*100 + 0.15*110 = 101.50.
	candle := model.Candle{Open: 100, High: 110, Low: 99, Close: 105, Volume: 1000}

	for _, tc := range []struct {
		name  string
		limit float64
		qty   int64
		fills bool
	}{
		{"limit above weighted price", 101.51, 100, true},
		{"limit at weighted price", 101.50, 100, false},
		{"limit below weighted price", 101.00, 100, false},
		{"order just under twice the volume", 101.51, 1999, true},
		{"order at twice the volume", 101.51, 2000, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newSimEnv(t)
			vt := e.Clock().Now()
			start := vt.Add(-time.Minute)

			a := NewSimulatedAccount(e, 30000)
			require.True(t, a.PlaceLimitBuy("SPXL", tc.limit, tc.qty))

			c := candle
			c.Moment = vt
			a.Advance(vt, dayWith("SPXL", c))

			orders, candles := drain(a, []string{"SPXL"}, start)
			assert.Equal(t, 1, candles)
			if tc.fills {
				assert.Equal(t, 1, orders)
				require.Len(t, a.Positions(), 1)
				assert.Equal(t, tc.qty, a.Positions()[0].Shares)
			} else {
				assert.Zero(t, orders)
				assert.Empty(t, a.Positions())
			}
		})
	}
}

func TestLimitSellFillBoundaries(t *testing.T) {
	// Weighted price is 0.85*100 + 0.15*90 = 98.50.
	candle := model.Candle{Open: 100, High: 101, Low: 90, Close: 95, Volume: 1000}

	for _, tc := range []struct {
		name  string
		limit float64
		fills bool
	}{
		{"limit below weighted price", 98.49, true},
		{"limit at weighted price", 98.50, false},
		{"limit above weighted price", 99.00, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newSimEnv(t)
			vt := e.Clock().Now()
			start := vt.Add(-time.Minute)

			a := NewSimulatedAccount(e, 30000)
			require.True(t, a.PlaceLimitSell("SPXL", tc.limit, 100))

			c := candle
			c.Moment = vt
			a.Advance(vt, dayWith("SPXL", c))

			orders, _ := drain(a, []string{"SPXL"}, start)
			if tc.fills {
				assert.Equal(t, 1, orders)
			} else {
				assert.Zero(t, orders)
			}
		})
	}
}

func TestAdvanceSkipsCandlesOutsideTolerance(t *testing.T) {
	e := newSimEnv(t)
	vt := e.Clock().Now()
	start := vt.Add(-time.Minute)
	a := NewSimulatedAccount(e, 30000)

	for _, tc := range []struct {
		name    string
		moment  time.Time
		emitted bool
	}{
		{"well before", vt.Add(-2 * time.Second), false},
		{"at the lower bound", vt.Add(-900 * time.Millisecond), true},
		{"just under the upper bound", vt.Add(899 * time.Millisecond), true},
		{"at the upper bound", vt.Add(900 * time.Millisecond), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a.Advance(vt, dayWith("SPXL", model.Candle{
				Moment: tc.moment, Open: 50, High: 51, Low: 49, Close: 50, Volume: 1000,
			}))
			_, candles := drain(a, []string{"SPXL"}, start)
			if tc.emitted {
				assert.Equal(t, 1, candles)
			} else {
				assert.Zero(t, candles)
			}
		})
	}
}

func TestPlacingReplacesCompetingOrder(t *testing.T) {
	e := newSimEnv(t)
	a := NewSimulatedAccount(e, 30000)

	require.True(t, a.PlaceLimitBuy("SPXL", 50.00, 100))
	require.True(t, a.PlaceLimitBuy("SPXL", 49.50, 120))
	require.True(t, a.PlaceLimitSell("SPXL", 52.00, 100))
	require.True(t, a.PlaceLimitBuy("SPXS", 10.00, 500))

	open := a.OpenOrders()
	require.Len(t, open, 3)

	var buys []model.Order
	for _, o := range open {
		if o.Symbol == "SPXL" && o.Type == enum.OrderTypeLimitBuy {
			buys = append(buys, o)
		}
	}
	require.Len(t, buys, 1)
	assert.Equal(t, 49.50, buys[0].Price)
	assert.Equal(t, int64(120), buys[0].Qty)
}

func TestCancelOpenOrdersTargetsListedSymbols(t *testing.T) {
	e := newSimEnv(t)
	a := NewSimulatedAccount(e, 30000)

	require.True(t, a.PlaceLimitBuy("SPXL", 50.00, 100))
	require.True(t, a.PlaceLimitBuy("SPXS", 10.00, 500))

	a.CancelOpenOrders([]string{"SPXL"})

	open := a.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, "SPXS", open[0].Symbol)
}

func TestFilledBuyShowsUpAsPosition(t *testing.T) {
	e := newSimEnv(t)
	vt := e.Clock().Now()
	start := vt.Add(-time.Minute)
	a := NewSimulatedAccount(e, 30000)

	require.True(t, a.PlaceLimitBuy("SPXL", 102.00, 100))
	a.Advance(vt, dayWith("SPXL", model.Candle{
		Moment: vt, Open: 100, High: 110, Low: 99, Close: 105, Volume: 10000,
	}))

	u := a.NextTradingUpdate([]string{"SPXL"}, start)
	require.NotNil(t, u)
	assert.Equal(t, enum.UpdateOrder, u.Type, "the fill arrives before the candle")
	assert.Equal(t, enum.OrderStatusFilled, u.Order.Status)

	require.Len(t, a.Positions(), 1)
	assert.Equal(t, int64(100), a.Positions()[0].Shares)
	assert.Empty(t, a.OpenOrders(), "the fill clears the open order")

	u = a.NextTradingUpdate([]string{"SPXL"}, start)
	require.NotNil(t, u)
	assert.Equal(t, enum.UpdateCandle, u.Type)

	// Liquidation wipes the position outright.
	a.LiquidatePositions([]string{"SPXL"})
	assert.Empty(t, a.Positions())
}
