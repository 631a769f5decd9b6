package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

var testBase = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func testCandle(moment time.Time) model.Candle {
	return model.Candle{Moment: moment, Open: 10, High: 10.1, Low: 9.9, Close: 10, Volume: 1000}
}

func testOrder(symbol string, moment time.Time) model.Order {
	return model.Order{
		ID: "o-" + moment.Format("150405.000"), Symbol: symbol,
		Type: enum.OrderTypeLimitBuy, Status: enum.OrderStatusFilled,
		Price: 10, Qty: 100, Moment: moment,
	}
}

func TestNextUpdateWindowsOutOldEntries(t *testing.T) {
	now := testBase
	feed := []Update{
		NewCandleUpdate(now.Add(-RetentionWindow-time.Second), "SPY", testCandle(now)),
		NewCandleUpdate(now.Add(-time.Second), "SPY", testCandle(now)),
	}

	q := NewQueue()
	u := q.NextUpdate(feed, now, now.Add(-time.Minute), []string{"SPY"})
	require.NotNil(t, u)
	assert.Equal(t, feed[1].ID, u.ID, "only the in-window update is deliverable")
	assert.Nil(t, q.NextUpdate(feed, now, now.Add(-time.Minute), []string{"SPY"}))
}

func TestNextUpdateRespectsStrategyStart(t *testing.T) {
	now := testBase
	start := now.Add(-2 * time.Second)
	feed := []Update{
		// In the retention window but before the strategy started.
		NewCandleUpdate(now.Add(-5*time.Second), "SPY", testCandle(now)),
		NewCandleUpdate(now.Add(-time.Second), "SPY", testCandle(now)),
	}

	q := NewQueue()
	u := q.NextUpdate(feed, now, start, []string{"SPY"})
	require.NotNil(t, u)
	assert.Equal(t, feed[1].ID, u.ID)
	assert.Nil(t, q.NextUpdate(feed, now, start, []string{"SPY"}))
}

func TestNextUpdateNeverRedelivers(t *testing.T) {
	now := testBase
	feed := []Update{
		NewCandleUpdate(now.Add(-time.Second), "SPY", testCandle(now)),
		NewCandleUpdate(now.Add(-time.Second), "SPY", testCandle(now)),
	}

	q := NewQueue()
	delivered := map[string]int{}
	for {
		u := q.NextUpdate(feed, now, now.Add(-time.Minute), []string{"SPY"})
		if u == nil {
			break
		}
		delivered[u.ID.String()]++
	}

	assert.Len(t, delivered, 2)
	for id, n := range delivered {
		assert.Equalf(t, 1, n, "update %s delivered more than once", id)
	}
}

func TestNextUpdatePrioritizesOrdersOverCandles(t *testing.T) {
	now := testBase
	feed := []Update{
		// The candle is older, but the order still goes first.
		NewCandleUpdate(now.Add(-3*time.Second), "SPY", testCandle(now)),
		NewAcctInfoUpdate(now.Add(-2*time.Second), model.AccountInfo{Cash: 1000}),
		NewOrderUpdate(now.Add(-time.Second), testOrder("SPY", now)),
	}

	q := NewQueue()
	start := now.Add(-time.Minute)

	first := q.NextUpdate(feed, now, start, []string{"SPY"})
	require.NotNil(t, first)
	assert.Equal(t, enum.UpdateOrder, first.Type)

	second := q.NextUpdate(feed, now, start, []string{"SPY"})
	require.NotNil(t, second)
	assert.Equal(t, enum.UpdateAcctInfo, second.Type)

	third := q.NextUpdate(feed, now, start, []string{"SPY"})
	require.NotNil(t, third)
	assert.Equal(t, enum.UpdateCandle, third.Type)
}

func TestNextUpdateBreaksTiesByInsertion(t *testing.T) {
	now := testBase
	feed := []Update{
		NewCandleUpdate(now.Add(-time.Second), "SPY", testCandle(now)),
		NewCandleUpdate(now.Add(-time.Second), "SPY", testCandle(now)),
	}

	q := NewQueue()
	start := now.Add(-time.Minute)

	first := q.NextUpdate(feed, now, start, []string{"SPY"})
	require.NotNil(t, first)
	assert.Equal(t, feed[0].ID, first.ID)
}

func TestNextUpdateFiltersSymbols(t *testing.T) {
	now := testBase
	feed := []Update{
		NewCandleUpdate(now.Add(-time.Second), "AAPL", testCandle(now)),
		// Account updates carry no symbol and always pass the filter.
		NewAcctInfoUpdate(now.Add(-time.Second), model.AccountInfo{Cash: 1000}),
	}

	q := NewQueue()
	start := now.Add(-time.Minute)

	u := q.NextUpdate(feed, now, start, []string{"SPY"})
	require.NotNil(t, u)
	assert.Equal(t, enum.UpdateAcctInfo, u.Type)
	assert.Nil(t, q.NextUpdate(feed, now, start, []string{"SPY"}))
}

func TestFeedPrunesByRetention(t *testing.T) {
	f := NewFeed(RetentionWindow)
	f.Publish(NewCandleUpdate(testBase, "SPY", testCandle(testBase)))
	f.Publish(NewCandleUpdate(testBase.Add(RetentionWindow+time.Second), "SPY", testCandle(testBase)))

	snapshot := f.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, testBase.Add(RetentionWindow+time.Second), snapshot[0].Moment)
}

func TestFeedSnapshotIsACopy(t *testing.T) {
	f := NewFeed(RetentionWindow)
	f.Publish(NewCandleUpdate(testBase, "SPY", testCandle(testBase)))

	snapshot := f.Snapshot()
	snapshot[0].Symbol = "MUTATED"

	assert.Equal(t, "SPY", f.Snapshot()[0].Symbol)
}
