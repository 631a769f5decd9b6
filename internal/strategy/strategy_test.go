package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/clock"
	"main/internal/env"
	"main/internal/model/enum"
	"main/internal/store"
)

func TestWindowContains(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	w := Window{Start: 10*time.Hour + 30*time.Minute, End: 14*time.Hour + 45*time.Minute}
	day := func(hour, min int) time.Time {
		return time.Date(2024, 3, 5, hour, min, 0, 0, loc)
	}

	assert.True(t, w.Contains(day(12, 0), loc))
	assert.True(t, w.Contains(day(10, 30), loc), "the window includes its start")
	assert.True(t, w.Contains(day(14, 45), loc), "the window includes its end")
	assert.False(t, w.Contains(day(10, 29), loc))
	assert.False(t, w.Contains(day(14, 46), loc))

	// A moment in another zone is judged in exchange-local terms.
	utc := day(12, 0).UTC()
	assert.True(t, w.Contains(utc, loc))
}

func TestWindowBoundsOnDate(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	w := Window{Start: 10*time.Hour + 30*time.Minute, End: 14*time.Hour + 45*time.Minute}
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 3, 5, 10, 30, 0, 0, loc), w.StartOn(day, loc))
	assert.Equal(t, time.Date(2024, 3, 5, 14, 45, 0, 0, loc), w.EndOn(day, loc))
}

func TestMaxPurchase(t *testing.T) {
	newEnv := func(t *testing.T) *env.ExecEnv {
		t.Helper()
		clk := clock.New(time.Now(), clock.NewTradingCalendar())
		e, err := env.New(enum.EnvTypeSimulation, clk, nil,
			env.NewSettings(nil), env.NewShared(), store.NewMemoryFactory())
		require.NoError(t, err)
		return e
	}

	t.Run("falls back without settings", func(t *testing.T) {
		e := newEnv(t)
		assert.Equal(t, 10000.0, MaxPurchase(e, "long_short", 30000, 10000))
	})

	t.Run("dollar cap overrides the fallback", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.SaveSetting("strategy.long_short.max_purchase_usd", "5000"))
		assert.Equal(t, 5000.0, MaxPurchase(e, "long_short", 30000, 10000))
	})

	t.Run("percent cap tightens further", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.SaveSetting("strategy.long_short.max_purchase_usd", "5000"))
		require.NoError(t, e.SaveSetting("strategy.long_short.max_purchase_pct", "10"))
		assert.Equal(t, 3000.0, MaxPurchase(e, "long_short", 30000, 10000))
	})

	t.Run("percent cap never raises the limit", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.SaveSetting("strategy.long_short.max_purchase_pct", "90"))
		assert.Equal(t, 10000.0, MaxPurchase(e, "long_short", 30000, 10000))
	})

	t.Run("garbage settings are ignored", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.SaveSetting("strategy.long_short.max_purchase_usd", "lots"))
		require.NoError(t, e.SaveSetting("strategy.long_short.max_purchase_pct", "-5"))
		assert.Equal(t, 10000.0, MaxPurchase(e, "long_short", 30000, 10000))
	})
}

func TestRunRecordsTradesPerSymbol(t *testing.T) {
	start := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	run := NewRun([]string{"SPXL", "SPXS"}, start)

	run.RecordPurchase("SPXL", 50.25, 100, start.Add(time.Minute))
	run.RecordSale("SPXL", 50.40, 100, start.Add(5*time.Minute))
	run.RecordPurchase("UNLISTED", 10.00, 50, start.Add(time.Minute))

	require.Len(t, run.SymbolRuns, 3)

	bull := run.SymbolRuns[0]
	assert.True(t, bull.Entered())
	assert.Equal(t, []float64{50.25}, bull.BuyPrices)
	assert.Equal(t, []float64{50.40}, bull.SellPrices)

	assert.False(t, run.SymbolRuns[1].Entered())
	assert.Equal(t, "UNLISTED", run.SymbolRuns[2].Symbol, "unknown symbols get their own record")
}

func TestRunEncodeDecodeRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	run := NewRun([]string{"SPXL"}, start)
	run.BecameViable = true
	run.EndTime = start.Add(time.Hour)
	run.RecordPurchase("SPXL", 50.25, 100, start.Add(time.Minute))
	run.RecordSale("SPXL", 50.40, 100, start.Add(5*time.Minute))
	run.Metadata = map[string]string{"mode": "simulated"}

	payload, err := run.Encode()
	require.NoError(t, err)

	decoded, err := DecodeRun(payload)
	require.NoError(t, err)

	assert.True(t, decoded.BecameViable)
	assert.True(t, decoded.StartTime.Equal(run.StartTime))
	assert.True(t, decoded.EndTime.Equal(run.EndTime))
	assert.Equal(t, run.Metadata, decoded.Metadata)
	require.Len(t, decoded.SymbolRuns, 1)
	assert.Equal(t, run.SymbolRuns[0].BuyPrices, decoded.SymbolRuns[0].BuyPrices)
	assert.Equal(t, run.SymbolRuns[0].SellPrices, decoded.SymbolRuns[0].SellPrices)
	assert.Equal(t, run.SymbolRuns[0].QtysTraded, decoded.SymbolRuns[0].QtysTraded)
}

func TestDecodeRunRejectsGarbage(t *testing.T) {
	_, err := DecodeRun([]byte("{not json"))
	assert.Error(t, err)
}
