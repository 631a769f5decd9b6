package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/account"
	"main/internal/clock"
	"main/internal/env"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
	"main/internal/strategy"
	"main/internal/stream"
)

type scriptedStrategy struct {
	id      string
	symbols []string
	run     *strategy.Run
	running bool
	window  strategy.Window
	scores  map[string]float64

	updates   int
	panicOn   int // 1-based update index to panic on, 0 for never
	stopAfter int // stop after this many updates, 0 for never
}

func newScriptedStrategy(symbols []string, start time.Time) *scriptedStrategy {
	return &scriptedStrategy{
		id:      "scripted",
		symbols: symbols,
		run:     strategy.NewRun(symbols, start),
		running: true,
		window:  strategy.Window{Start: 10*time.Hour + 30*time.Minute, End: 14*time.Hour + 45*time.Minute},
	}
}

func (s *scriptedStrategy) ID() string                       { return s.id }
func (s *scriptedStrategy) Symbols() []string                { return s.symbols }
func (s *scriptedStrategy) Run() *strategy.Run               { return s.run }
func (s *scriptedStrategy) ActiveWindow() strategy.Window    { return s.window }
func (s *scriptedStrategy) ScoreSymbols() map[string]float64 { return s.scores }
func (s *scriptedStrategy) MarkViable()                      { s.run.BecameViable = true }
func (s *scriptedStrategy) IsRunning() bool                  { return s.running }
func (s *scriptedStrategy) StopRunning()                     { s.running = false }

func (s *scriptedStrategy) OnNewInfo(string, time.Time, *model.Candle, *model.Order) {
	s.updates++
	if s.stopAfter > 0 && s.updates >= s.stopAfter {
		s.running = false
	}
	if s.panicOn > 0 && s.updates == s.panicOn {
		panic("scripted strategy failure")
	}
}

type scriptedAccount struct {
	updates    []*stream.Update
	cancels    int
	liquidates int
}

func (a *scriptedAccount) PlaceLimitBuy(string, float64, int64) bool  { return true }
func (a *scriptedAccount) PlaceLimitSell(string, float64, int64) bool { return true }
func (a *scriptedAccount) PlaceStopOrder(string, float64, int64) bool { return true }

func (a *scriptedAccount) CancelOpenOrders([]string)   { a.cancels++ }
func (a *scriptedAccount) LiquidatePositions([]string) { a.liquidates++ }

func (a *scriptedAccount) NextTradingUpdate([]string, time.Time) *stream.Update {
	if len(a.updates) == 0 {
		return nil
	}
	u := a.updates[0]
	a.updates = a.updates[1:]
	return u
}

func (a *scriptedAccount) Balance() float64                           { return 30000 }
func (a *scriptedAccount) WithdrawableBalance() float64               { return 30000 }
func (a *scriptedAccount) Positions() []model.Position                { return nil }
func (a *scriptedAccount) OpenOrders() []model.Order                  { return nil }
func (a *scriptedAccount) TradeHistory(string) []model.RoundTripTrade { return nil }
func (a *scriptedAccount) Shutdown()                                  {}

func nyMidday(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2024, 3, 5, 12, 0, 0, 0, loc)
}

func liveTestEnv(t *testing.T, moment time.Time) *env.ExecEnv {
	t.Helper()
	clk := clock.New(moment, nil)
	e, err := env.New(enum.EnvTypeLive, clk, nil,
		env.NewSettings(nil), env.NewShared(), store.NewMemoryFactory())
	require.NoError(t, err)
	return e
}

func candleUpdate(moment time.Time, symbol string) *stream.Update {
	u := stream.NewCandleUpdate(moment, symbol,
		model.Candle{Moment: moment, Open: 10, High: 10.1, Low: 9.9, Close: 10, Volume: 1000})
	return &u
}

func TestLiveRunnerCleansUpOnNormalExit(t *testing.T) {
	e := liveTestEnv(t, nyMidday(t))
	acct := &scriptedAccount{updates: []*stream.Update{
		candleUpdate(e.Clock().Now(), "SPY"),
	}}
	strat := newScriptedStrategy([]string{"SPY"}, e.Clock().Now())
	strat.stopAfter = 1

	run := NewLiveRunner(e, acct, strat).Execute(t.Context())

	require.NotNil(t, run)
	assert.Equal(t, 1, strat.updates)
	assert.Equal(t, 1, acct.cancels)
	assert.Equal(t, 1, acct.liquidates)
	assert.False(t, strat.IsRunning())
}

func TestLiveRunnerCleansUpAfterStrategyPanic(t *testing.T) {
	e := liveTestEnv(t, nyMidday(t))
	acct := &scriptedAccount{updates: []*stream.Update{
		candleUpdate(e.Clock().Now(), "SPY"),
		candleUpdate(e.Clock().Now(), "SPY"),
	}}
	strat := newScriptedStrategy([]string{"SPY"}, e.Clock().Now())
	strat.panicOn = 1
	strat.stopAfter = 2

	NewLiveRunner(e, acct, strat).Execute(t.Context())

	// The panic was contained and the next update still got through.
	assert.Equal(t, 2, strat.updates)
	assert.Equal(t, 1, acct.cancels)
	assert.Equal(t, 1, acct.liquidates)
}

func TestLiveRunnerForceStopsWhenMarketsClosed(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	evening := time.Date(2024, 3, 5, 19, 0, 0, 0, loc)

	e := liveTestEnv(t, evening)
	acct := &scriptedAccount{updates: []*stream.Update{
		candleUpdate(evening, "SPY"),
	}}
	strat := newScriptedStrategy([]string{"SPY"}, evening)

	NewLiveRunner(e, acct, strat).Execute(t.Context())

	assert.False(t, strat.IsRunning())
	assert.Zero(t, strat.updates, "no updates dispatched after close")
	assert.Equal(t, 1, acct.cancels)
	assert.Equal(t, 1, acct.liquidates)
}

func TestLiveRunnerDiscardsStaleUpdates(t *testing.T) {
	e := liveTestEnv(t, nyMidday(t))
	now := e.Clock().Now()
	acct := &scriptedAccount{updates: []*stream.Update{
		candleUpdate(now.Add(-10*time.Second), "SPY"),
		candleUpdate(now, "SPY"),
	}}
	strat := newScriptedStrategy([]string{"SPY"}, now)
	strat.stopAfter = 1

	NewLiveRunner(e, acct, strat).Execute(t.Context())

	assert.Equal(t, 1, strat.updates, "stale update should be skipped")
}

func TestLiveRunnerPersistsRunRecord(t *testing.T) {
	e := liveTestEnv(t, nyMidday(t))
	acct := &scriptedAccount{updates: []*stream.Update{
		candleUpdate(e.Clock().Now(), "SPY"),
	}}
	strat := newScriptedStrategy([]string{"SPY"}, e.Clock().Now())
	strat.stopAfter = 1

	NewLiveRunner(e, acct, strat).Execute(t.Context())

	history, err := e.CacheStore().RunHistory(strat.ID())
	require.NoError(t, err)
	require.Len(t, history, 1)
	decoded, err := strategy.DecodeRun(history[0])
	require.NoError(t, err)
	assert.Len(t, decoded.SymbolRuns, 1)
}

// marketMinutes builds a full session of minute candles for one symbol.
func marketMinutes(symbol string, day time.Time, loc *time.Location) *model.SymbolDay {
	open := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, loc)
	sd := &model.SymbolDay{Symbol: symbol, Day: day}
	for i := 0; i < 390; i++ {
		moment := open.Add(time.Duration(i) * time.Minute)
		sd.Candles = append(sd.Candles, model.Candle{
			Moment: moment, Open: 10, High: 10.1, Low: 9.9, Close: 10, Volume: 1000,
		})
	}
	return sd
}

func simTestEnvs(t *testing.T, moment time.Time) (liveEnv, simEnv *env.ExecEnv) {
	t.Helper()
	clk := clock.New(moment, nil)
	settings := env.NewSettings(nil)
	shared := env.NewShared()
	factory := store.NewMemoryFactory()

	liveEnv, err := env.New(enum.EnvTypeLive, clk, nil, settings, shared, factory)
	require.NoError(t, err)
	simEnv, err = env.New(enum.EnvTypeSimulation, clk, nil, settings, shared, factory)
	require.NoError(t, err)
	return liveEnv, simEnv
}

func newSimAccount(t *testing.T, e *env.ExecEnv) *account.SimulatedAccount {
	t.Helper()
	return account.NewSimulatedAccount(e, VirtualBalance)
}

func TestCopyWarmupCopiesValidDays(t *testing.T) {
	liveEnv, simEnv := simTestEnvs(t, nyMidday(t))
	loc := liveEnv.Clock().Calendar().Location()

	day := nyMidday(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, liveEnv.PriceStore().SaveDay(marketMinutes("SPY", day, loc)))
		day = liveEnv.Clock().PrevMarketDay(day)
	}

	err := CopyWarmup(liveEnv, simEnv, []string{"SPY"}, 2, nyMidday(t))
	require.NoError(t, err)

	sd, err := simEnv.PriceStore().LoadDay("SPY", nyMidday(t))
	require.NoError(t, err)
	assert.Len(t, sd.Candles, 390)
}

func TestCopyWarmupFailsOnMissingDay(t *testing.T) {
	liveEnv, simEnv := simTestEnvs(t, nyMidday(t))
	loc := liveEnv.Clock().Calendar().Location()

	// Only the end day is on file; the warmup days are missing.
	require.NoError(t, liveEnv.PriceStore().SaveDay(marketMinutes("SPY", nyMidday(t), loc)))

	err := CopyWarmup(liveEnv, simEnv, []string{"SPY"}, 2, nyMidday(t))
	assert.Error(t, err)
}

func TestSimulatorYieldsEmptyRunWhenNeverViable(t *testing.T) {
	liveEnv, simEnv := simTestEnvs(t, nyMidday(t))
	loc := liveEnv.Clock().Calendar().Location()

	day := nyMidday(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, liveEnv.PriceStore().SaveDay(marketMinutes("SPY", day, loc)))
		day = liveEnv.Clock().PrevMarketDay(day)
	}

	strat := newScriptedStrategy([]string{"SPY"}, nyMidday(t))
	strat.scores = nil // never viable
	acct := newSimAccount(t, simEnv)

	run := NewHistoricalSimulator(liveEnv, simEnv, acct, strat, 2).Execute(t.Context())

	require.NotNil(t, run)
	assert.False(t, run.BecameViable)
	for _, sr := range run.SymbolRuns {
		assert.False(t, sr.Entered())
	}
	assert.False(t, strat.IsRunning())
}

func TestSimulatorDispatchesCandlesWhenViable(t *testing.T) {
	liveEnv, simEnv := simTestEnvs(t, nyMidday(t))
	loc := liveEnv.Clock().Calendar().Location()

	day := nyMidday(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, liveEnv.PriceStore().SaveDay(marketMinutes("SPY", day, loc)))
		day = liveEnv.Clock().PrevMarketDay(day)
	}

	strat := newScriptedStrategy([]string{"SPY"}, nyMidday(t))
	strat.scores = map[string]float64{"SPY": 5}
	strat.stopAfter = 3
	acct := newSimAccount(t, simEnv)

	run := NewHistoricalSimulator(liveEnv, simEnv, acct, strat, 2).Execute(t.Context())

	assert.True(t, run.BecameViable)
	assert.Equal(t, 3, strat.updates)
	assert.False(t, strat.IsRunning())
}

func TestEvaluationMetrics(t *testing.T) {
	start := nyMidday(t)

	winner := strategy.NewRun([]string{"SPY"}, start)
	winner.BecameViable = true
	winner.RecordPurchase("SPY", 100, 10, start)
	winner.RecordSale("SPY", 102, 10, start.Add(time.Minute))

	loser := strategy.NewRun([]string{"SPY"}, start)
	loser.BecameViable = true
	loser.RecordPurchase("SPY", 100, 10, start)
	loser.RecordSale("SPY", 99, 10, start.Add(time.Minute))

	skipped := strategy.NewRun([]string{"SPY"}, start)

	e := NewEvaluation([]*strategy.Run{winner, skipped})
	assert.Equal(t, 1, e.DaysEvaluated)
	assert.Equal(t, 1, e.DaysViable)
	assert.Equal(t, 2, e.Attempts)
	assert.InDelta(t, 0.02, e.NetProfit, 1e-9)
	assert.InDelta(t, 0.5, e.EntryRatio, 1e-9)

	e.Combine(NewEvaluation([]*strategy.Run{loser}))
	assert.Equal(t, 2, e.DaysEvaluated)
	assert.Equal(t, 2, e.DaysEntered)
	assert.Equal(t, 3, e.Attempts)
	assert.InDelta(t, 0.01, e.NetProfit, 1e-9)
	assert.InDelta(t, 0.005, e.AvgProfit, 1e-9)
	assert.InDelta(t, 1.0, e.WinRatio, 1e-9)
}
