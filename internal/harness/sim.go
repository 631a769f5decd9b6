package harness

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/env"
	"main/internal/model"
	"main/internal/strategy"
)

const (
	// DefaultWarmupDays is how much history primes the analysis models
	// before a backtest begins.
	DefaultWarmupDays = 30

	// _simTick is the virtual-time jump between dispatch cycles. Slightly
	// over one second so consecutive ticks never test the same candle twice.
	_simTick = 1001 * time.Millisecond
	// _maxSimUpdates is the most updates dispatched in one simulated cycle.
	_maxSimUpdates = 50
	// _viabilityIncr is the virtual-time jump between viability checks.
	_viabilityIncr = 30 * time.Second
	// _windowSeek is the virtual-time jump used to reach the strategy's
	// active window.
	_windowSeek = 3 * time.Minute

	// VirtualBalance is the starting cash of every simulated account.
	VirtualBalance = 30000
)

// HistoricalSimulator backtests a strategy over a single day. It replays
// stored candles through a simulated account while advancing the virtual
// clock in fixed ticks, so the strategy runs the same decision path it would
// have run live.
type HistoricalSimulator struct {
	liveEnv    *env.ExecEnv
	simEnv     *env.ExecEnv
	acct       *account.SimulatedAccount
	strat      strategy.Strategy
	warmupDays int
}

// NewHistoricalSimulator prepares a one-day backtest. The simulation
// environment's clock decides which day is simulated; warmupDays of history
// before it are copied from the live environment.
func NewHistoricalSimulator(liveEnv, simEnv *env.ExecEnv, acct *account.SimulatedAccount,
	strat strategy.Strategy, warmupDays int) *HistoricalSimulator {
	if warmupDays <= 0 {
		warmupDays = DefaultWarmupDays
	}
	return &HistoricalSimulator{
		liveEnv:    liveEnv,
		simEnv:     simEnv,
		acct:       acct,
		strat:      strat,
		warmupDays: warmupDays,
	}
}

// Execute runs the backtest and returns the strategy's run record. A
// strategy that never becomes viable inside its active window yields an
// empty record. The cancel/liquidate cleanup runs on every exit path, same
// as the live runner.
func (h *HistoricalSimulator) Execute(ctx context.Context) *strategy.Run {
	defer persistRun(h.simEnv, h.strat)
	defer cleanup(h.acct, h.strat)

	run := h.strat.Run()
	clk := h.simEnv.Clock()
	begin := clk.Now()

	if err := h.simEnv.ResetStores(); err != nil {
		logs.Errorf("reset simulation stores, err: %+v", err)
		return run
	}

	logs.Infof("warming up %d days to %s", h.warmupDays, begin.Format("2006-01-02"))
	if err := CopyWarmup(h.liveEnv, h.simEnv, h.strat.Symbols(), h.warmupDays, begin); err != nil {
		logs.Warnf("cannot set up simulation: %+v", err)
		return run
	}
	h.simEnv.MarkDataLoaded()
	clk.SetMoment(begin)

	// Fast-forward to the strategy's active window.
	win := h.strat.ActiveWindow()
	loc := clk.Calendar().Location()
	for !win.Contains(clk.Now(), loc) {
		clk.Advance(_windowSeek)
		if !clk.IsOpen() {
			logs.Warnf("%s has a misconfigured active window, cannot simulate it", h.strat.ID())
			return run
		}
	}

	// Poll viability until the strategy's models pass or its window runs
	// out.
	clk.Advance(-_viabilityIncr)
	for {
		clk.Advance(_viabilityIncr)
		run.StartTime = clk.Now()

		if len(h.strat.ScoreSymbols()) > 0 {
			logs.Infof("%s became viable at %s", h.strat.ID(), clk.Now().Format("15:04:05"))
			h.strat.MarkViable()
			break
		}
		if now := clk.Now(); !win.Contains(now, loc) || !clk.IsOpenAt(now) {
			logs.Infof("%s never became viable during its run window", h.strat.ID())
			h.strat.StopRunning()
			return run
		}
	}

	days, ok := h.loadSimulationDays()
	if !ok {
		return run
	}

	symbols := h.strat.Symbols()
	for h.strat.IsRunning() && clk.IsOpen() {
		select {
		case <-ctx.Done():
			logs.Warnf("stopping simulation of %s early: %v", h.strat.ID(), ctx.Err())
			h.strat.StopRunning()
			return run
		default:
		}

		// Let the account test fills against the current tick's candle, as
		// if a stream message had just arrived.
		now := clk.Now()
		for _, day := range days {
			h.acct.Advance(now, day)
		}

		processed := 0
		u := h.acct.NextTradingUpdate(symbols, run.StartTime)
		for u != nil && h.strat.IsRunning() && processed < _maxSimUpdates {
			processed++
			dispatch(h.strat, u)
			u = h.acct.NextTradingUpdate(symbols, run.StartTime)
		}
		if processed > 20 {
			logs.Warnf("simulated strategy processed %d updates at once", processed)
		}

		clk.Advance(_simTick)
	}

	return run
}

func (h *HistoricalSimulator) loadSimulationDays() ([]*model.SymbolDay, bool) {
	days := make([]*model.SymbolDay, 0, len(h.strat.Symbols()))
	for _, symbol := range h.strat.Symbols() {
		sd, err := h.simEnv.PriceStore().LoadDay(symbol, h.simEnv.Clock().Now())
		if err != nil {
			logs.Errorf("load simulation data for %s, err: %+v", symbol, err)
			return nil, false
		}
		days = append(days, sd)
	}
	return days, true
}
