package harness

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/env"
	"main/internal/strategy"
)

const (
	// _pollInterval is the sleep between live dispatch cycles.
	_pollInterval = 500 * time.Millisecond
	// _maxLiveUpdates is the most updates dispatched in one cycle.
	_maxLiveUpdates = 10
	// _staleAfter is how old an update may be and still be worth acting on.
	_staleAfter = 7 * time.Second
)

// LiveRunner executes a strategy against a live account, dispatching stream
// updates in short polling cycles until the strategy stops or markets close.
type LiveRunner struct {
	env   *env.ExecEnv
	acct  account.Account
	strat strategy.Strategy
}

func NewLiveRunner(e *env.ExecEnv, acct account.Account, strat strategy.Strategy) *LiveRunner {
	return &LiveRunner{env: e, acct: acct, strat: strat}
}

// Execute runs the strategy to completion and returns its run record. Open
// orders are canceled and positions liquidated on every exit path.
func (r *LiveRunner) Execute(ctx context.Context) *strategy.Run {
	defer persistRun(r.env, r.strat)
	defer cleanup(r.acct, r.strat)

	symbols := r.strat.Symbols()
	for r.strat.IsRunning() {
		select {
		case <-ctx.Done():
			logs.Warnf("stopping %s early: %v", r.strat.ID(), ctx.Err())
			r.strat.StopRunning()
			return r.strat.Run()
		default:
		}

		if !r.env.Clock().IsOpen() {
			logs.Warnf("force stopping %s since it continued after markets closed", r.strat.ID())
			r.strat.StopRunning()
			break
		}

		time.Sleep(_pollInterval)

		processed := 0
		u := r.acct.NextTradingUpdate(symbols, r.strat.Run().StartTime)
		for u != nil && r.strat.IsRunning() && processed < _maxLiveUpdates {
			// Acting on stale prices is worse than skipping them.
			if r.env.Clock().Now().Sub(u.Moment) > _staleAfter {
				logs.Debugf("ignoring old update from %s", u.Moment.Format("15:04:05"))
				u = r.acct.NextTradingUpdate(symbols, r.strat.Run().StartTime)
				continue
			}

			processed++
			dispatch(r.strat, u)
			u = r.acct.NextTradingUpdate(symbols, r.strat.Run().StartTime)
		}
	}

	return r.strat.Run()
}
