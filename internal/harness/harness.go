package harness

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/env"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/strategy"
	"main/internal/stream"
)

// Harness drives a strategy against an account until the strategy stops,
// then hands back its run record. The live runner and the historical
// simulator implement the same contract so evaluation code never cares which
// produced a run.
type Harness interface {
	Execute(ctx context.Context) *strategy.Run
}

// dispatch feeds one update to the strategy. A panic inside strategy logic
// is contained here so a single bad update cannot take down the whole run.
func dispatch(s strategy.Strategy, u *stream.Update) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("strategy %s panicked on update: %+v", s.ID(), r)
		}
	}()

	var candle *model.Candle
	var order *model.Order
	switch u.Type {
	case enum.UpdateCandle:
		candle = u.Candle
	case enum.UpdateOrder:
		order = u.Order
	default:
		return
	}
	s.OnNewInfo(u.Symbol, u.Moment, candle, order)
}

// cleanup cancels open orders and liquidates positions for the strategy's
// symbols. It runs on every harness exit, normal or not; holding positions
// past a run's end is never acceptable.
func cleanup(acct account.Account, s strategy.Strategy) {
	symbols := s.Symbols()
	logs.Infof("cleaning up after %s: canceling orders and liquidating positions for %v", s.ID(), symbols)
	acct.CancelOpenOrders(symbols)
	acct.LiquidatePositions(symbols)
	if s.IsRunning() {
		s.StopRunning()
	}
}

// persistRun records the strategy's run so the evaluation pipeline can grade
// it later.
func persistRun(e *env.ExecEnv, s strategy.Strategy) {
	payload, err := s.Run().Encode()
	if err != nil {
		logs.Errorf("encode %s run, err: %+v", s.ID(), err)
		return
	}
	if err := e.CacheStore().RecordRun(s.ID(), payload); err != nil {
		logs.Errorf("record %s run, err: %+v", s.ID(), err)
	}
}
