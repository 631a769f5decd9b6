package strategy

import (
	"strconv"
	"time"

	"main/internal/env"
	"main/internal/model"
)

// Window is a strategy's daily active interval, expressed as offsets from
// midnight in exchange-local time.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether the moment falls inside the window.
func (w Window) Contains(moment time.Time, loc *time.Location) bool {
	t := moment.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	offset := t.Sub(midnight)
	return offset >= w.Start && offset <= w.End
}

// StartOn returns the window's opening moment on the given date.
func (w Window) StartOn(day time.Time, loc *time.Location) time.Time {
	t := day.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).Add(w.Start)
}

// EndOn returns the window's closing moment on the given date.
func (w Window) EndOn(day time.Time, loc *time.Location) time.Time {
	t := day.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).Add(w.End)
}

// Strategy is a trading decision state machine. The same implementation runs
// live or simulated; it only ever sees its account and environment handles.
//
// A strategy starts running and stays running until its logic has run its
// course; the harness stops dispatching updates once IsRunning reports
// false. OnNewInfo is called once per candle or order update, with exactly
// one of candle/order non-nil, and moment is to be used in place of wall
// time everywhere.
type Strategy interface {
	ID() string
	Symbols() []string
	Run() *Run
	ActiveWindow() Window

	// ScoreSymbols removes failing symbols and maps the survivors to scores.
	// The harness polls it until the strategy becomes viable.
	ScoreSymbols() map[string]float64
	MarkViable()

	OnNewInfo(symbol string, moment time.Time, candle *model.Candle, order *model.Order)

	IsRunning() bool
	StopRunning()
}

// MaxPurchase returns the dollar cap the strategy may spend on one position,
// honoring the per-strategy settings and the account balance.
func MaxPurchase(e *env.ExecEnv, strategyID string, balance, fallback float64) float64 {
	limit := fallback
	if raw := e.Setting("strategy." + strategyID + ".max_purchase_usd"); raw != "" {
		if usd, err := strconv.ParseFloat(raw, 64); err == nil && usd > 0 {
			limit = usd
		}
	}
	if raw := e.Setting("strategy." + strategyID + ".max_purchase_pct"); raw != "" {
		if pct, err := strconv.ParseFloat(raw, 64); err == nil && pct > 0 && balance > 0 {
			if byBalance := balance * pct / 100; byBalance < limit {
				limit = byBalance
			}
		}
	}
	return limit
}
