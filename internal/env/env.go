package env

import (
	"fmt"
	"sort"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/clock"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

// DataCollector fetches candles from an external source. The environment
// owns a handle so strategies and harnesses reach the collector through
// their env rather than a global.
type DataCollector interface {
	CollectDay(symbol string, day time.Time) (*model.SymbolDay, error)
}

// StoreFactory mints store handles for a goroutine. Fork calls it so every
// goroutine works through handles it created itself.
type StoreFactory interface {
	NewPriceStore(t enum.EnvType) (store.PriceStore, error)
	NewCacheStore(t enum.EnvType) (store.CacheStore, error)
}

// ExecEnv bundles everything the decision logic needs to run: a clock, store
// handles, settings, a data collector, and the env type that namespaces all
// persisted data. Each goroutine uses its own ExecEnv per env type.
//
// Store handles belong to the goroutine that created them. Accessing them
// from another goroutine is a programming error and panics; use Fork to give
// a new goroutine its own handles.
type ExecEnv struct {
	envType   enum.EnvType
	clk       *clock.Clock
	collector DataCollector
	settings  *Settings
	shared    *Shared
	factory   StoreFactory

	price store.PriceStore
	cache store.CacheStore
	owner int64
}

// New sets up the env type for the first time. Call once per env type; a
// second setup for the same type panics.
func New(t enum.EnvType, clk *clock.Clock, collector DataCollector,
	settings *Settings, shared *Shared, factory StoreFactory) (*ExecEnv, error) {
	if !t.IsAvailable() {
		return nil, errors.Errorf("unavailable env type (%d)", t)
	}
	shared.register(t)

	e := &ExecEnv{
		envType:   t,
		clk:       clk,
		collector: collector,
		settings:  settings,
		shared:    shared,
		factory:   factory,
		owner:     goid(),
	}
	if err := e.openStores(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ExecEnv) openStores() error {
	price, err := e.factory.NewPriceStore(e.envType)
	if err != nil {
		return errors.Wrap(err, "open price store")
	}
	cache, err := e.factory.NewCacheStore(e.envType)
	if err != nil {
		return errors.Wrap(err, "open cache store")
	}
	e.price, e.cache = price, cache
	return nil
}

func (e *ExecEnv) Type() enum.EnvType {
	return e.envType
}

func (e *ExecEnv) Clock() *clock.Clock {
	return e.clk
}

func (e *ExecEnv) Collector() DataCollector {
	return e.collector
}

// PriceStore returns the goroutine's price store handle. Panics when called
// from a goroutine other than the one that created the handle.
func (e *ExecEnv) PriceStore() store.PriceStore {
	e.checkOwner()
	return e.price
}

// CacheStore returns the goroutine's cache store handle. Panics when called
// from a goroutine other than the one that created the handle.
func (e *ExecEnv) CacheStore() store.CacheStore {
	e.checkOwner()
	return e.cache
}

func (e *ExecEnv) checkOwner() {
	if id := goid(); id != e.owner {
		panic(fmt.Sprintf(
			"goroutine %d tried to use store handles owned by goroutine %d; fork the env instead",
			id, e.owner))
	}
}

// Clone returns an env sharing this one's store handles. Both must stay on
// the owning goroutine; cloning from another goroutine panics.
func (e *ExecEnv) Clone() *ExecEnv {
	e.checkOwner()
	cp := *e
	return &cp
}

// Fork returns an env with fresh store handles owned by the calling
// goroutine. Clock, settings, collector and shared state are reused, so all
// forks observe the same time and the same data-loaded flag.
func (e *ExecEnv) Fork() (*ExecEnv, error) {
	cp := *e
	cp.owner = goid()
	cp.price, cp.cache = nil, nil
	if err := cp.openStores(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Setting returns the value of a program setting, or "" if unset.
func (e *ExecEnv) Setting(key string) string {
	return e.settings.Get(key)
}

// SaveSetting updates the in-memory settings map and persists the value so
// it survives a restart.
func (e *ExecEnv) SaveSetting(key, value string) error {
	e.settings.Set(key, value)
	return e.CacheStore().SetSetting(key, value)
}

// IsDataLoaded reports whether some goroutine on this env type has finished
// loading historical data.
func (e *ExecEnv) IsDataLoaded() bool {
	return e.shared.isDataLoaded(e.envType)
}

// MarkDataLoaded signals historical catch-up completion to every fork of
// this env type.
func (e *ExecEnv) MarkDataLoaded() {
	e.shared.setDataLoaded(e.envType, true)
}

// MarkDataBusy clears the data-loaded flag for every fork of this env type.
func (e *ExecEnv) MarkDataBusy() {
	e.shared.setDataLoaded(e.envType, false)
}

// ResetStores drops everything persisted under this env type.
func (e *ExecEnv) ResetStores() error {
	if err := e.PriceStore().Reset(); err != nil {
		return err
	}
	return e.CacheStore().Reset()
}

// LatestCandles returns the last `minutes` minutes of open-market candles for
// the symbol, in ascending order. The window counts only session minutes:
// asking for 32 minutes at 10:32 reaches back to 10:00 of the same session,
// while asking at the open reaches into the previous market day. Today's
// candles come from the cache in a live env; everything else comes from the
// price store.
func (e *ExecEnv) LatestCandles(symbol string, minutes int) ([]model.Candle, error) {
	now := e.clk.Now().Truncate(time.Second)
	cal := e.clk.Calendar()

	start := now
	for accounted := 0; accounted < minutes; accounted++ {
		start = start.Add(-time.Minute)
		if !e.clk.IsOpenAt(start) {
			prev := e.clk.PrevMarketDay(start)
			start = cal.CloseAt(prev).
				Add(time.Duration(start.Second())*time.Second - time.Minute)
		}
	}
	// Candles stamped exactly at the window start still count.
	cutoff := start.Add(-time.Millisecond)

	var out []model.Candle
	day := e.clk.NextMarketDay(now)
	for {
		day = e.clk.PrevMarketDay(day)
		if dateOf(day).Before(dateOf(start)) {
			break
		}
		candles, err := e.dayCandles(symbol, day, now)
		if err != nil {
			return nil, err
		}
		for _, c := range candles {
			if c.Moment.Before(cutoff) || c.Moment.After(now) {
				continue
			}
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Moment.Before(out[j].Moment) })
	return out, nil
}

func (e *ExecEnv) dayCandles(symbol string, day, now time.Time) ([]model.Candle, error) {
	if e.envType == enum.EnvTypeLive && dateOf(day).Equal(dateOf(now)) {
		return e.CacheStore().CachedCandles(symbol, day)
	}
	sd, err := e.PriceStore().LoadDay(symbol, day)
	if errors.Is(err, store.ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sd.Candles, nil
}

// dateOf truncates a moment to its exchange-local date, matching the store's
// day-key normalization.
func dateOf(t time.Time) time.Time {
	loc := clock.MarketLocation()
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
