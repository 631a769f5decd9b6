package store

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/clock"
	"main/internal/model"
)

var (
	ErrNoData = errors.New("no data on file")
)

// PriceStore is the system of record for historical candles. Implementations
// must be safe for concurrent access across processes; per-goroutine handle
// discipline is enforced by the execution environment, not here.
type PriceStore interface {
	// LoadDay returns every candle recorded for the symbol on the given
	// date. Returns ErrNoData when the day is not on file.
	LoadDay(symbol string, day time.Time) (*model.SymbolDay, error)
	// SaveDay replaces the stored candles for the symbol-day.
	SaveDay(day *model.SymbolDay) error
	// DatesOnFile lists the dates in [start, end] with stored candles.
	DatesOnFile(symbol string, start, end time.Time) ([]time.Time, error)
	// LoadDailyAggregate collapses a stored day into a single candle.
	LoadDailyAggregate(symbol string, day time.Time) (*model.DailyCandle, error)
	// Reset drops everything stored under this handle's namespace.
	Reset() error
}

// CacheStore holds fast-changing state: today's candles, settings, analysis
// outputs, trade and run history. All operations are namespaced by
// environment type to prevent cross-environment leakage.
type CacheStore interface {
	CacheCandle(symbol string, c model.Candle) error
	CachedCandles(symbol string, day time.Time) ([]model.Candle, error)
	TrimCachedCandles(symbol string, oldest time.Time) error

	GetSetting(key string) (string, error)
	SetSetting(key, value string) error

	// RecordRun appends a serialized run record to the strategy's history.
	RecordRun(strategyID string, payload []byte) error
	RunHistory(strategyID string) ([][]byte, error)

	RecordTrade(t model.RoundTripTrade) error
	TradeHistory(symbol string) ([]model.RoundTripTrade, error)

	// IncrCollectionDifficulty bumps the per-(symbol, day) counter of
	// failed collection attempts.
	IncrCollectionDifficulty(symbol string, day time.Time) error
	CollectionDifficulty(symbol string, day time.Time) (int64, error)

	SetModelOutput(symbol, modelID string, payload []byte) error
	ModelOutput(symbol, modelID string) ([]byte, error)

	Reset() error
}

// dayKey normalizes a date to an exchange-local key, so a moment names the
// same market day no matter what zone the host clock runs in.
func dayKey(day time.Time) string {
	return day.In(clock.MarketLocation()).Format("2006-01-02")
}
