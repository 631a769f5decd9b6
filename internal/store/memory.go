package store

import (
	"sort"
	"sync"
	"time"

	"main/internal/clock"
	"main/internal/model"
	"main/internal/model/enum"
)

// MemoryFactory hands out store handles backed by shared in-memory state, one
// backing store per env type. Simulations and tests use it in place of the
// database-backed factories.
type MemoryFactory struct {
	mu     sync.Mutex
	prices map[enum.EnvType]*MemoryPriceStore
	caches map[enum.EnvType]*MemoryCacheStore
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		prices: make(map[enum.EnvType]*MemoryPriceStore),
		caches: make(map[enum.EnvType]*MemoryCacheStore),
	}
}

func (f *MemoryFactory) NewPriceStore(t enum.EnvType) (PriceStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices[t] == nil {
		f.prices[t] = NewMemoryPriceStore()
	}
	return f.prices[t], nil
}

func (f *MemoryFactory) NewCacheStore(t enum.EnvType) (CacheStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.caches[t] == nil {
		f.caches[t] = NewMemoryCacheStore()
	}
	return f.caches[t], nil
}

// MemoryPriceStore is an in-memory PriceStore. Simulations use it as a
// scratch namespace that can be reset between runs; tests use it directly.
type MemoryPriceStore struct {
	mu   sync.RWMutex
	days map[string]map[string]*model.SymbolDay
}

func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{days: make(map[string]map[string]*model.SymbolDay)}
}

func (s *MemoryPriceStore) LoadDay(symbol string, day time.Time) (*model.SymbolDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sd, ok := s.days[symbol][dayKey(day)]
	if !ok {
		return nil, ErrNoData
	}
	cp := *sd
	cp.Candles = append([]model.Candle(nil), sd.Candles...)
	return &cp, nil
}

func (s *MemoryPriceStore) SaveDay(day *model.SymbolDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.days[day.Symbol] == nil {
		s.days[day.Symbol] = make(map[string]*model.SymbolDay)
	}
	cp := *day
	cp.Candles = append([]model.Candle(nil), day.Candles...)
	s.days[day.Symbol][dayKey(day.Day)] = &cp
	return nil
}

func (s *MemoryPriceStore) DatesOnFile(symbol string, start, end time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for key := range s.days[symbol] {
		if key < dayKey(start) || key > dayKey(end) {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02", key, clock.MarketLocation())
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *MemoryPriceStore) LoadDailyAggregate(symbol string, day time.Time) (*model.DailyCandle, error) {
	sd, err := s.LoadDay(symbol, day)
	if err != nil {
		return nil, err
	}
	agg := sd.Aggregate()
	return &agg, nil
}

func (s *MemoryPriceStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = make(map[string]map[string]*model.SymbolDay)
	return nil
}

// MemoryCacheStore is an in-memory CacheStore.
type MemoryCacheStore struct {
	mu         sync.RWMutex
	candles    map[string][]model.Candle
	settings   map[string]string
	runs       map[string][][]byte
	trades     map[string][]model.RoundTripTrade
	difficulty map[string]int64
	outputs    map[string][]byte
}

func NewMemoryCacheStore() *MemoryCacheStore {
	s := &MemoryCacheStore{}
	s.reset()
	return s
}

func (s *MemoryCacheStore) reset() {
	s.candles = make(map[string][]model.Candle)
	s.settings = make(map[string]string)
	s.runs = make(map[string][][]byte)
	s.trades = make(map[string][]model.RoundTripTrade)
	s.difficulty = make(map[string]int64)
	s.outputs = make(map[string][]byte)
}

func (s *MemoryCacheStore) CacheCandle(symbol string, c model.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol] = append(s.candles[symbol], c)
	return nil
}

func (s *MemoryCacheStore) CachedCandles(symbol string, day time.Time) ([]model.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	var out []model.Candle
	for _, c := range s.candles[symbol] {
		if !c.Moment.Before(dayStart) && c.Moment.Before(dayEnd) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Moment.Before(out[j].Moment) })
	return out, nil
}

func (s *MemoryCacheStore) TrimCachedCandles(symbol string, oldest time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.candles[symbol][:0]
	for _, c := range s.candles[symbol] {
		if !c.Moment.Before(oldest) {
			keep = append(keep, c)
		}
	}
	s.candles[symbol] = keep
	return nil
}

func (s *MemoryCacheStore) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

func (s *MemoryCacheStore) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *MemoryCacheStore) RecordRun(strategyID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[strategyID] = append(s.runs[strategyID], append([]byte(nil), payload...))
	return nil
}

func (s *MemoryCacheStore) RunHistory(strategyID string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([][]byte(nil), s.runs[strategyID]...), nil
}

func (s *MemoryCacheStore) RecordTrade(t model.RoundTripTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[t.Symbol] = append(s.trades[t.Symbol], t)
	return nil
}

func (s *MemoryCacheStore) TradeHistory(symbol string) ([]model.RoundTripTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.RoundTripTrade(nil), s.trades[symbol]...), nil
}

func (s *MemoryCacheStore) IncrCollectionDifficulty(symbol string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.difficulty[symbol+"|"+dayKey(day)]++
	return nil
}

func (s *MemoryCacheStore) CollectionDifficulty(symbol string, day time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.difficulty[symbol+"|"+dayKey(day)], nil
}

func (s *MemoryCacheStore) SetModelOutput(symbol, modelID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[symbol+"|"+modelID] = append([]byte(nil), payload...)
	return nil
}

func (s *MemoryCacheStore) ModelOutput(symbol, modelID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputs[symbol+"|"+modelID], nil
}

func (s *MemoryCacheStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
