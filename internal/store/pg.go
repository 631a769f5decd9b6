package store

import (
	"fmt"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/clock"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/conn"
)

// candleRow is the postgres layout of a single stored candle.
type candleRow struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"index:idx_symbol_day"`
	Day    string `gorm:"index:idx_symbol_day"`
	Moment time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// PgPriceStore stores symbol-days in postgres, one table per environment
// type so live and simulated data can never mix.
type PgPriceStore struct {
	client  *conn.Client
	envType enum.EnvType
}

// NewPgPriceStore opens (and migrates) the candle table for the env type.
func NewPgPriceStore(client *conn.Client, envType enum.EnvType) (*PgPriceStore, error) {
	s := &PgPriceStore{client: client, envType: envType}
	if err := client.DB().Table(s.table()).AutoMigrate(&candleRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate candle table")
	}
	return s, nil
}

func (s *PgPriceStore) table() string {
	return fmt.Sprintf("%s_candles", s.envType)
}

func (s *PgPriceStore) LoadDay(symbol string, day time.Time) (*model.SymbolDay, error) {
	var rows []candleRow
	err := s.client.DB().Table(s.table()).
		Where("symbol = ? AND day = ?", symbol, dayKey(day)).
		Order("moment asc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load symbol day")
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	out := &model.SymbolDay{Symbol: symbol, Day: day}
	for _, r := range rows {
		out.Candles = append(out.Candles, model.Candle{
			Moment: r.Moment,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return out, nil
}

func (s *PgPriceStore) SaveDay(day *model.SymbolDay) error {
	rows := make([]candleRow, 0, len(day.Candles))
	for _, c := range day.Candles {
		rows = append(rows, candleRow{
			Symbol: day.Symbol,
			Day:    dayKey(day.Day),
			Moment: c.Moment,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return s.client.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.table()).
			Where("symbol = ? AND day = ?", day.Symbol, dayKey(day.Day)).
			Delete(&candleRow{}).Error; err != nil {
			return errors.Wrap(err, "clear existing day")
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Table(s.table()).CreateInBatches(rows, 500).Error; err != nil {
			return errors.Wrap(err, "insert candles")
		}
		return nil
	})
}

func (s *PgPriceStore) DatesOnFile(symbol string, start, end time.Time) ([]time.Time, error) {
	var keys []string
	err := s.client.DB().Table(s.table()).
		Distinct("day").
		Where("symbol = ? AND day >= ? AND day <= ?", symbol, dayKey(start), dayKey(end)).
		Order("day asc").
		Pluck("day", &keys).Error
	if err != nil {
		return nil, errors.Wrap(err, "list dates on file")
	}
	dates := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		d, err := time.ParseInLocation("2006-01-02", k, clock.MarketLocation())
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *PgPriceStore) LoadDailyAggregate(symbol string, day time.Time) (*model.DailyCandle, error) {
	sd, err := s.LoadDay(symbol, day)
	if err != nil {
		return nil, err
	}
	agg := sd.Aggregate()
	return &agg, nil
}

func (s *PgPriceStore) Reset() error {
	err := s.client.DB().Table(s.table()).Where("1 = 1").Delete(&candleRow{}).Error
	return errors.Wrap(err, "reset price store")
}
