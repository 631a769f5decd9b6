package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	_ "modernc.org/sqlite"

	"main/internal/model"
	"main/internal/model/enum"
)

// SqliteCacheStore keeps per-symbol cached candles, settings, analysis
// outputs, trade history and run history in a local sqlite file. Every table
// is prefixed by environment type.
type SqliteCacheStore struct {
	db      *sql.DB
	envType enum.EnvType
}

// OpenSqliteCacheStore opens the cache database and creates any missing
// tables for the env type.
func OpenSqliteCacheStore(path string, envType enum.EnvType) (*SqliteCacheStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open cache db")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping cache db")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, errors.Wrap(err, "set wal mode")
	}
	s := &SqliteCacheStore{db: db, envType: envType}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SqliteCacheStore) table(name string) string {
	return fmt.Sprintf("%s_%s", s.envType, name)
}

func (s *SqliteCacheStore) createTables() error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT, moment INTEGER,
			open REAL, high REAL, low REAL, close REAL, volume INTEGER,
			PRIMARY KEY (symbol, moment)
		);`, s.table("cached_candles")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY, value TEXT
		);`, s.table("settings")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			strategy_id TEXT, recorded_at INTEGER, payload TEXT
		);`, s.table("runs")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT, payload TEXT
		);`, s.table("trades")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT, day TEXT, counter INTEGER,
			PRIMARY KEY (symbol, day)
		);`, s.table("collection_difficulty")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT, model TEXT, payload TEXT,
			PRIMARY KEY (symbol, model)
		);`, s.table("model_outputs")),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "create cache tables")
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SqliteCacheStore) Close() error {
	return s.db.Close()
}

func (s *SqliteCacheStore) CacheCandle(symbol string, c model.Candle) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT OR REPLACE INTO %s
			(symbol, moment, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table("cached_candles")),
		symbol, c.Moment.UnixNano(), c.Open, c.High, c.Low, c.Close, c.Volume)
	return errors.Wrap(err, "cache candle")
}

func (s *SqliteCacheStore) CachedCandles(symbol string, day time.Time) ([]model.Candle, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT moment, open, high, low, close, volume FROM %s
			WHERE symbol = ? AND moment >= ? AND moment < ?
			ORDER BY moment ASC`, s.table("cached_candles")),
		symbol, dayStart.UnixNano(), dayEnd.UnixNano())
	if err != nil {
		return nil, errors.Wrap(err, "query cached candles")
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		var moment int64
		if err := rows.Scan(&moment, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.Wrap(err, "scan cached candle")
		}
		c.Moment = time.Unix(0, moment)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SqliteCacheStore) TrimCachedCandles(symbol string, oldest time.Time) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE symbol = ? AND moment < ?`, s.table("cached_candles")),
		symbol, oldest.UnixNano())
	return errors.Wrap(err, "trim cached candles")
}

func (s *SqliteCacheStore) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, s.table("settings")), key).
		Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, errors.Wrap(err, "get setting")
}

func (s *SqliteCacheStore) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)`, s.table("settings")),
		key, value)
	return errors.Wrap(err, "set setting")
}

func (s *SqliteCacheStore) RecordRun(strategyID string, payload []byte) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (strategy_id, recorded_at, payload) VALUES (?, ?, ?)`, s.table("runs")),
		strategyID, time.Now().UnixNano(), string(payload))
	return errors.Wrap(err, "record run")
}

func (s *SqliteCacheStore) RunHistory(strategyID string) ([][]byte, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT payload FROM %s WHERE strategy_id = ? ORDER BY recorded_at ASC`, s.table("runs")),
		strategyID)
	if err != nil {
		return nil, errors.Wrap(err, "query run history")
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan run payload")
		}
		out = append(out, []byte(payload))
	}
	return out, rows.Err()
}

func (s *SqliteCacheStore) RecordTrade(t model.RoundTripTrade) error {
	payload, err := sonic.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode trade")
	}
	_, err = s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (symbol, payload) VALUES (?, ?)`, s.table("trades")),
		t.Symbol, string(payload))
	return errors.Wrap(err, "record trade")
}

func (s *SqliteCacheStore) TradeHistory(symbol string) ([]model.RoundTripTrade, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT payload FROM %s WHERE symbol = ?`, s.table("trades")), symbol)
	if err != nil {
		return nil, errors.Wrap(err, "query trade history")
	}
	defer rows.Close()

	var out []model.RoundTripTrade
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan trade payload")
		}
		var t model.RoundTripTrade
		if err := sonic.Unmarshal([]byte(payload), &t); err != nil {
			return nil, errors.Wrap(err, "decode trade")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SqliteCacheStore) IncrCollectionDifficulty(symbol string, day time.Time) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (symbol, day, counter) VALUES (?, ?, 1)
			ON CONFLICT(symbol, day) DO UPDATE SET counter = counter + 1`,
			s.table("collection_difficulty")),
		symbol, dayKey(day))
	return errors.Wrap(err, "incr collection difficulty")
}

func (s *SqliteCacheStore) CollectionDifficulty(symbol string, day time.Time) (int64, error) {
	var counter int64
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT counter FROM %s WHERE symbol = ? AND day = ?`,
			s.table("collection_difficulty")),
		symbol, dayKey(day)).Scan(&counter)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return counter, errors.Wrap(err, "get collection difficulty")
}

func (s *SqliteCacheStore) SetModelOutput(symbol, modelID string, payload []byte) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (symbol, model, payload) VALUES (?, ?, ?)`,
			s.table("model_outputs")),
		symbol, modelID, string(payload))
	return errors.Wrap(err, "set model output")
}

func (s *SqliteCacheStore) ModelOutput(symbol, modelID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT payload FROM %s WHERE symbol = ? AND model = ?`,
			s.table("model_outputs")),
		symbol, modelID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get model output")
	}
	return []byte(payload), nil
}

func (s *SqliteCacheStore) Reset() error {
	for _, name := range []string{
		"cached_candles", "settings", "runs", "trades",
		"collection_difficulty", "model_outputs",
	} {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s`, s.table(name))); err != nil {
			return errors.Wrap(err, "reset cache store")
		}
	}
	return nil
}
