package ops

import (
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/strategy/longshort"
	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Alpaca    AlpacaConfig      `json:"alpaca"`
	Postgres  PostgresConfig    `json:"postgres"`
	Cache     CacheConfig       `json:"cache"`
	LongShort LongShortConfig   `json:"longShort"`
	Settings  map[string]string `json:"settings"`
	Profiling ProfilingConfig   `json:"profiling"`
}

// AlpacaConfig holds the brokerage credentials. Empty credentials are fine
// for backtests, which never touch the brokerage.
type AlpacaConfig struct {
	KeyID     string `json:"keyId"`
	SecretKey string `json:"secretKey"`
	Paper     bool   `json:"paper"`
}

// PostgresConfig locates the price history database.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// CacheConfig locates the sqlite file holding cached candles, settings, trade
// history and run records.
type CacheConfig struct {
	Path string `json:"path"`
}

// LongShortConfig overrides the pair strategy's tuning. Omitted fields keep
// the strategy defaults.
type LongShortConfig struct {
	IndexSymbol   string  `json:"indexSymbol"`
	BullSymbol    string  `json:"bullSymbol"`
	BearSymbol    string  `json:"bearSymbol"`
	LegSizeUSD    float64 `json:"legSizeUsd"`
	KillswitchPct float64 `json:"killswitchPct"`
	DumpWindowMin int     `json:"dumpWindowMinutes"`
}

// ProfilingConfig enables continuous profiling against a pyroscope server.
type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Alpaca    AlpacaConfig
	Postgres  conn.Option
	CachePath string
	LongShort longshort.Config
	Settings  map[string]string
	Profiling ProfilingConfig
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config")
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	database := cfg.Postgres.Database
	if database == "" {
		database = "trader"
	}

	cachePath := cfg.Cache.Path
	if cachePath == "" {
		cachePath = "trader_cache.db"
	}

	ls := longshort.Config{
		IndexSymbol:   cfg.LongShort.IndexSymbol,
		BullSymbol:    cfg.LongShort.BullSymbol,
		BearSymbol:    cfg.LongShort.BearSymbol,
		LegSizeUSD:    cfg.LongShort.LegSizeUSD,
		KillswitchPct: cfg.LongShort.KillswitchPct,
		DumpWindow:    time.Duration(cfg.LongShort.DumpWindowMin) * time.Minute,
	}

	if cfg.Profiling.Enabled && cfg.Profiling.ServerAddress == "" {
		return Loaded{}, errors.New("profiling enabled without a server address")
	}

	return Loaded{
		Alpaca: cfg.Alpaca,
		Postgres: conn.Option{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: database,
			SSLMode:  cfg.Postgres.SSLMode,
		},
		CachePath: cachePath,
		LongShort: ls,
		Settings:  cfg.Settings,
		Profiling: cfg.Profiling,
	}, nil
}
