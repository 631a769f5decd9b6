package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/broker"
	"main/internal/clock"
	"main/internal/env"
	"main/internal/harness"
	"main/internal/model/enum"
	"main/internal/ops"
	"main/internal/store"
	"main/internal/strategy"
	"main/internal/strategy/longshort"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	dateStr := flag.String("date", "", "first day to simulate (YYYY-MM-DD, default: previous market day)")
	days := flag.Int("days", 1, "number of market days to simulate")
	warmup := flag.Int("warmup", harness.DefaultWarmupDays, "days of history to prime models with")
	collect := flag.Bool("collect", false, "fetch missing price history from the brokerage first")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config, err: %+v", err)
	}

	pg, err := conn.New(cfg.Postgres)
	if err != nil {
		logs.Fatalf("connect postgres, err: %+v", err)
	}
	defer pg.Close()

	cal := clock.NewTradingCalendar()
	clk := clock.New(time.Now(), cal)

	firstDay, err := resolveDate(clk, cal, *dateStr)
	if err != nil {
		logs.Fatalf("resolve start date, err: %+v", err)
	}

	settings := env.NewSettings(cfg.Settings)
	shared := env.NewShared()
	factory := store.NewFactory(pg, cfg.CachePath)

	var collector env.DataCollector
	if cfg.Alpaca.KeyID != "" && cfg.Alpaca.SecretKey != "" {
		client := broker.NewClient(&http.Client{}, cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey, cfg.Alpaca.Paper)
		collector = broker.NewCollector(client)
	}

	liveEnv, err := env.New(enum.EnvTypeLive, clk, collector, settings, shared, factory)
	if err != nil {
		logs.Fatalf("set up live environment, err: %+v", err)
	}
	simEnv, err := env.New(enum.EnvTypeSimulation, clk, collector, settings, shared, factory)
	if err != nil {
		logs.Fatalf("set up simulation environment, err: %+v", err)
	}

	symbols := longshort.New(simEnv,
		account.NewSimulatedAccount(simEnv, harness.VirtualBalance), cfg.LongShort).Symbols()

	if *collect {
		if collector == nil {
			logs.Fatal("collection requires brokerage credentials")
		}
		collectHistory(ctx, liveEnv, symbols, firstDay, *days, *warmup)
	}

	var eval *harness.Evaluation
	day := firstDay
	for i := 0; i < *days && ctx.Err() == nil; i++ {
		if !clk.IsMarketDay(day) {
			day = clk.NextMarketDay(day)
		}
		clk.SetMoment(cal.OpenAt(day).Add(time.Minute))

		acct := account.NewSimulatedAccount(simEnv, harness.VirtualBalance)
		strat := longshort.New(simEnv, acct, cfg.LongShort)
		run := harness.NewHistoricalSimulator(liveEnv, simEnv, acct, strat, *warmup).Execute(ctx)

		dayEval := harness.NewEvaluation([]*strategy.Run{run})
		logs.Infof("%s: %s", day.Format("2006-01-02"), dayEval)

		if eval == nil {
			eval = dayEval
		} else {
			eval.Combine(dayEval)
		}
		day = clk.NextMarketDay(day)
	}

	if eval != nil {
		logs.Infof("overall: %s", eval)
	}
}

func resolveDate(clk *clock.Clock, cal *clock.TradingCalendar, raw string) (time.Time, error) {
	if raw == "" {
		return clk.PrevMarketDay(time.Now().In(cal.Location())), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, cal.Location())
	if err != nil {
		return time.Time{}, err
	}
	if !clk.IsMarketDay(day) {
		day = clk.NextMarketDay(day)
		logs.Warnf("%s is not a market day, starting at %s", raw, day.Format("2006-01-02"))
	}
	return day, nil
}

// collectHistory fills gaps in the live price store for the days the backtest
// will touch. Failures bump the per-day collection-difficulty counter so
// chronically bad days can be spotted later.
func collectHistory(ctx context.Context, liveEnv *env.ExecEnv, symbols []string,
	firstDay time.Time, days, warmup int) {
	clk := liveEnv.Clock()

	day := firstDay
	for i := 0; i < warmup; i++ {
		day = clk.PrevMarketDay(day)
	}
	last := firstDay
	for i := 1; i < days; i++ {
		last = clk.NextMarketDay(last)
	}

	for !day.After(last) && ctx.Err() == nil {
		for _, symbol := range symbols {
			if _, err := liveEnv.PriceStore().LoadDay(symbol, day); err == nil {
				continue
			}
			sd, err := liveEnv.Collector().CollectDay(symbol, day)
			if err != nil {
				logs.Warnf("collect %s on %s, err: %+v", symbol, day.Format("2006-01-02"), err)
				if err := liveEnv.CacheStore().IncrCollectionDifficulty(symbol, day); err != nil {
					logs.Errorf("bump collection difficulty for %s, err: %+v", symbol, err)
				}
				continue
			}
			if err := liveEnv.PriceStore().SaveDay(sd); err != nil {
				logs.Errorf("save %s on %s, err: %+v", symbol, day.Format("2006-01-02"), err)
			}
		}
		day = clk.NextMarketDay(day)
	}
}
