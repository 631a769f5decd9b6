package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
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
	"main/internal/stream"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	paper := flag.Bool("paper", false, "trade against the paper endpoint regardless of config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config, err: %+v", err)
	}
	if *paper {
		cfg.Alpaca.Paper = true
	}
	if cfg.Alpaca.KeyID == "" || cfg.Alpaca.SecretKey == "" {
		logs.Fatal("brokerage credentials are required for live trading")
	}

	if cfg.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("start profiler, err: %+v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	pg, err := conn.New(cfg.Postgres)
	if err != nil {
		logs.Fatalf("connect postgres, err: %+v", err)
	}
	defer pg.Close()

	clk := clock.New(time.Now(), clock.NewTradingCalendar())
	client := broker.NewClient(&http.Client{}, cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey, cfg.Alpaca.Paper)

	liveEnv, err := env.New(enum.EnvTypeLive, clk, broker.NewCollector(client),
		env.NewSettings(cfg.Settings), env.NewShared(), store.NewFactory(pg, cfg.CachePath))
	if err != nil {
		logs.Fatalf("set up live environment, err: %+v", err)
	}

	feed := stream.NewFeed(stream.RetentionWindow)
	acct := account.NewLiveAccount(ctx, liveEnv, client, feed)
	defer acct.Shutdown()
	strat := longshort.New(liveEnv, acct, cfg.LongShort)

	bs := broker.NewStream(ctx, feed, cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey)
	if err := bs.Start(ctx, strat.Symbols()); err != nil {
		logs.Fatalf("start brokerage stream, err: %+v", err)
	}
	defer bs.Close()
	unsubscribe := bs.Observe(ctx)
	defer unsubscribe()

	waitForOpen(ctx, clk)
	if ctx.Err() != nil {
		return
	}

	if len(strat.ScoreSymbols()) == 0 {
		logs.Warnf("%s is not viable on %v today, exiting", strat.ID(), strat.Symbols())
		return
	}
	strat.MarkViable()

	logs.Infof("running %s on %v", strat.ID(), strat.Symbols())
	run := harness.NewLiveRunner(liveEnv, acct, strat).Execute(ctx)
	logs.Infof("finished: %s", harness.NewEvaluation([]*strategy.Run{run}))
}

// waitForOpen sleeps in short intervals until the next session opens, so an
// interrupt is never more than a minute away from being honored.
func waitForOpen(ctx context.Context, clk *clock.Clock) {
	for !clk.IsOpen() {
		wait := clk.UntilOpen(clk.Now())
		if wait > time.Minute {
			wait = time.Minute
		}
		logs.Infof("markets closed, next open in %s", clk.UntilOpen(clk.Now()).Round(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
