package harness

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/env"
	"main/internal/store"
)

// CopyWarmup copies `days` market days of history ending at endDay from the
// live environment's price store into the simulation environment's, so a
// backtest works from exactly the data live trading saw. Days failing the
// store's validity checks abort the copy; simulating on holey data produces
// misleading fills.
func CopyWarmup(liveEnv, simEnv *env.ExecEnv, symbols []string, days int, endDay time.Time) error {
	day := endDay
	for i := 0; i < days; i++ {
		day = liveEnv.Clock().PrevMarketDay(day)
	}

	for i := 0; i < days+1; i++ {
		for _, symbol := range symbols {
			sd, err := liveEnv.PriceStore().LoadDay(symbol, day)
			if err != nil {
				return errors.Errorf("no data for %s on %s", symbol, day.Format("2006-01-02"))
			}
			if !store.ValidDay(sd) {
				return errors.Errorf("invalid data for %s on %s", symbol, day.Format("2006-01-02"))
			}
			if err := simEnv.PriceStore().SaveDay(sd); err != nil {
				return errors.Wrap(err, "copy day into simulation store")
			}
		}
		day = liveEnv.Clock().NextMarketDay(day)
	}
	return nil
}
