package longshort

import "time"

// Config tunes the long/short pair strategy. Zero values are replaced by the
// defaults below; none of these numbers is a contract, they are starting
// points for optimization.
type Config struct {
	// IndexSymbol is the underlying index tracked for context.
	IndexSymbol string
	// BullSymbol and BearSymbol are the leveraged pair actually traded.
	BullSymbol string
	BearSymbol string

	// LegSizeUSD is the dollar amount of each leg to trade.
	LegSizeUSD float64
	// BuyDipPct is the percent below current value to place the initial
	// bull-leg buy order.
	BuyDipPct float64
	// InitialProfitTargetPct is the tiny percent profit to quickly target on
	// the bull leg if it fills before the bear leg.
	InitialProfitTargetPct float64
	// MaxProfitTargetPct is the greedy percent profit to target on the bull
	// leg once both legs have been bought.
	MaxProfitTargetPct float64
	// KillswitchPct is the percent loss to tolerate before immediately
	// selling a leg.
	KillswitchPct float64
	// DumpWindow is how long before market close shares are dumped.
	DumpWindow time.Duration

	// InitialBuyWait is the time to wait for the first buy order to fill.
	InitialBuyWait time.Duration
	// FirstBuyOrSecondSaleWait is the time to wait for the second leg to be
	// bought or the first to be sold.
	FirstBuyOrSecondSaleWait time.Duration
	// NegotiationTime is the time spent incrementally lowering sell offers
	// until one goes through.
	NegotiationTime time.Duration
	// FinalOptimismTime is how long to hold a break-even sell order on the
	// remaining leg before letting it go at a loss.
	FinalOptimismTime time.Duration

	// ActiveStart and ActiveEnd bound the time of day (exchange-local,
	// offsets from midnight) when the strategy may run.
	ActiveStart time.Duration
	ActiveEnd   time.Duration
}

// DefaultConfig trades the S&P-500 3x pair during the midday session.
func DefaultConfig() Config {
	return Config{
		IndexSymbol:              "SPY",
		BullSymbol:               "SPXL",
		BearSymbol:               "SPXS",
		LegSizeUSD:               10000,
		BuyDipPct:                0.08,
		InitialProfitTargetPct:   0.06,
		MaxProfitTargetPct:       0.13,
		KillswitchPct:            1.85,
		DumpWindow:               30 * time.Minute,
		InitialBuyWait:           120 * time.Second,
		FirstBuyOrSecondSaleWait: 180 * time.Second,
		NegotiationTime:          140 * time.Second,
		FinalOptimismTime:        180 * time.Second,
		ActiveStart:              10*time.Hour + 30*time.Minute,
		ActiveEnd:                14*time.Hour + 45*time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IndexSymbol == "" {
		c.IndexSymbol = def.IndexSymbol
	}
	if c.BullSymbol == "" {
		c.BullSymbol = def.BullSymbol
	}
	if c.BearSymbol == "" {
		c.BearSymbol = def.BearSymbol
	}
	if c.LegSizeUSD == 0 {
		c.LegSizeUSD = def.LegSizeUSD
	}
	if c.BuyDipPct == 0 {
		c.BuyDipPct = def.BuyDipPct
	}
	if c.InitialProfitTargetPct == 0 {
		c.InitialProfitTargetPct = def.InitialProfitTargetPct
	}
	if c.MaxProfitTargetPct == 0 {
		c.MaxProfitTargetPct = def.MaxProfitTargetPct
	}
	if c.KillswitchPct == 0 {
		c.KillswitchPct = def.KillswitchPct
	}
	if c.DumpWindow == 0 {
		c.DumpWindow = def.DumpWindow
	}
	if c.InitialBuyWait == 0 {
		c.InitialBuyWait = def.InitialBuyWait
	}
	if c.FirstBuyOrSecondSaleWait == 0 {
		c.FirstBuyOrSecondSaleWait = def.FirstBuyOrSecondSaleWait
	}
	if c.NegotiationTime == 0 {
		c.NegotiationTime = def.NegotiationTime
	}
	if c.FinalOptimismTime == 0 {
		c.FinalOptimismTime = def.FinalOptimismTime
	}
	if c.ActiveStart == 0 {
		c.ActiveStart = def.ActiveStart
	}
	if c.ActiveEnd == 0 {
		c.ActiveEnd = def.ActiveEnd
	}
	return c
}
