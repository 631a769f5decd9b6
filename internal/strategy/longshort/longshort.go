package longshort

import (
	"math"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/env"
	"main/internal/grading"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/strategy"
)

// step is the position along the strategy's logical path.
type step uint8

const (
	// Wait for price data to come in so we know where to place buy orders.
	stepWaitForData step = iota + 1
	// Place slightly low-ball buy orders for both legs.
	stepEnterPair
	// Wait for either leg's buy order to go through.
	stepWaitForSingleBuy
	// Sell the filled leg at a tiny profit, hopefully before the other buy
	// order goes through.
	stepSellFirstAtProfit
	// Wait for the second leg to be bought or the first to be sold,
	// whichever happens first.
	stepWaitForFirstSaleOrSecondBuy
	// Gradually lower sell offers until one goes through or they are
	// unprofitable.
	stepLowerSalesToBaseline
	// Sell the remaining leg for what we bought it, if possible. Otherwise
	// sell at the going rate.
	stepSellAtMinorLoss
)

func (s step) String() string {
	switch s {
	case stepWaitForData:
		return "wait_for_data"
	case stepEnterPair:
		return "enter_pair"
	case stepWaitForSingleBuy:
		return "wait_for_single_buy"
	case stepSellFirstAtProfit:
		return "sell_first_pos_at_profit"
	case stepWaitForFirstSaleOrSecondBuy:
		return "wait_for_first_sale_or_second_buy"
	case stepLowerSalesToBaseline:
		return "lower_sales_to_baseline"
	case stepSellAtMinorLoss:
		return "sell_at_minor_loss"
	default:
		return "unknown"
	}
}

// legState tracks one traded leg. Prices use 0 as "not yet known".
type legState struct {
	symbol        string
	price         float64
	recent        []model.Candle
	buyPlaced     bool
	shares        int64
	buyPrice      float64
	sellPlaced    bool
	initialTarget float64
	adjTarget     float64
	sellPrice     float64
	sold          bool
}

func (l *legState) observe(c model.Candle) {
	l.price = c.Close
	l.recent = append(l.recent, c)
	if len(l.recent) > 5 {
		l.recent = l.recent[len(l.recent)-5:]
	}
}

func (l *legState) lowestLow() float64 {
	low := math.Inf(1)
	for _, c := range l.recent {
		low = math.Min(low, c.Low)
	}
	return low
}

func (l *legState) lowestHigh() float64 {
	high := math.Inf(1)
	for _, c := range l.recent {
		high = math.Min(high, c.High)
	}
	return high
}

func (l *legState) highestLow() float64 {
	low := math.Inf(-1)
	for _, c := range l.recent {
		low = math.Max(low, c.Low)
	}
	return low
}

// LongShort buys a leveraged bull/bear pair and sells each leg at a tiny
// profit. Usable when the underlying index oscillates around a baseline
// instead of trending.
type LongShort struct {
	env    *env.ExecEnv
	acct   account.Account
	scorer *grading.Scorer
	cfg    Config

	run       *strategy.Run
	running   bool
	step      step
	stepStart time.Time

	bull legState
	bear legState
}

// New builds the strategy. Any supplied analysis models gate viability as
// pass/fail checks.
func New(e *env.ExecEnv, acct account.Account, cfg Config, models ...grading.Model) *LongShort {
	cfg = cfg.withDefaults()
	now := e.Clock().Now()
	s := &LongShort{
		env:       e,
		acct:      acct,
		scorer:    grading.NewScorer(nil, models...),
		cfg:       cfg,
		running:   true,
		step:      stepWaitForData,
		stepStart: now,
		bull:      legState{symbol: cfg.BullSymbol},
		bear:      legState{symbol: cfg.BearSymbol},
	}
	s.run = strategy.NewRun(s.Symbols(), now)
	return s
}

func (s *LongShort) ID() string {
	return "long_short"
}

func (s *LongShort) Symbols() []string {
	return []string{s.cfg.IndexSymbol, s.cfg.BullSymbol, s.cfg.BearSymbol}
}

func (s *LongShort) Run() *strategy.Run {
	return s.run
}

func (s *LongShort) ActiveWindow() strategy.Window {
	return strategy.Window{Start: s.cfg.ActiveStart, End: s.cfg.ActiveEnd}
}

func (s *LongShort) ScoreSymbols() map[string]float64 {
	return s.scorer.ScoreSymbols(s.env, s.Symbols())
}

func (s *LongShort) MarkViable() {
	s.run.BecameViable = true
}

func (s *LongShort) IsRunning() bool {
	return s.running
}

func (s *LongShort) StopRunning() {
	s.running = false
	s.run.EndTime = s.env.Clock().Now()
}

func (s *LongShort) OnNewInfo(symbol string, moment time.Time, candle *model.Candle, order *model.Order) {
	if symbol != s.bull.symbol && symbol != s.bear.symbol {
		return
	}

	if candle != nil {
		switch symbol {
		case s.bull.symbol:
			s.bull.observe(*candle)
		case s.bear.symbol:
			s.bear.observe(*candle)
		}
	}

	// A step transition lets the next step run within the same update.
	steps := []struct {
		s  step
		fn func(moment time.Time, order *model.Order)
	}{
		{stepWaitForData, s.waitForData},
		{stepEnterPair, s.enterPair},
		{stepWaitForSingleBuy, s.waitForSingleBuy},
		{stepSellFirstAtProfit, s.sellFirstAtProfit},
		{stepWaitForFirstSaleOrSecondBuy, s.waitForFirstSaleOrSecondBuy},
		{stepLowerSalesToBaseline, s.lowerSalesToBaseline},
		{stepSellAtMinorLoss, s.sellAtMinorLoss},
	}
	for _, st := range steps {
		if s.step == st.s && s.running {
			st.fn(moment, order)
		}
	}
}

// STEP 1: wait to buy until we have the latest prices.
func (s *LongShort) waitForData(_ time.Time, _ *model.Order) {
	if s.bull.price == 0 || len(s.bull.recent) <= 3 || s.bear.price == 0 || len(s.bear.recent) <= 3 {
		logs.Info("waiting for more price data on the pair")
		return
	}
	s.nextStep(stepEnterPair)
}

// STEP 2: place slightly low-ball buy orders for both legs, so we enter
// with a good chance of getting out at a profit.
func (s *LongShort) enterPair(_ time.Time, _ *model.Order) {
	if s.bear.buyPlaced && s.bull.buyPlaced {
		s.nextStep(stepWaitForSingleBuy)
	}

	legUSD := strategy.MaxPurchase(s.env, s.ID(), s.acct.Balance(), s.cfg.LegSizeUSD)

	if !s.bear.buyPlaced {
		// The bear-leg order sits at the recent low, it usually takes
		// minutes to go through.
		target := s.bear.lowestLow() + 0.01
		if target >= s.bear.lowestHigh()-0.01 {
			target -= 0.01
		}
		s.bear.shares = int64(legUSD / target)
		if !s.acct.PlaceLimitBuy(s.bear.symbol, target, s.bear.shares) {
			logs.Warn("ending after buy order failed")
			s.StopRunning()
			return
		}
		logs.Infof("buying %s at $%.2f", s.bear.symbol, target)
		s.bear.buyPlaced = true
	}

	if !s.bull.buyPlaced {
		// The bull-leg order sits just below the current price, it usually
		// goes through quickly.
		target := s.bull.price - math.Max(0.01, s.bull.price*(s.cfg.BuyDipPct/100))
		if low := s.bull.lowestLow(); target <= low+0.02 {
			target += (low + 0.02 - target) / 2
		}
		s.bull.shares = int64(legUSD / target)
		if !s.acct.PlaceLimitBuy(s.bull.symbol, target, s.bull.shares) {
			logs.Warn("ending after buy order failed")
			s.StopRunning()
			return
		}
		logs.Infof("buying %s at $%.2f", s.bull.symbol, target)
		s.bull.buyPlaced = true
	}
}

// STEP 3: wait for either leg's buy order to go through, so one position
// can profit without waiting for both fills.
func (s *LongShort) waitForSingleBuy(_ time.Time, order *model.Order) {
	if s.timeThisStep() > s.cfg.InitialBuyWait {
		s.acct.CancelOpenOrders(s.Symbols())
		s.acct.LiquidatePositions(s.Symbols())
		logs.Info("stopping because neither buy order got filled")
		s.StopRunning()
		return
	}

	if s.checkForPurchases(order) {
		s.nextStep(stepSellFirstAtProfit)
	}
}

// STEP 4: sell the filled position at a tiny profit, possibly getting out
// before the other leg is entered at all.
func (s *LongShort) sellFirstAtProfit(_ time.Time, _ *model.Order) {
	// Move on at the first update after placing the sell order.
	if s.bull.sellPlaced || s.bear.sellPlaced {
		s.nextStep(stepWaitForFirstSaleOrSecondBuy)
		return
	}

	if s.bear.buyPrice > 0 && !s.bear.sellPlaced {
		s.bear.initialTarget = s.bear.buyPrice + 0.01
		if !s.acct.PlaceLimitSell(s.bear.symbol, s.bear.initialTarget, s.bear.shares) {
			logs.Warn("ending after sell order failed")
			s.StopRunning()
			return
		}
		logs.Infof("placed initial %s sell order for $%.2f (1 cent profit)", s.bear.symbol, s.bear.initialTarget)
		s.bear.sellPlaced = true
	}

	if s.bull.buyPrice > 0 && !s.bull.sellPlaced {
		s.bull.initialTarget = s.bull.buyPrice +
			math.Max(0.01, s.bull.price*(s.cfg.InitialProfitTargetPct/100))
		if !s.acct.PlaceLimitSell(s.bull.symbol, s.bull.initialTarget, s.bull.shares) {
			logs.Warn("ending after sell order failed")
			s.StopRunning()
			return
		}
		logs.Infof("placed initial %s sell order for $%.2f (%.2f%% profit)",
			s.bull.symbol, s.bull.initialTarget, s.cfg.InitialProfitTargetPct)
		s.bull.sellPlaced = true
	}

	// The bull leg is more volatile; lower its buy offer to capture its
	// profits while waiting for the bear leg to sell.
	if s.bear.buyPrice > 0 && s.bull.buyPrice == 0 {
		target := s.bull.price - math.Max(0.01, s.bull.price*(s.cfg.BuyDipPct/2/100))
		if !s.acct.PlaceLimitBuy(s.bull.symbol, target, s.bull.shares) {
			logs.Warn("ending after buy order failed")
			s.StopRunning()
			return
		}
		logs.Infof("lowering %s buy offer to $%.2f", s.bull.symbol, target)
		s.bull.buyPlaced = true
	}
}

// STEP 5: wait for the second leg to be bought or the first to be sold. A
// profitable position is captured; a declining one opens the possibility of
// profiting from the other leg.
func (s *LongShort) waitForFirstSaleOrSecondBuy(_ time.Time, order *model.Order) {
	if s.timeThisStep() > s.cfg.FirstBuyOrSecondSaleWait {
		s.nextStep(stepLowerSalesToBaseline)
		return
	}

	if s.checkAndRunKillswitch() {
		return
	}

	if s.checkForPurchases(order) {
		s.nextStep(stepLowerSalesToBaseline)
		return
	}

	if s.checkForSales(order) {
		sold := s.bull.symbol
		if s.bear.sold {
			sold = s.bear.symbol
		}
		logs.Infof("ending strategy after selling %s at a profit", sold)
		s.acct.CancelOpenOrders(s.Symbols())
		s.acct.LiquidatePositions(s.Symbols())
		s.StopRunning()
	}
}

// STEP 6: gradually lower sell offers until one goes through, giving greedy
// and reasonable offers alike time to stand before conceding.
func (s *LongShort) lowerSalesToBaseline(_ time.Time, order *model.Order) {
	if s.timeThisStep() >= s.cfg.NegotiationTime {
		s.cancelRemainingBuy()
		s.nextStep(stepSellAtMinorLoss)
		return
	}

	s.checkForPurchases(order)

	if s.bear.buyPrice > 0 && s.bear.initialTarget == 0 {
		s.bear.initialTarget = s.bear.buyPrice + 0.01
	}
	if s.bull.buyPrice > 0 && s.bull.initialTarget == 0 {
		s.bull.initialTarget = s.bull.buyPrice + 0.01 + (s.cfg.MaxProfitTargetPct/100)*s.bull.buyPrice
	}

	if s.checkForSales(order) {
		s.cancelRemainingBuy()
		s.nextStep(stepSellAtMinorLoss)
		return
	}

	if s.checkAndRunKillswitch() {
		return
	}

	// As time passes the offer fraction shrinks toward break-even.
	offerPct := float64(s.cfg.NegotiationTime-s.timeThisStep()) / float64(s.cfg.NegotiationTime)

	if s.bull.buyPrice > 0 && !s.bull.sold {
		profit := offerPct * (s.bull.initialTarget - s.bull.buyPrice)
		next := s.bull.buyPrice + 0.01 + profit
		if s.bull.adjTarget == 0 || s.bull.adjTarget-next >= 0.01 {
			s.bull.adjTarget = next
			s.acct.PlaceLimitSell(s.bull.symbol, s.bull.adjTarget, s.bull.shares)
			logs.Infof("adjusted %s offer to $%.2f", s.bull.symbol, s.bull.adjTarget)
		}
	}

	if s.bear.buyPrice > 0 && !s.bear.sold {
		next := s.bear.buyPrice
		if offerPct >= 0.5 {
			next += 0.01
		}
		if s.bear.adjTarget == 0 || s.bear.adjTarget-next >= 0.01 {
			s.bear.adjTarget = next
			s.acct.PlaceLimitSell(s.bear.symbol, s.bear.adjTarget, s.bear.shares)
			logs.Infof("adjusted %s offer to $%.2f", s.bear.symbol, s.bear.adjTarget)
		}
	}
}

// STEP 7: sell the remaining position for what we bought it if possible,
// otherwise at the going rate, minimizing loss on the second leg.
func (s *LongShort) sellAtMinorLoss(_ time.Time, order *model.Order) {
	previouslyHeld := s.bull.symbol
	if s.bull.sold {
		previouslyHeld = s.bear.symbol
	}

	if s.checkForSales(order) {
		if previouslyHeld == s.bull.symbol && (s.bear.buyPrice == 0 || s.bear.sold) {
			s.StopRunning()
			return
		}
		if previouslyHeld == s.bear.symbol && (s.bull.buyPrice == 0 || s.bull.sold) {
			s.StopRunning()
			return
		}
	}

	if s.checkAndRunKillswitch() {
		return
	}

	if s.bull.buyPrice > 0 && !s.bull.sold {
		realLow := s.bull.highestLow()
		next := math.Min((realLow+s.bull.price)/2, (s.bull.buyPrice+s.bull.price)/2)

		// Stay slightly optimistic while the price hovers near our cost.
		if s.timeThisStep() < s.cfg.FinalOptimismTime &&
			s.bull.buyPrice*((1-0.06)/100) <= realLow {
			next = s.bull.buyPrice + 0.03
		}

		if s.bull.adjTarget == 0 || s.bull.adjTarget-next >= 0.01 {
			s.bull.adjTarget = next
			s.acct.PlaceLimitSell(s.bull.symbol, s.bull.adjTarget, s.bull.shares)
			logs.Infof("adjusted %s offer to $%.2f", s.bull.symbol, s.bull.adjTarget)
		}
	}

	if s.bear.buyPrice > 0 && !s.bear.sold {
		realLow := s.bear.highestLow()
		next := math.Min(realLow, s.bear.buyPrice)

		if s.timeThisStep() < s.cfg.FinalOptimismTime &&
			s.bear.buyPrice <= realLow+0.01 {
			next = s.bear.buyPrice
		}

		if s.bear.adjTarget == 0 || s.bear.adjTarget-next >= 0.01 {
			s.bear.adjTarget = next
			s.acct.PlaceLimitSell(s.bear.symbol, s.bear.adjTarget, s.bear.shares)
			logs.Infof("adjusted %s offer to $%.2f", s.bear.symbol, s.bear.adjTarget)
		}
	}
}

// checkForPurchases folds a filled buy order into the legs and the run
// record.
func (s *LongShort) checkForPurchases(order *model.Order) bool {
	if order == nil || order.Type != enum.OrderTypeLimitBuy || order.Status != enum.OrderStatusFilled {
		return false
	}
	for _, leg := range []*legState{&s.bull, &s.bear} {
		if order.Symbol != leg.symbol {
			continue
		}
		leg.buyPrice = order.Price
		s.run.RecordPurchase(leg.symbol, order.Price, order.Qty, order.Moment)
		logs.Infof("%s was bought for $%.2f", leg.symbol, order.Price)
		return true
	}
	return false
}

// checkForSales folds a filled sell order into the legs and the run record.
func (s *LongShort) checkForSales(order *model.Order) bool {
	if order == nil || order.Type != enum.OrderTypeLimitSell || order.Status != enum.OrderStatusFilled {
		return false
	}
	for _, leg := range []*legState{&s.bull, &s.bear} {
		if order.Symbol != leg.symbol {
			continue
		}
		leg.sellPrice = order.Price
		leg.sold = true
		s.run.RecordSale(leg.symbol, order.Price, order.Qty, order.Moment)
		logs.Infof("%s was sold for $%.2f", leg.symbol, order.Price)
		return true
	}
	return false
}

// checkAndRunKillswitch dumps a leg whose price declined too far, or any leg
// when market close is near.
func (s *LongShort) checkAndRunKillswitch() bool {
	activated := func(buyPrice, latest float64) bool {
		pctLoss := (buyPrice - latest) / buyPrice * 100
		return pctLoss >= s.cfg.KillswitchPct ||
			s.env.Clock().UntilClose(s.env.Clock().Now()) < s.cfg.DumpWindow
	}

	for _, leg := range []*legState{&s.bull, &s.bear} {
		if leg.buyPrice > 0 && !leg.sold && activated(leg.buyPrice, leg.price) {
			sellPrice := leg.price - math.Max(0.01, leg.price*0.01)
			logs.Infof("killswitch activated on %s, selling at $%.2f", leg.symbol, sellPrice)
			s.acct.PlaceLimitSell(leg.symbol, sellPrice, leg.shares)
			return true
		}
	}
	return false
}

// cancelRemainingBuy makes sure no more positions are entered once the
// strategy starts conceding.
func (s *LongShort) cancelRemainingBuy() {
	if s.bull.buyPrice == 0 {
		logs.Infof("canceling remaining buy order for %s", s.bull.symbol)
		s.acct.CancelOpenOrders([]string{s.bull.symbol})
	} else if s.bear.buyPrice == 0 {
		logs.Infof("canceling remaining buy order for %s", s.bear.symbol)
		s.acct.CancelOpenOrders([]string{s.bear.symbol})
	}
}

func (s *LongShort) timeThisStep() time.Duration {
	return s.env.Clock().Now().Sub(s.stepStart)
}

func (s *LongShort) nextStep(next step) {
	logs.Infof("moving to step: %s", next)
	s.step = next
	s.stepStart = s.env.Clock().Now()
}
