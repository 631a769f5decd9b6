package harness

import (
	"fmt"
	"math"
	"sort"

	"main/internal/strategy"
)

// Evaluation aggregates the run records simulated for one historical day.
// Successive days fold in with Combine, oldest first, so a multi-day
// backtest ends with one cumulative report.
type Evaluation struct {
	DaysEvaluated int
	DaysEntered   int
	DaysViable    int
	Attempts      int

	// AvgProfit and MedianProfit are fractional gains per round trip.
	AvgProfit    float64
	MedianProfit float64
	// NetProfit is the summed fractional gain across all round trips.
	NetProfit       float64
	DailyRoundTrips float64
	// EntryRatio is round trips completed per entry attempt.
	EntryRatio float64
	// WinRatio is winning trades per losing trade.
	WinRatio float64

	profits []float64
}

// NewEvaluation grades a day's worth of run attempts. Runs that never
// entered a position count as attempts with no profit samples.
func NewEvaluation(attempts []*strategy.Run) *Evaluation {
	e := &Evaluation{DaysEvaluated: 1, Attempts: len(attempts)}
	for _, run := range attempts {
		if run == nil {
			continue
		}
		if run.BecameViable {
			e.DaysViable = 1
		}
		e.profits = append(e.profits, runProfits(run)...)
	}
	if len(e.profits) > 0 {
		e.DaysEntered = 1
	}
	e.calculate()
	return e
}

// Combine folds the next day's evaluation into this one.
func (e *Evaluation) Combine(next *Evaluation) {
	e.DaysEvaluated++
	if len(next.profits) > 0 {
		e.DaysEntered++
	}
	e.DaysViable += next.DaysViable
	e.Attempts += next.Attempts
	e.profits = append(e.profits, next.profits...)
	e.calculate()
}

func (e *Evaluation) calculate() {
	wins, losses := 0, 0
	total := 0.0
	for _, p := range e.profits {
		total += p
		if p > 0 {
			wins++
		} else {
			losses++
		}
	}

	e.NetProfit = total
	e.AvgProfit = total / math.Max(1, float64(len(e.profits)))
	e.MedianProfit = median(e.profits)
	e.DailyRoundTrips = float64(len(e.profits)) / float64(e.DaysEvaluated)
	e.EntryRatio = float64(len(e.profits)) / math.Max(1, float64(e.Attempts))
	e.WinRatio = float64(wins) / math.Max(1, float64(losses))
}

func (e *Evaluation) String() string {
	return fmt.Sprintf(
		"days=%d viable=%d entered=%d trades=%d avg=%.3f%% median=%.3f%% net=%.3f%% entry_ratio=%.2f win_ratio=%.2f",
		e.DaysEvaluated, e.DaysViable, e.DaysEntered, len(e.profits),
		e.AvgProfit*100, e.MedianProfit*100, e.NetProfit*100,
		e.EntryRatio, e.WinRatio)
}

// runProfits extracts the fractional gain of each completed round trip in
// the run record. Buys without a matching sale contribute nothing.
func runProfits(run *strategy.Run) []float64 {
	var out []float64
	for _, sr := range run.SymbolRuns {
		n := min(len(sr.BuyPrices), len(sr.SellPrices))
		for i := 0; i < n; i++ {
			if sr.BuyPrices[i] == 0 {
				continue
			}
			out = append(out, (sr.SellPrices[i]-sr.BuyPrices[i])/sr.BuyPrices[i])
		}
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
