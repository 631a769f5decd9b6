package strategy

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// SymbolRun records how one symbol was traded during a strategy run. The
// parallel slices grow together: entry i of TimesBought/BuyPrices describes
// the i-th purchase, and likewise for sales.
type SymbolRun struct {
	Symbol      string      `json:"symbol"`
	TimesBought []time.Time `json:"times_bought"`
	TimesSold   []time.Time `json:"times_sold"`
	QtysTraded  []int64     `json:"qties_traded"`
	BuyPrices   []float64   `json:"buy_prices"`
	SellPrices  []float64   `json:"sell_prices"`
}

// Entered reports whether the symbol was ever bought during the run.
func (r SymbolRun) Entered() bool {
	return len(r.TimesBought) > 0
}

// Run is generated by a strategy over the course of its execution. It makes
// no distinction between live and simulated runs, which is what lets one
// evaluation pipeline grade both.
type Run struct {
	SymbolRuns   []SymbolRun       `json:"symbol_runs"`
	StartTime    time.Time         `json:"strategy_start_time"`
	EndTime      time.Time         `json:"strategy_end_time"`
	BecameViable bool              `json:"became_viable"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewRun starts an empty run record covering the given symbols.
func NewRun(symbols []string, start time.Time) *Run {
	runs := make([]SymbolRun, 0, len(symbols))
	for _, symbol := range symbols {
		runs = append(runs, SymbolRun{Symbol: symbol})
	}
	return &Run{SymbolRuns: runs, StartTime: start, EndTime: start}
}

// RecordPurchase logs a filled buy into the run record.
func (r *Run) RecordPurchase(symbol string, price float64, qty int64, moment time.Time) {
	for i := range r.SymbolRuns {
		if r.SymbolRuns[i].Symbol == symbol {
			r.SymbolRuns[i].TimesBought = append(r.SymbolRuns[i].TimesBought, moment)
			r.SymbolRuns[i].BuyPrices = append(r.SymbolRuns[i].BuyPrices, price)
			r.SymbolRuns[i].QtysTraded = append(r.SymbolRuns[i].QtysTraded, qty)
			return
		}
	}
	r.SymbolRuns = append(r.SymbolRuns, SymbolRun{
		Symbol:      symbol,
		TimesBought: []time.Time{moment},
		QtysTraded:  []int64{qty},
		BuyPrices:   []float64{price},
	})
}

// RecordSale logs a filled sell into the run record.
func (r *Run) RecordSale(symbol string, price float64, qty int64, moment time.Time) {
	for i := range r.SymbolRuns {
		if r.SymbolRuns[i].Symbol == symbol {
			r.SymbolRuns[i].TimesSold = append(r.SymbolRuns[i].TimesSold, moment)
			r.SymbolRuns[i].SellPrices = append(r.SymbolRuns[i].SellPrices, price)
			return
		}
	}
	r.SymbolRuns = append(r.SymbolRuns, SymbolRun{
		Symbol:     symbol,
		TimesSold:  []time.Time{moment},
		QtysTraded: []int64{qty},
		SellPrices: []float64{price},
	})
}

// Encode serializes the run for persistence.
func (r *Run) Encode() ([]byte, error) {
	payload, err := sonic.ConfigFastest.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encode run")
	}
	return payload, nil
}

// DecodeRun restores a run serialized by Encode.
func DecodeRun(payload []byte) (*Run, error) {
	var run Run
	if err := sonic.ConfigFastest.Unmarshal(payload, &run); err != nil {
		return nil, errors.Wrap(err, "decode run")
	}
	return &run, nil
}
