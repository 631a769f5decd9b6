package broker

import (
	"context"
	"time"

	"main/internal/model"
)

// Collector pulls full days of minute candles from the market-data API. It
// satisfies the environment's data-collector contract.
type Collector struct {
	client *Client
}

func NewCollector(client *Client) *Collector {
	return &Collector{client: client}
}

// CollectDay fetches every minute candle recorded for the symbol on the
// given date.
func (c *Collector) CollectDay(symbol string, day time.Time) (*model.SymbolDay, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	candles, err := c.client.MinuteBars(context.Background(), symbol, start, end)
	if err != nil {
		return nil, err
	}
	return &model.SymbolDay{Symbol: symbol, Day: start, Candles: candles}, nil
}
