package broker

import (
	"strconv"
	"time"

	"github.com/yanun0323/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// accountEntity is the brokerage account wire format. Numeric fields arrive
// as JSON strings.
type accountEntity struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Equity        decimal.Decimal `json:"equity"`
	Cash          decimal.Decimal `json:"cash"`
	DaytradeCount int64           `json:"daytrade_count"`
}

func (e accountEntity) toAccountInfo() model.AccountInfo {
	return model.AccountInfo{
		ID:               e.ID,
		Cash:             toFloat(e.Equity),
		WithdrawableCash: toFloat(e.Cash),
	}
}

// orderEntity is the brokerage order wire format.
type orderEntity struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Side           string           `json:"side"`
	Type           string           `json:"type"`
	Status         string           `json:"status"`
	Qty            decimal.Decimal  `json:"qty"`
	LimitPrice     *decimal.Decimal `json:"limit_price"`
	StopPrice      *decimal.Decimal `json:"stop_price"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	FilledAt       *time.Time       `json:"filled_at"`
}

// toOrder converts the wire order into the domain order. ok is false when
// the entity cannot be interpreted, e.g. an order kind this system never
// places.
func (e orderEntity) toOrder() (model.Order, bool) {
	typ := orderType(e.Side, e.Type)
	status, ok := orderStatus(e.Status)
	if !ok {
		return model.Order{}, false
	}

	price := toFloatPtr(e.LimitPrice)
	switch {
	case typ == enum.OrderTypeStop:
		price = toFloatPtr(e.StopPrice)
	case status == enum.OrderStatusFilled && toFloatPtr(e.FilledAvgPrice) > 0:
		price = toFloatPtr(e.FilledAvgPrice)
	}

	moment := e.SubmittedAt
	if e.FilledAt != nil {
		moment = *e.FilledAt
	}

	return model.Order{
		ID:     e.ID,
		Symbol: e.Symbol,
		Type:   typ,
		Status: status,
		Price:  price,
		Qty:    int64(toFloat(e.Qty)),
		Moment: moment,
	}, true
}

func orderType(side, typ string) enum.OrderType {
	switch typ {
	case "limit":
		if side == "buy" {
			return enum.OrderTypeLimitBuy
		}
		return enum.OrderTypeLimitSell
	case "market":
		if side == "buy" {
			return enum.OrderTypeMarketBuy
		}
		return enum.OrderTypeMarketSell
	case "stop":
		return enum.OrderTypeStop
	default:
		return enum.OrderTypeUnsupported
	}
}

func orderStatus(status string) (enum.OrderStatus, bool) {
	switch status {
	case "new", "accepted", "pending_new", "partially_filled", "held":
		return enum.OrderStatusOpen, true
	case "filled":
		return enum.OrderStatusFilled, true
	case "canceled", "expired", "rejected", "done_for_day", "stopped":
		return enum.OrderStatusCanceled, true
	default:
		return 0, false
	}
}

// positionEntity is the brokerage position wire format.
type positionEntity struct {
	Symbol       string          `json:"symbol"`
	Qty          decimal.Decimal `json:"qty"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// Holding is an open position together with its latest marked price.
type Holding struct {
	Symbol       string
	Shares       int64
	CurrentPrice float64
}

func (e positionEntity) toHolding() Holding {
	return Holding{
		Symbol:       e.Symbol,
		Shares:       int64(toFloat(e.Qty)),
		CurrentPrice: toFloat(e.CurrentPrice),
	}
}

// barEntity is a wire candle from the market-data API.
type barEntity struct {
	Moment time.Time `json:"t"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume int64     `json:"v"`
}

func (e barEntity) toCandle() model.Candle {
	return model.Candle{
		Moment: e.Moment,
		Open:   e.Open,
		High:   e.High,
		Low:    e.Low,
		Close:  e.Close,
		Volume: e.Volume,
	}
}

func accountInfoFromStrings(cash, withdrawable string) model.AccountInfo {
	c, _ := strconv.ParseFloat(cash, 64)
	w, _ := strconv.ParseFloat(withdrawable, 64)
	return model.AccountInfo{Cash: c, WithdrawableCash: w}
}

func toFloat(d decimal.Decimal) float64 {
	f, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

func toFloatPtr(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return toFloat(*d)
}
