package enum

// OrderType market buy/sell, limit buy/sell, stop
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeMarketBuy
	OrderTypeMarketSell
	OrderTypeLimitBuy
	OrderTypeLimitSell
	OrderTypeStop
	OrderTypeUnsupported
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

// IsSell reports whether a fill of this order reduces the position.
func (t OrderType) IsSell() bool {
	switch t {
	case OrderTypeMarketSell, OrderTypeLimitSell, OrderTypeStop:
		return true
	default:
		return false
	}
}

// IsBuy reports whether a fill of this order increases the position.
func (t OrderType) IsBuy() bool {
	switch t {
	case OrderTypeMarketBuy, OrderTypeLimitBuy:
		return true
	default:
		return false
	}
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarketBuy:
		return "market_buy"
	case OrderTypeMarketSell:
		return "market_sell"
	case OrderTypeLimitBuy:
		return "limit_buy"
	case OrderTypeLimitSell:
		return "limit_sell"
	case OrderTypeStop:
		return "stop"
	default:
		return "unsupported"
	}
}

// OrderStatus open, filled, canceled
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusOpen
	OrderStatusFilled
	OrderStatusCanceled
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusOpen:
		return "open"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
