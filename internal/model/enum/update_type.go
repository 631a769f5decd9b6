package enum

// UpdateType describes the meaning of a stream update payload.
type UpdateType uint8

const (
	_update_type_beg UpdateType = iota
	// UpdateAcctInfo carries a new account balance snapshot.
	UpdateAcctInfo
	// UpdateCandle carries a new second's worth of price data.
	UpdateCandle
	// UpdateOrder carries an order status change.
	UpdateOrder
	// UpdateStartedUp signals that live data streaming (re)connected.
	UpdateStartedUp
	_update_type_end
)

func (t UpdateType) IsAvailable() bool {
	return t > _update_type_beg && t < _update_type_end
}

func (t UpdateType) String() string {
	switch t {
	case UpdateAcctInfo:
		return "acct_info"
	case UpdateCandle:
		return "candle"
	case UpdateOrder:
		return "order"
	case UpdateStartedUp:
		return "started_up"
	default:
		return "unknown"
	}
}
