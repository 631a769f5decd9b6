package broker

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/stream"
)

const _streamUrl = "wss://api.alpaca.markets/stream"

// Stream listens to the brokerage websocket and republishes order, balance
// and candle events onto the shared update feed. A StartedUp update is
// published whenever the socket (re)connects, and whenever an order event
// cannot be decoded, so consumers resync their cached state from REST.
type Stream struct {
	wss    *ws.WebSocket
	feed   *stream.Feed
	key    string
	secret string
}

func NewStream(ctx context.Context, feed *stream.Feed, key, secret string) *Stream {
	return &Stream{
		wss:    ws.New(ctx, _streamUrl),
		feed:   feed,
		key:    key,
		secret: secret,
	}
}

func (s *Stream) Close() {
	s.wss.Close()
}

type streamRequest struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

type streamEnvelope struct {
	Stream string `json:"stream"`
	Data   struct {
		Status string       `json:"status"`
		Event  string       `json:"event"`
		Order  *orderEntity `json:"order"`

		Symbol           string  `json:"symbol"`
		Open             float64 `json:"o"`
		High             float64 `json:"h"`
		Low              float64 `json:"l"`
		Close            float64 `json:"c"`
		Volume           int64   `json:"v"`
		EpochMillis      int64   `json:"t"`
		Cash             string  `json:"cash"`
		CashWithdrawable string  `json:"cash_withdrawable"`
	} `json:"data"`
}

// Start connects, authenticates and subscribes to trade, account and candle
// channels for the given symbols.
func (s *Stream) Start(ctx context.Context, symbols []string) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := streamRequest{
				Action: "authenticate",
				Data: map[string]any{
					"key_id":     s.key,
					"secret_key": s.secret,
				},
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write authenticate payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[streamEnvelope](m)
			if !ok || resp.Stream != "authorization" {
				return false, nil
			}
			if resp.Data.Status != "authorized" {
				return false, errors.Errorf("authenticate, status: %s", resp.Data.Status)
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	channels := []any{"trade_updates", "account_updates"}
	for _, symbol := range symbols {
		channels = append(channels, "AM."+symbol)
	}
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := streamRequest{
				Action: "listen",
				Data:   map[string]any{"streams": channels},
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write listen payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[streamEnvelope](m)
			if !ok || resp.Stream != "listening" {
				return false, nil
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	s.feed.Publish(stream.NewStartedUpUpdate(time.Now()))
	return nil
}

// Observe republishes stream events onto the feed until the context is done.
func (s *Stream) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[streamEnvelope](m)
				if !ok {
					continue
				}
				s.dispatch(resp)
			}
		}
	}()

	return cancel
}

func (s *Stream) dispatch(resp streamEnvelope) {
	switch resp.Stream {
	case "trade_updates":
		if resp.Data.Order == nil {
			logs.Warnf("trade update without order payload, event: %s", resp.Data.Event)
			s.feed.Publish(stream.NewStartedUpUpdate(time.Now()))
			return
		}
		order, ok := resp.Data.Order.toOrder()
		if !ok {
			logs.Warnf("undecodable order update, forcing resync, event: %s", resp.Data.Event)
			s.feed.Publish(stream.NewStartedUpUpdate(time.Now()))
			return
		}
		s.feed.Publish(stream.NewOrderUpdate(time.Now(), order))

	case "account_updates":
		info := accountInfoFromStrings(resp.Data.Cash, resp.Data.CashWithdrawable)
		s.feed.Publish(stream.NewAcctInfoUpdate(time.Now(), info))

	default:
		if len(resp.Stream) > 3 && resp.Stream[:3] == "AM." {
			symbol := resp.Data.Symbol
			if symbol == "" {
				symbol = resp.Stream[3:]
			}
			candle := barEntity{
				Moment: time.UnixMilli(resp.Data.EpochMillis),
				Open:   resp.Data.Open,
				High:   resp.Data.High,
				Low:    resp.Data.Low,
				Close:  resp.Data.Close,
				Volume: resp.Data.Volume,
			}.toCandle()
			s.feed.Publish(stream.NewCandleUpdate(time.Now(), symbol, candle))
		}
	}
}
