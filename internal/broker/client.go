package broker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/model"
)

const (
	_traderBaseUrl      = "https://api.alpaca.markets"
	_traderBaseUrlPaper = "https://paper-api.alpaca.markets"
	_dataBaseUrl        = "https://data.alpaca.markets"

	_requestTimeout = 15 * time.Second
)

// Client talks to the brokerage REST API. Every failure is reported through
// the error return; callers decide whether to retry, degrade or abort.
type Client struct {
	client  *http.Client
	baseUrl string
	dataUrl string
	key     string
	secret  string
}

func NewClient(client *http.Client, key, secret string, paper bool) *Client {
	base := _traderBaseUrl
	if paper {
		base = _traderBaseUrlPaper
	}
	return &Client{
		client:  client,
		baseUrl: base,
		dataUrl: _dataBaseUrl,
		key:     key,
		secret:  secret,
	}
}

func (c *Client) do(ctx context.Context, method, rawUrl string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := sonic.ConfigFastest.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		payload = bytes.NewReader(buf)
	}

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, method, rawUrl, payload)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("APCA-API-KEY-ID", c.key)
	r.Header.Set("APCA-API-SECRET-KEY", c.secret)

	resp, err := c.client.Do(r)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("brokerage responded %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// Account fetches the current account snapshot.
func (c *Client) Account(ctx context.Context) (model.AccountInfo, error) {
	var ent accountEntity
	if err := c.do(ctx, http.MethodGet, c.baseUrl+"/v2/account", nil, &ent); err != nil {
		return model.AccountInfo{}, err
	}
	if ent.Status != "ACTIVE" {
		return ent.toAccountInfo(), errors.Errorf("non-active account status: %s", ent.Status)
	}
	return ent.toAccountInfo(), nil
}

// CanDayTrade reports whether the account can place another day trade
// without tripping the pattern-day-trader rule.
func (c *Client) CanDayTrade(ctx context.Context) (bool, error) {
	var ent accountEntity
	if err := c.do(ctx, http.MethodGet, c.baseUrl+"/v2/account", nil, &ent); err != nil {
		return false, err
	}
	return ent.DaytradeCount <= 2 || toFloat(ent.Equity) > 28000, nil
}

// OrderRequest describes an order submission.
type OrderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	LimitPrice  string `json:"limit_price,omitempty"`
	StopPrice   string `json:"stop_price,omitempty"`
}

// SubmitLimitOrder places a day limit order.
func (c *Client) SubmitLimitOrder(ctx context.Context, symbol, side string, limit float64, qty int64) error {
	return c.do(ctx, http.MethodPost, c.baseUrl+"/v2/orders", OrderRequest{
		Symbol:      symbol,
		Qty:         strconv.FormatInt(qty, 10),
		Side:        side,
		Type:        "limit",
		TimeInForce: "day",
		LimitPrice:  strconv.FormatFloat(limit, 'f', 2, 64),
	}, nil)
}

// SubmitStopOrder places a day stop sell order.
func (c *Client) SubmitStopOrder(ctx context.Context, symbol string, price float64, qty int64) error {
	return c.do(ctx, http.MethodPost, c.baseUrl+"/v2/orders", OrderRequest{
		Symbol:      symbol,
		Qty:         strconv.FormatInt(qty, 10),
		Side:        "sell",
		Type:        "stop",
		TimeInForce: "day",
		StopPrice:   strconv.FormatFloat(price, 'f', 2, 64),
	}, nil)
}

// CancelOrder cancels the order by brokerage id.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.baseUrl+"/v2/orders/"+id, nil, nil)
}

// OpenOrders lists currently open orders.
func (c *Client) OpenOrders(ctx context.Context) ([]model.Order, error) {
	var ents []orderEntity
	if err := c.do(ctx, http.MethodGet, c.baseUrl+"/v2/orders", nil, &ents); err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(ents))
	for _, ent := range ents {
		if order, ok := ent.toOrder(); ok {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// ClosedOrders lists up to limit closed orders inside the window, newest
// first.
func (c *Client) ClosedOrders(ctx context.Context, after, until time.Time, limit int) ([]model.Order, error) {
	q := url.Values{}
	q.Set("status", "closed")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("after", after.Format(time.RFC3339))
	q.Set("until", until.Format(time.RFC3339))
	q.Set("direction", "desc")

	var ents []orderEntity
	if err := c.do(ctx, http.MethodGet, c.baseUrl+"/v2/orders?"+q.Encode(), nil, &ents); err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(ents))
	for _, ent := range ents {
		if order, ok := ent.toOrder(); ok {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// Holdings lists open positions with their latest marked prices.
func (c *Client) Holdings(ctx context.Context) ([]Holding, error) {
	var ents []positionEntity
	if err := c.do(ctx, http.MethodGet, c.baseUrl+"/v2/positions", nil, &ents); err != nil {
		return nil, err
	}
	holdings := make([]Holding, 0, len(ents))
	for _, ent := range ents {
		holdings = append(holdings, ent.toHolding())
	}
	return holdings, nil
}

// MinuteBars fetches minute candles for the symbol between start and end.
func (c *Client) MinuteBars(ctx context.Context, symbol string, start, end time.Time) ([]model.Candle, error) {
	var candles []model.Candle
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeframe", "1Min")
		q.Set("start", start.Format(time.RFC3339))
		q.Set("end", end.Format(time.RFC3339))
		q.Set("limit", "10000")
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}

		var page struct {
			Bars          []barEntity `json:"bars"`
			NextPageToken *string     `json:"next_page_token"`
		}
		rawUrl := fmt.Sprintf("%s/v2/stocks/%s/bars?%s", c.dataUrl, symbol, q.Encode())
		if err := c.do(ctx, http.MethodGet, rawUrl, nil, &page); err != nil {
			return nil, err
		}
		for _, bar := range page.Bars {
			candles = append(candles, bar.toCandle())
		}
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		pageToken = *page.NextPageToken
	}
	return candles, nil
}
