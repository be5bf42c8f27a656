package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"coinhero/internal/model"
)

// apiError is Upbit's error envelope.
type apiError struct {
	Error struct {
		Name    json.RawMessage `json:"name"` // string or number depending on endpoint
		Message string          `json:"message"`
	} `json:"error"`
}

func (e *apiError) text() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.Trim(string(e.Error.Name), `"`)
}

// Ticker is one market's current quote.
type Ticker struct {
	Market           string  `json:"market"`
	TradePrice       float64 `json:"trade_price"`
	SignedChangeRate float64 `json:"signed_change_rate"`
	AccTradePrice24h float64 `json:"acc_trade_price_24h"`
}

type candlePayload struct {
	Market            string  `json:"market"`
	CandleDateTimeUTC string  `json:"candle_date_time_utc"`
	OpeningPrice      float64 `json:"opening_price"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	TradePrice        float64 `json:"trade_price"`
	CandleAccTradeVol float64 `json:"candle_acc_trade_volume"`
}

// Account is one asset balance line from /accounts.
type Account struct {
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	Locked      string `json:"locked"`
	AvgBuyPrice string `json:"avg_buy_price"`
}

type orderPayload struct {
	UUID           string `json:"uuid"`
	Market         string `json:"market"`
	Price          string `json:"price"`
	Volume         string `json:"volume"`
	ExecutedVolume string `json:"executed_volume"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, private bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := c.rest.R().SetContext(ctx).SetResult(out)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if private {
		token, err := c.authToken(query)
		if err != nil {
			return err
		}
		req.SetHeader("Authorization", "Bearer "+token)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("upbit: GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("upbit: GET %s: status %d: %w", path, resp.StatusCode(), model.ErrUnavailable)
	}
	return nil
}

// Markets lists all KRW-quoted market codes.
func (c *Client) Markets(ctx context.Context) ([]string, error) {
	var all []struct {
		Market string `json:"market"`
	}
	if err := c.get(ctx, "/market/all", url.Values{"isDetails": {"false"}}, &all, false); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(all))
	for _, m := range all {
		if strings.HasPrefix(m.Market, "KRW-") {
			out = append(out, m.Market)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Tickers fetches current quotes for up to 100 markets in one call.
func (c *Client) Tickers(ctx context.Context, markets []string) ([]Ticker, error) {
	if len(markets) == 0 {
		return nil, nil
	}
	var out []Ticker
	q := url.Values{"markets": {strings.Join(markets, ",")}}
	if err := c.get(ctx, "/ticker", q, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentPrice returns the last traded price of one market.
func (c *Client) CurrentPrice(ctx context.Context, market string) (float64, error) {
	ts, err := c.Tickers(ctx, []string{market})
	if err != nil {
		return 0, err
	}
	if len(ts) == 0 {
		return 0, fmt.Errorf("upbit: no ticker for %s: %w", market, model.ErrUnavailable)
	}
	return ts[0].TradePrice, nil
}

// Candles fetches up to count candles, oldest first. Upbit answers
// newest first, so the slice is reversed before returning; callers
// always see chronological order.
func (c *Client) Candles(ctx context.Context, market string, interval model.Interval, count int) ([]model.Candle, error) {
	path, err := candlePath(interval)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > 200 {
		count = 200
	}

	var raw []candlePayload
	q := url.Values{"market": {market}, "count": {strconv.Itoa(count)}}
	if err := c.get(ctx, path, q, &raw, false); err != nil {
		return nil, err
	}

	out := make([]model.Candle, len(raw))
	for i, p := range raw {
		ts, _ := time.Parse("2006-01-02T15:04:05", p.CandleDateTimeUTC)
		out[len(raw)-1-i] = model.Candle{
			Market: p.Market,
			TS:     ts.UTC(),
			Open:   p.OpeningPrice,
			High:   p.HighPrice,
			Low:    p.LowPrice,
			Close:  p.TradePrice,
			Volume: p.CandleAccTradeVol,
		}
	}
	return out, nil
}

func candlePath(interval model.Interval) (string, error) {
	switch interval {
	case model.IntervalMinute1:
		return "/candles/minutes/1", nil
	case model.IntervalMinute5:
		return "/candles/minutes/5", nil
	case model.IntervalMinute15:
		return "/candles/minutes/15", nil
	case model.IntervalMinute60:
		return "/candles/minutes/60", nil
	case model.IntervalDay:
		return "/candles/days", nil
	default:
		return "", fmt.Errorf("upbit: unsupported interval %q", interval)
	}
}

// Accounts fetches all asset balances.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := c.get(ctx, "/accounts", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Balance returns the available (unlocked) quantity of one asset, 0
// when the asset is not held at all.
func (c *Client) Balance(ctx context.Context, asset string) (float64, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if a.Currency == asset {
			v, err := strconv.ParseFloat(a.Balance, 64)
			if err != nil {
				return 0, fmt.Errorf("upbit: balance %s: %w", asset, err)
			}
			return v, nil
		}
	}
	return 0, nil
}

// MarketBuy spends amountKRW at market. Upbit models this as a bid
// with ord_type "price": you name the spend, the exchange names the
// quantity.
func (c *Client) MarketBuy(ctx context.Context, market string, amountKRW float64) (*model.Fill, error) {
	return c.submitOrder(ctx, url.Values{
		"market":   {market},
		"side":     {"bid"},
		"ord_type": {"price"},
		"price":    {strconv.FormatFloat(amountKRW, 'f', -1, 64)},
	})
}

// MarketSell sells quantity units at market (ord_type "market").
func (c *Client) MarketSell(ctx context.Context, market string, quantity float64) (*model.Fill, error) {
	return c.submitOrder(ctx, url.Values{
		"market":   {market},
		"side":     {"ask"},
		"ord_type": {"market"},
		"volume":   {strconv.FormatFloat(quantity, 'f', -1, 64)},
	})
}

func (c *Client) submitOrder(ctx context.Context, params url.Values) (*model.Fill, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.authToken(params)
	if err != nil {
		return nil, err
	}

	var out orderPayload
	var apiErr apiError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetFormDataFromValues(params).
		SetResult(&out).
		SetError(&apiErr).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("upbit: submit order: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
			return nil, &model.OrderRejectedError{Market: params.Get("market"), Message: apiErr.text()}
		}
		return nil, fmt.Errorf("upbit: submit order: status %d: %w", resp.StatusCode(), model.ErrUnavailable)
	}

	fill := &model.Fill{OrderID: out.UUID, Market: out.Market}
	if out.ExecutedVolume != "" {
		fill.Quantity, _ = strconv.ParseFloat(out.ExecutedVolume, 64)
	} else {
		fill.Quantity, _ = strconv.ParseFloat(out.Volume, 64)
	}
	if params.Get("ord_type") == "price" {
		// A market bid echoes the KRW notional in the price field, not
		// a per-coin price. Leave Price zero so the caller falls back
		// to its quoted price.
		fill.AmountKRW, _ = strconv.ParseFloat(params.Get("price"), 64)
	} else {
		fill.Price, _ = strconv.ParseFloat(out.Price, 64)
	}
	return fill, nil
}
