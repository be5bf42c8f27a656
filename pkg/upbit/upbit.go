// Package upbit wraps the Upbit exchange REST and websocket APIs with
// the narrow surface the trading core needs: prices, candles, balances
// and market orders. Private calls are signed with a per-request JWT;
// all calls share a rate limiter sized to Upbit's published limits.
package upbit

import (
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public REST endpoint root.
	DefaultBaseURL = "https://api.upbit.com/v1"

	// DefaultStreamURL is the public quotation websocket endpoint.
	DefaultStreamURL = "wss://api.upbit.com/websocket/v1"
)

// Config carries credentials and overrides. Keys may be empty for
// public-data-only use; private endpoints then fail with an auth error.
type Config struct {
	AccessKey string
	SecretKey string

	BaseURL   string        // default DefaultBaseURL
	StreamURL string        // default DefaultStreamURL
	Timeout   time.Duration // per-request, default 10s

	// RequestsPerSecond caps outbound REST calls; default 8, a notch
	// under Upbit's 10 rps quotation limit.
	RequestsPerSecond float64
}

// Client talks to the Upbit REST API. Safe for concurrent use.
type Client struct {
	rest      *resty.Client
	streamURL string
	accessKey string
	secretKey string
	limiter   *rate.Limiter
}

// New builds a client from config, filling defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Orders are never retried: a timed-out POST may still
			// have executed, and a duplicate buy is worse than a
			// missed one.
			if r != nil && r.Request.Method == "POST" {
				return false
			}
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})

	return &Client{
		rest:      rest,
		streamURL: cfg.StreamURL,
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}
