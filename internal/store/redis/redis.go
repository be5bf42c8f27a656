// Package redis provides the hot-path cache and fan-out: latest
// prices with a TTL, the live signal cache, and pub/sub of trade
// events for the gateway and notifier.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"coinhero/internal/model"
)

const (
	priceKeyPrefix  = "coinhero:price:"
	signalKeyPrefix = "coinhero:signal:"

	// TradeEventChannel carries executed-trade JSON for live consumers.
	TradeEventChannel = "coinhero:events:trades"

	defaultPriceTTL = 5 * time.Minute
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache wraps the shared Redis client.
type Cache struct {
	client *goredis.Client
}

// Client exposes the underlying client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New connects and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error { return c.client.Close() }

// SetPrice caches one market's latest price.
func (c *Cache) SetPrice(ctx context.Context, market string, price float64) error {
	return c.client.Set(ctx, priceKeyPrefix+market, price, defaultPriceTTL).Err()
}

// Price returns a cached price; ErrUnavailable when absent or expired.
func (c *Cache) Price(ctx context.Context, market string) (float64, error) {
	v, err := c.client.Get(ctx, priceKeyPrefix+market).Float64()
	if err == goredis.Nil {
		return 0, model.ErrUnavailable
	}
	if err != nil {
		return 0, fmt.Errorf("redis get price %s: %w", market, err)
	}
	return v, nil
}

// SetSignal caches the latest signal for a market so the API can show
// scan results without recomputing.
func (c *Cache) SetSignal(ctx context.Context, sig model.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, signalKeyPrefix+sig.Market, data, 30*time.Minute).Err()
}

// Signal returns the cached signal for a market, if any.
func (c *Cache) Signal(ctx context.Context, market string) (*model.Signal, error) {
	data, err := c.client.Get(ctx, signalKeyPrefix+market).Bytes()
	if err == goredis.Nil {
		return nil, model.ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("redis get signal %s: %w", market, err)
	}
	var sig model.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("redis decode signal %s: %w", market, err)
	}
	return &sig, nil
}

// PublishTrade fans an executed trade out to live subscribers. Fire
// and forget; a missing subscriber is not an error.
func (c *Cache) PublishTrade(ctx context.Context, rec model.TradeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, TradeEventChannel, data).Err()
}

// SubscribeTrades delivers published trade records until ctx ends.
func (c *Cache) SubscribeTrades(ctx context.Context, out chan<- model.TradeRecord) error {
	sub := c.client.Subscribe(ctx, TradeEventChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rec model.TradeRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				log.Printf("[redis] bad trade event: %v", err)
				continue
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
