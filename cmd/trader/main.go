// Command trader is the trading daemon: Upbit exchange client, strategy
// scorer, advisor consensus, position manager with persistent recovery,
// control API with WebSocket event stream, metrics and health probes.
//
// Config comes from the environment (and .env); see config.Load.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinhero/config"
	"coinhero/internal/advisor"
	"coinhero/internal/api"
	"coinhero/internal/consensus"
	"coinhero/internal/engine"
	"coinhero/internal/gateway"
	"coinhero/internal/metrics"
	"coinhero/internal/model"
	"coinhero/internal/notification"
	"coinhero/internal/position"
	"coinhero/internal/scanner"
	redisstore "coinhero/internal/store/redis"
	sqlitestore "coinhero/internal/store/sqlite"
	"coinhero/internal/strategy"
	"coinhero/pkg/upbit"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("[trader] starting")

	cfg := config.Load()
	cfg.RequireUpbitKeys()

	posCfg, err := cfg.PositionConfig()
	if err != nil {
		log.Fatalf("[trader] position config: %v", err)
	}

	// Stores
	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[trader] sqlite open: %v", err)
	}
	defer store.Close()

	var cache *redisstore.Cache
	if cfg.RedisAddr != "" {
		cache, err = redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			// The engine runs fine without the cache.
			log.Printf("[trader] redis unavailable, continuing without cache: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Exchange
	exchange := upbit.New(upbit.Config{
		AccessKey: cfg.UpbitAccessKey,
		SecretKey: cfg.UpbitSecretKey,
		StreamURL: cfg.UpbitStreamURL,
	})

	// Strategy set + scanner
	strategies := strategy.Select(cfg.ParseStrategies())
	if len(strategies) == 0 {
		strategies = strategy.Select(strategy.DefaultStrategyNames)
	}
	scorer := strategy.NewScorer(strategies, 0, 0)
	scan := scanner.New(exchange, scorer)

	// Advisor panel: OpenRouter experts when a key is set, otherwise
	// the deterministic rule advisor stands in.
	var advisors []model.Advisor
	if cfg.OpenRouterKey != "" {
		for _, expert := range advisor.DefaultPanel() {
			advisors = append(advisors, advisor.NewOpenRouter("", cfg.OpenRouterKey, expert))
		}
		log.Printf("[trader] advisor panel: %d OpenRouter experts", len(advisors))
	} else {
		// The consensus gate needs two buy-side votes; seat the rule
		// advisor twice so keyless mode can still commit capital.
		advisors = append(advisors, advisor.Rule{}, advisor.Rule{})
		log.Printf("[trader] no OpenRouter key, using rule advisors")
	}
	debate := consensus.NewDebate(advisors...)

	// Notifications
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	notifier := notification.NewMulti(backends...)

	// Metrics + health
	met := metrics.NewMetrics()
	debate.Observe(func(name string, elapsed time.Duration, failed bool) {
		met.AdvisorLatency.WithLabelValues(name).Observe(elapsed.Seconds())
		if failed {
			met.AdvisorErrors.WithLabelValues(name).Inc()
		}
	})
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cache != nil {
		health.StartLivenessChecker(ctx, cache.Client(), store.DB(), 30*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 30*time.Second)
	}

	// Engine
	posmgr := position.NewManager(posCfg, store)
	eng := engine.New(cfg.EngineConfig(), exchange, scan, debate, posmgr, store, engine.Options{
		Notifier: notifier,
		Metrics:  met,
		Health:   health,
		Cache:    cache,
	})

	// Live price mirror: when the cache is up, stream ticker quotes
	// into it so dashboards read prices without hitting the REST API.
	if cache != nil {
		markets, err := exchange.Markets(ctx)
		if err != nil {
			log.Printf("[trader] market list for price stream: %v", err)
		} else {
			stream := upbit.NewStream(cfg.UpbitStreamURL, markets)
			stream.OnReconnect = met.WSReconnects.Inc
			go stream.Run(ctx)
			go func() {
				for t := range stream.Tickers() {
					if err := cache.SetPrice(ctx, t.Market, t.TradePrice); err != nil {
						log.Printf("[trader] price cache write: %v", err)
					}
				}
			}()
		}
	}

	// Event fan-out + control API
	hub := gateway.NewHub(500)
	go hub.Run(ctx, eng.Events())

	apiSrv := api.NewServer(cfg.APIAddr, eng, posmgr, store, hub)
	apiSrv.Start()

	eng.Start()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("[trader] %v received, shutting down", sig)

	eng.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Printf("[trader] bye")
}
