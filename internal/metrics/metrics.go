package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading daemon.
type Metrics struct {
	ScansTotal     prometheus.Counter
	ScanDuration   prometheus.Histogram
	MarketsScanned prometheus.Gauge

	SignalsTotal    *prometheus.CounterVec // labels: strategy
	OrdersSubmitted *prometheus.CounterVec // labels: side
	OrdersRejected  prometheus.Counter
	OpenPositions   prometheus.Gauge
	ExitsTotal      *prometheus.CounterVec // labels: reason
	RealizedProfit  prometheus.Histogram   // realized profit rate per closed position

	AdvisorLatency *prometheus.HistogramVec // labels: advisor
	AdvisorErrors  *prometheus.CounterVec   // labels: advisor

	WSReconnects prometheus.Counter
	PriceErrors  prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinhero_scans_total",
			Help: "Total full-market scans performed",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinhero_scan_duration_seconds",
			Help:    "Full-market scan latency",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
		}),
		MarketsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinhero_markets_scanned",
			Help: "Markets passing the liquidity filter in the last scan",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinhero_signals_total",
			Help: "Buy signals produced (by winning strategy)",
		}, []string{"strategy"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinhero_orders_submitted_total",
			Help: "Market orders submitted to the exchange (by side)",
		}, []string{"side"}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinhero_orders_rejected_total",
			Help: "Orders rejected by the exchange",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinhero_open_positions",
			Help: "Currently open positions",
		}),
		ExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinhero_exits_total",
			Help: "Position exits (by reason)",
		}, []string{"reason"}),
		RealizedProfit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinhero_realized_profit_rate",
			Help:    "Realized profit rate per closed position (percent)",
			Buckets: []float64{-10, -5, -2, 0, 1.5, 3, 5, 8, 12, 20},
		}),
		AdvisorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinhero_advisor_latency_seconds",
			Help:    "Advisor opinion round-trip latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"advisor"}),
		AdvisorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinhero_advisor_errors_total",
			Help: "Advisor requests that produced no opinion",
		}, []string{"advisor"}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinhero_ws_reconnects_total",
			Help: "Ticker WebSocket reconnection attempts",
		}),
		PriceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinhero_price_errors_total",
			Help: "Price fetch failures during position monitoring",
		}),
	}

	prometheus.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.MarketsScanned,
		m.SignalsTotal,
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.OpenPositions,
		m.ExitsTotal,
		m.RealizedProfit,
		m.AdvisorLatency,
		m.AdvisorErrors,
		m.WSReconnects,
		m.PriceErrors,
	)

	return m
}

// HealthStatus represents the daemon's health.
type HealthStatus struct {
	mu sync.RWMutex

	EngineRunning  bool      `json:"engine_running"`
	LastScanTime   time.Time `json:"last_scan_time"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetEngineRunning(v bool) {
	h.mu.Lock()
	h.EngineRunning = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastScanTime(t time.Time) {
	h.mu.Lock()
	h.LastScanTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	scanAge := ""
	if !h.LastScanTime.IsZero() {
		scanAge = time.Since(h.LastScanTime).Round(time.Second).String()
	}
	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		EngineRunning   bool    `json:"engine_running"`
		LastScanTime    string  `json:"last_scan_time"`
		ScanAge         string  `json:"scan_age"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		EngineRunning:   h.EngineRunning,
		LastScanTime:    h.LastScanTime.Format(time.RFC3339),
		ScanAge:         scanAge,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
