// Package config loads application configuration from the environment
// (with optional .env file) plus an optional YAML file for the trading
// banding constants.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"coinhero/internal/engine"
	"coinhero/internal/position"
)

// Config holds all application configuration.
type Config struct {
	// Upbit credentials (required for trading, not for public data)
	UpbitAccessKey string
	UpbitSecretKey string
	UpbitStreamURL string // empty uses the public endpoint

	// OpenRouter API key; empty falls back to the rule-based advisor
	OpenRouterKey string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string

	// Notifications (empty disables the backend)
	TelegramToken  string
	TelegramChatID string
	WebhookURL     string

	// Trading
	OrderAmountKRW     float64
	MaxPositions       int
	ScanIntervalSec    int
	MonitorIntervalSec int
	MinScore           float64
	MinTradeValue      float64
	Strategies         string // comma-separated strategy names, empty = defaults

	// Optional YAML file overriding the trailing-stop banding
	PositionConfigPath string
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env: %v", err)
	}

	return &Config{
		UpbitAccessKey: getEnv("UPBIT_ACCESS_KEY", ""),
		UpbitSecretKey: getEnv("UPBIT_SECRET_KEY", ""),
		UpbitStreamURL: getEnv("STREAM_URL", ""),
		OpenRouterKey:  getEnv("OPENROUTER_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/coinhero.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:     getEnv("ALERT_WEBHOOK_URL", ""),

		OrderAmountKRW:     getFloat("ORDER_AMOUNT_KRW", 100_000),
		MaxPositions:       getInt("MAX_POSITIONS", 3),
		ScanIntervalSec:    getInt("SCAN_INTERVAL_SEC", 180),
		MonitorIntervalSec: getInt("MONITOR_INTERVAL_SEC", 10),
		MinScore:           getFloat("MIN_SCORE", 70),
		MinTradeValue:      getFloat("MIN_TRADE_VALUE_KRW", 1_000_000_000),
		Strategies:         getEnv("STRATEGIES", ""),

		PositionConfigPath: getEnv("POSITION_CONFIG", ""),
	}
}

// RequireUpbitKeys exits when trading credentials are missing.
func (c *Config) RequireUpbitKeys() {
	if c.UpbitAccessKey == "" || c.UpbitSecretKey == "" {
		log.Fatalf("[config] UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY must be set")
	}
}

// EngineConfig maps the loaded values onto the engine tuning.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		OrderAmountKRW:  c.OrderAmountKRW,
		MaxPositions:    c.MaxPositions,
		ScanInterval:    time.Duration(c.ScanIntervalSec) * time.Second,
		MonitorInterval: time.Duration(c.MonitorIntervalSec) * time.Second,
		MinScore:        c.MinScore,
		MinTradeValue:   c.MinTradeValue,
	}
}

// ParseStrategies splits the comma-separated strategy list.
func (c *Config) ParseStrategies() []string {
	if strings.TrimSpace(c.Strategies) == "" {
		return nil
	}
	parts := strings.Split(c.Strategies, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// bandsFile is the YAML schema for the banding file. Fields are
// pointers so a partial file overrides only what it names; the holding
// bounds are human-readable durations ("5m", "1h30m").
type bandsFile struct {
	HardStopPct          *float64        `yaml:"hard_stop_pct"`
	MinProfitForExitPct  *float64        `yaml:"min_profit_for_exit_pct"`
	MinHolding           string          `yaml:"min_holding"`
	MaxHolding           string          `yaml:"max_holding"`
	TrailingActivatePct  *float64        `yaml:"trailing_activate_pct"`
	ActivationFloorPct   *float64        `yaml:"activation_floor_pct"`
	Bands                []position.Band `yaml:"bands"`
	DrawdownExitFraction *float64        `yaml:"drawdown_exit_fraction"`
}

// PositionConfig loads the banding YAML when configured, otherwise the
// built-in defaults.
func (c *Config) PositionConfig() (position.Config, error) {
	cfg := position.DefaultConfig()
	if c.PositionConfigPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(c.PositionConfigPath)
	if err != nil {
		return position.Config{}, fmt.Errorf("read %s: %w", c.PositionConfigPath, err)
	}
	var f bandsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return position.Config{}, fmt.Errorf("parse %s: %w", c.PositionConfigPath, err)
	}

	if f.HardStopPct != nil {
		cfg.HardStopPct = *f.HardStopPct
	}
	if f.MinProfitForExitPct != nil {
		cfg.MinProfitForExitPct = *f.MinProfitForExitPct
	}
	if f.MinHolding != "" {
		d, err := time.ParseDuration(f.MinHolding)
		if err != nil {
			return position.Config{}, fmt.Errorf("parse %s: min_holding: %w", c.PositionConfigPath, err)
		}
		cfg.MinHolding = d
	}
	if f.MaxHolding != "" {
		d, err := time.ParseDuration(f.MaxHolding)
		if err != nil {
			return position.Config{}, fmt.Errorf("parse %s: max_holding: %w", c.PositionConfigPath, err)
		}
		cfg.MaxHolding = d
	}
	if f.TrailingActivatePct != nil {
		cfg.TrailingActivatePct = *f.TrailingActivatePct
	}
	if f.ActivationFloorPct != nil {
		cfg.ActivationFloorPct = *f.ActivationFloorPct
	}
	if f.Bands != nil {
		cfg.Bands = f.Bands
	}
	if f.DrawdownExitFraction != nil {
		cfg.DrawdownExitFraction = *f.DrawdownExitFraction
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
