package engine

import "time"

// Event types pushed to the WebSocket gateway.
const (
	EventScan = "scan"
	EventBuy  = "buy"
	EventSell = "sell"
)

// Event is one engine occurrence broadcast to API clients.
type Event struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

// Status is a point-in-time snapshot of the engine for the control API.
type Status struct {
	Running       bool              `json:"running"`
	StartedAt     time.Time         `json:"started_at,omitempty"`
	LastScan      time.Time         `json:"last_scan,omitempty"`
	LastTick      time.Time         `json:"last_tick,omitempty"`
	OpenPositions int               `json:"open_positions"`
	Errors        map[string]string `json:"errors,omitempty"`
	Config        Config            `json:"config"`
}

// Status returns a consistent snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	errs := make(map[string]string, len(e.lastErrors))
	for k, v := range e.lastErrors {
		errs[k] = v
	}
	return Status{
		Running:       e.running,
		StartedAt:     e.startedAt,
		LastScan:      e.lastScan,
		LastTick:      e.lastTick,
		OpenPositions: e.posmgr.Count(),
		Errors:        errs,
		Config:        e.cfg,
	}
}

// Config returns the current engine configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Configure replaces the tunable fields. Interval changes take effect
// after a restart; amounts and thresholds apply from the next tick.
func (e *Engine) Configure(cfg Config) {
	def := DefaultConfig()
	if cfg.OrderAmountKRW <= 0 {
		cfg.OrderAmountKRW = def.OrderAmountKRW
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = def.MaxPositions
	}
	if cfg.MinOrderKRW <= 0 {
		cfg.MinOrderKRW = def.MinOrderKRW
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = def.MonitorInterval
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) setError(key, msg string) {
	e.mu.Lock()
	e.lastErrors[key] = msg
	e.mu.Unlock()
}

func (e *Engine) clearError(key string) {
	e.mu.Lock()
	delete(e.lastErrors, key)
	e.mu.Unlock()
}

// publish pushes an event without ever blocking the trading loop; slow
// consumers lose events.
func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}
