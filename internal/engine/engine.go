// Package engine runs the trading loop: periodic full-market scans that
// open positions through the advisor consensus gate, and a faster
// monitoring loop that walks open positions and executes exits.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"coinhero/internal/consensus"
	"coinhero/internal/metrics"
	"coinhero/internal/model"
	"coinhero/internal/notification"
	"coinhero/internal/position"
	"coinhero/internal/scanner"
	redisstore "coinhero/internal/store/redis"
)

// Upbit charges 0.05% per side; used to estimate filled quantity when
// the order response does not carry fills yet.
const feeRate = 0.0005

// Config tunes one engine instance. Zero durations and amounts fall
// back to defaults in New.
type Config struct {
	OrderAmountKRW  float64       `json:"order_amount_krw"`
	MaxPositions    int           `json:"max_positions"`
	MinOrderKRW     float64       `json:"min_order_krw"`
	ScanInterval    time.Duration `json:"scan_interval"`
	MonitorInterval time.Duration `json:"monitor_interval"`
	MinScore        float64       `json:"min_score"`
	MinTradeValue   float64       `json:"min_trade_value"`
}

// DefaultConfig mirrors the production defaults: 100k KRW per entry,
// three concurrent positions, scan every 3 minutes, monitor every 10s.
func DefaultConfig() Config {
	return Config{
		OrderAmountKRW:  100_000,
		MaxPositions:    3,
		MinOrderKRW:     5_000,
		ScanInterval:    3 * time.Minute,
		MonitorInterval: 10 * time.Second,
		MinScore:        scanner.DefaultMinScore,
		MinTradeValue:   scanner.DefaultMinTradeValue,
	}
}

// Engine owns one trading loop. Construct with New, drive with Run (or
// Start/Stop for supervised use), inspect with Status.
type Engine struct {
	ex       model.Exchange
	scan     *scanner.Scanner
	debate   *consensus.Debate
	posmgr   *position.Manager
	trades   model.TradeStore
	notifier notification.Notifier
	met      *metrics.Metrics
	health   *metrics.HealthStatus
	cache    *redisstore.Cache // optional, nil disables price/event publishing
	events   chan Event

	mu         sync.RWMutex
	cfg        Config
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	startedAt  time.Time
	lastScan   time.Time
	lastTick   time.Time
	lastErrors map[string]string
}

// Options carries the optional collaborators; any field may be nil.
type Options struct {
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Cache    *redisstore.Cache
}

// New wires an engine over its collaborators. exchange, scan, debate,
// posmgr and trades are required.
func New(cfg Config, ex model.Exchange, scan *scanner.Scanner, debate *consensus.Debate,
	posmgr *position.Manager, trades model.TradeStore, opts Options) *Engine {

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

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notification.NewLogNotifier()
	}

	return &Engine{
		ex:         ex,
		scan:       scan,
		debate:     debate,
		posmgr:     posmgr,
		trades:     trades,
		notifier:   notifier,
		met:        opts.Metrics,
		health:     opts.Health,
		cache:      opts.Cache,
		cfg:        cfg,
		events:     make(chan Event, 64),
		lastErrors: make(map[string]string),
	}
}

// Events exposes the engine's event stream for WebSocket fan-out.
func (e *Engine) Events() <-chan Event { return e.events }

// Start launches Run on its own goroutine. Starting a running engine
// is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[engine] stopped: %v", err)
		}
	}()
}

// Stop cancels the loop and waits for it to drain. Stopping a stopped
// engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// Run blocks driving the scan and monitor cadences until ctx is
// cancelled. It recovers persisted positions before the first scan.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	e.running = true
	e.startedAt = time.Now()
	cfg := e.cfg
	e.mu.Unlock()

	if e.health != nil {
		e.health.SetEngineRunning(true)
	}
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		if e.health != nil {
			e.health.SetEngineRunning(false)
		}
	}()

	if err := e.recover(ctx); err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}

	log.Printf("[engine] 자동매매 시작 (주문 %.0f원, 최대 %d종목)", cfg.OrderAmountKRW, cfg.MaxPositions)

	scanTicker := time.NewTicker(cfg.ScanInterval)
	defer scanTicker.Stop()
	monitorTicker := time.NewTicker(cfg.MonitorInterval)
	defer monitorTicker.Stop()

	e.scanAndBuy(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[engine] 자동매매 종료")
			return ctx.Err()
		case <-scanTicker.C:
			e.checkSellSignals(ctx)
			e.scanAndBuy(ctx)
		case <-monitorTicker.C:
			e.monitor(ctx)
		}
	}
}

// recover reloads open positions from the store and reconciles them
// against exchange balances. A position whose asset is no longer held
// was closed outside the bot and is dropped without a trade record.
func (e *Engine) recover(ctx context.Context) error {
	n, err := e.posmgr.Restore(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	for _, pos := range e.posmgr.Positions() {
		bal, err := e.ex.Balance(ctx, assetOf(pos.Market))
		if err != nil {
			// Conservative: keep the position, the monitor retries.
			log.Printf("[engine] %s: 잔고 확인 실패, 포지션 유지: %v", pos.Market, err)
			continue
		}
		if bal < pos.Quantity*0.99 {
			log.Printf("[engine] %s: 외부 청산 감지 (보유 %.8f < 기록 %.8f), 포지션 제거",
				pos.Market, bal, pos.Quantity)
			if _, err := e.posmgr.Close(ctx, pos.Market); err != nil && !errors.Is(err, position.ErrNoPosition) {
				log.Printf("[engine] %s: 포지션 제거 실패: %v", pos.Market, err)
			}
		}
	}
	log.Printf("[engine] 포지션 복구 완료: %d건 저장, %d건 유지", n, e.posmgr.Count())
	if e.met != nil {
		e.met.OpenPositions.Set(float64(e.posmgr.Count()))
	}
	return nil
}

// scanAndBuy runs one full-market sweep and opens positions for
// candidates that clear the consensus gate, while slots and KRW last.
func (e *Engine) scanAndBuy(ctx context.Context) {
	cfg := e.Config()

	slots := cfg.MaxPositions - e.posmgr.Count()
	if slots <= 0 {
		return
	}
	krw, err := e.ex.Balance(ctx, "KRW")
	if err != nil {
		e.setError("KRW", fmt.Sprintf("잔고 조회 실패: %v", err))
		return
	}
	if krw < cfg.MinOrderKRW {
		return
	}

	held := make([]string, 0, e.posmgr.Count())
	for _, p := range e.posmgr.Positions() {
		held = append(held, p.Market)
	}

	started := time.Now()
	cands, err := e.scan.Scan(ctx, scanner.Config{
		MinScore:      cfg.MinScore,
		MinTradeValue: cfg.MinTradeValue,
		MaxCandidates: slots * 2,
		Exclude:       held,
	})
	if err != nil {
		e.setError("scan", err.Error())
		return
	}

	e.mu.Lock()
	e.lastScan = time.Now()
	e.mu.Unlock()
	if e.health != nil {
		e.health.SetLastScanTime(time.Now())
	}
	if e.met != nil {
		e.met.ScansTotal.Inc()
		e.met.ScanDuration.Observe(time.Since(started).Seconds())
		e.met.MarketsScanned.Set(float64(len(cands)))
	}
	e.publish(Event{Type: EventScan, TS: time.Now(), Data: cands})

	for _, cand := range cands {
		if slots <= 0 || krw < cfg.MinOrderKRW {
			return
		}
		if ctx.Err() != nil {
			return
		}

		cons := e.debate.Run(ctx, cand.Market, cand.Context)
		if !cons.Tradable() {
			log.Printf("[engine] %s: 합의 부결 (%s, 매수 %d표)", cand.Market, cons.Verdict, cons.BuyVotes)
			continue
		}

		amount := cfg.OrderAmountKRW
		if amount > krw {
			amount = krw
		}
		if e.buy(ctx, cand, cons, amount) {
			slots--
			krw -= amount
		}
	}
}

// buy submits a market buy and opens the position. Returns true when a
// position was opened.
func (e *Engine) buy(ctx context.Context, cand scanner.Candidate, cons model.Consensus, amountKRW float64) bool {
	rationale := strings.Join(cand.Signal.Reasons, "; ")
	if len(cons.KeyPoints) > 0 {
		rationale += " | " + strings.Join(cons.KeyPoints, "; ")
	}

	fill, err := e.ex.MarketBuy(ctx, cand.Market, amountKRW)
	if err != nil {
		e.orderFailed(ctx, cand.Market, model.ActionBuy, cand.Signal.Strategy, rationale, err)
		return false
	}

	price := fill.Price
	if price <= 0 {
		price = cand.Price
	}
	qty := fill.Quantity
	if qty <= 0 && price > 0 {
		qty = amountKRW * (1 - feeRate) / price
	}

	pos := model.Position{
		Market:     cand.Market,
		EntryPrice: price,
		Quantity:   qty,
		EntryTime:  time.Now(),
		Target:     cand.Signal.Target,
		StopLoss:   cand.Signal.StopLoss,
		Strategy:   cand.Signal.Strategy,
		Rationale:  rationale,
	}
	if err := e.posmgr.Open(ctx, pos); err != nil {
		// Bought but could not track: loudest possible alert, the
		// operator has to reconcile by hand.
		log.Printf("[engine] %s: 체결 후 포지션 등록 실패: %v", cand.Market, err)
		e.notify(ctx, notification.ErrorAlert("포지션 등록 실패 "+cand.Market, err))
		return false
	}

	rec := model.TradeRecord{
		Market:    cand.Market,
		Action:    model.ActionBuy,
		Price:     price,
		Quantity:  qty,
		TotalKRW:  amountKRW,
		Strategy:  cand.Signal.Strategy,
		Rationale: rationale,
		TS:        time.Now(),
	}
	e.record(ctx, rec)

	log.Printf("[engine] %s 매수: %.0f원 x %.8f (%s, %.0f점)",
		cand.Market, price, qty, cand.Signal.Strategy, cand.Signal.Score)
	e.notify(ctx, notification.BuyAlert(cand.Market, price, amountKRW, cand.Signal.Score, rationale))
	if e.met != nil {
		e.met.OrdersSubmitted.WithLabelValues("buy").Inc()
		e.met.SignalsTotal.WithLabelValues(cand.Signal.Strategy).Inc()
		e.met.OpenPositions.Set(float64(e.posmgr.Count()))
	}
	if e.cache != nil {
		if err := e.cache.SetSignal(ctx, cand.Signal); err != nil {
			log.Printf("[engine] %s: 시그널 캐시 실패: %v", cand.Market, err)
		}
	}
	e.publish(Event{Type: EventBuy, TS: rec.TS, Data: rec})
	e.clearError(cand.Market)
	return true
}

// monitor walks open positions, feeds current prices through the
// position manager, and executes any exit decisions.
func (e *Engine) monitor(ctx context.Context) {
	positions := e.posmgr.Positions()
	if len(positions) == 0 {
		return
	}

	for _, pos := range positions {
		if ctx.Err() != nil {
			return
		}

		price, err := e.ex.CurrentPrice(ctx, pos.Market)
		if err != nil {
			// Never exit on a failed quote; skip this market until
			// the next tick.
			e.setError(pos.Market, fmt.Sprintf("현재가 조회 실패: %v", err))
			if e.met != nil {
				e.met.PriceErrors.Inc()
			}
			continue
		}
		e.clearError(pos.Market)

		if e.cache != nil {
			if err := e.cache.SetPrice(ctx, pos.Market, price); err != nil {
				log.Printf("[engine] %s: 가격 캐시 실패: %v", pos.Market, err)
			}
		}

		now := time.Now()
		e.mu.Lock()
		e.lastTick = now
		e.mu.Unlock()
		if e.health != nil {
			e.health.SetLastTickTime(now)
		}

		dec, err := e.posmgr.Tick(ctx, pos.Market, price, now)
		if err != nil {
			continue // position closed between snapshot and tick
		}
		if dec.Exit {
			e.sell(ctx, pos.Market, dec)
		}
	}
}

// checkSellSignals scores the sell side of every held market on the
// scan cadence. Overbought conditions and profit milestones can exit
// a position before the banding does; the faster monitor loop still
// owns the stops.
func (e *Engine) checkSellSignals(ctx context.Context) {
	for _, pos := range e.posmgr.Positions() {
		if ctx.Err() != nil {
			return
		}

		candles, err := e.ex.Candles(ctx, pos.Market, model.IntervalDay, scanner.CandleCount)
		if err != nil || len(candles) == 0 {
			continue // the monitor loop keeps covering this market
		}
		price := candles[len(candles)-1].Close

		sig := e.scan.SellSignal(pos.Market, candles, pos.ProfitPct(price))
		if sig.Action != model.ActionSell {
			continue
		}

		label := strings.Join(sig.Reasons, "; ")
		log.Printf("[engine] %s 매도 시그널 %.0f점: %s", pos.Market, sig.Score, label)
		e.sell(ctx, pos.Market, position.Decision{
			Exit:      true,
			Reason:    position.ExitSignal,
			Label:     label,
			ProfitPct: pos.ProfitPct(price),
			Price:     price,
		})
	}
}

// sell executes an exit decision: market sell, close the position,
// record realized profit.
func (e *Engine) sell(ctx context.Context, market string, dec position.Decision) {
	pos, ok := e.posmgr.Get(market)
	if !ok {
		return
	}

	fill, err := e.ex.MarketSell(ctx, market, pos.Quantity)
	if err != nil {
		// The position stays open; transient errors retry on the next
		// tick, rejections need the operator.
		e.orderFailed(ctx, market, model.ActionSell, pos.Strategy, dec.Label, err)
		return
	}

	closed, err := e.posmgr.Close(ctx, market)
	if errors.Is(err, position.ErrNoPosition) {
		return // already closed, do not double-record
	}
	if err != nil {
		log.Printf("[engine] %s: 포지션 종료 실패: %v", market, err)
		return
	}

	price := fill.Price
	if price <= 0 {
		price = dec.Price
	}
	profit := (price - closed.EntryPrice) * closed.Quantity * (1 - feeRate)
	rate := closed.ProfitPct(price)

	rec := model.TradeRecord{
		Market:     market,
		Action:     model.ActionSell,
		Price:      price,
		Quantity:   closed.Quantity,
		TotalKRW:   price * closed.Quantity,
		Strategy:   closed.Strategy,
		Rationale:  dec.Label,
		TS:         time.Now(),
		Profit:     &profit,
		ProfitRate: &rate,
	}
	e.record(ctx, rec)

	log.Printf("[engine] %s 매도: %.0f원, 손익 %+.0f원 (%+.2f%%) - %s",
		market, price, profit, rate, dec.Label)
	e.notify(ctx, notification.SellAlert(market, price, profit, rate, dec.Label))
	if e.met != nil {
		e.met.OrdersSubmitted.WithLabelValues("sell").Inc()
		e.met.ExitsTotal.WithLabelValues(string(dec.Reason)).Inc()
		e.met.RealizedProfit.Observe(rate)
		e.met.OpenPositions.Set(float64(e.posmgr.Count()))
	}
	e.publish(Event{Type: EventSell, TS: rec.TS, Data: rec})
}

// ScanOnce runs a single full-market sweep without trading, for the
// control API and the one-shot scanner binary.
func (e *Engine) ScanOnce(ctx context.Context) ([]scanner.Candidate, error) {
	cfg := e.Config()
	return e.scan.Scan(ctx, scanner.Config{
		MinScore:      cfg.MinScore,
		MinTradeValue: cfg.MinTradeValue,
	})
}

// ManualBuy opens a position outside the scan loop (API request). The
// consensus gate is bypassed; the operator decided.
func (e *Engine) ManualBuy(ctx context.Context, market string, amountKRW float64) error {
	cfg := e.Config()
	if amountKRW <= 0 {
		amountKRW = cfg.OrderAmountKRW
	}
	if amountKRW < cfg.MinOrderKRW {
		return fmt.Errorf("주문 금액 %.0f원은 최소 %.0f원 미만", amountKRW, cfg.MinOrderKRW)
	}
	if _, ok := e.posmgr.Get(market); ok {
		return position.ErrPositionExists
	}

	candles, err := e.ex.Candles(ctx, market, model.IntervalDay, scanner.CandleCount)
	if err != nil {
		return fmt.Errorf("캔들 조회: %w", err)
	}
	sig := e.scan.Score(market, candles)
	price, err := e.ex.CurrentPrice(ctx, market)
	if err != nil {
		return fmt.Errorf("현재가 조회: %w", err)
	}

	cand := scanner.Candidate{
		Market:  market,
		Price:   price,
		Signal:  sig,
		Context: scanner.Analyze(market, candles, sig),
	}
	if sig.Strategy == "" {
		cand.Signal.Strategy = "manual"
	}
	if !e.buy(ctx, cand, model.Consensus{}, amountKRW) {
		return fmt.Errorf("%s 매수 실패", market)
	}
	return nil
}

// ManualSell closes a position at market outside the monitor loop.
func (e *Engine) ManualSell(ctx context.Context, market string) error {
	pos, ok := e.posmgr.Get(market)
	if !ok {
		return position.ErrNoPosition
	}
	price, err := e.ex.CurrentPrice(ctx, market)
	if err != nil {
		price = pos.EntryPrice
	}
	dec := position.Decision{
		Exit:      true,
		Reason:    "manual",
		Label:     "수동 매도",
		ProfitPct: pos.ProfitPct(price),
		Price:     price,
	}
	e.sell(ctx, market, dec)
	if _, still := e.posmgr.Get(market); still {
		return fmt.Errorf("%s 매도 실패", market)
	}
	return nil
}

// orderFailed records a failed order attempt. Exchange rejections get a
// rejected trade record; transient failures only log.
func (e *Engine) orderFailed(ctx context.Context, market string, action model.Action, strategy, rationale string, err error) {
	var rejected *model.OrderRejectedError
	if errors.As(err, &rejected) {
		log.Printf("[engine] %s %s 주문 거부: %s", market, action, rejected.Message)
		e.record(ctx, model.TradeRecord{
			Market:    market,
			Action:    action,
			Strategy:  strategy,
			Rationale: rationale,
			TS:        time.Now(),
			Rejected:  true,
			Error:     rejected.Message,
		})
		e.notify(ctx, notification.ErrorAlert(fmt.Sprintf("주문 거부 %s", market), err))
		if e.met != nil {
			e.met.OrdersRejected.Inc()
		}
		return
	}
	log.Printf("[engine] %s %s 주문 실패: %v", market, action, err)
	e.setError(market, fmt.Sprintf("주문 실패: %v", err))
}

func (e *Engine) record(ctx context.Context, rec model.TradeRecord) {
	if err := e.trades.RecordTrade(ctx, rec); err != nil {
		log.Printf("[engine] %s: 거래 기록 실패: %v", rec.Market, err)
	}
	if e.cache != nil {
		if err := e.cache.PublishTrade(ctx, rec); err != nil {
			log.Printf("[engine] %s: 거래 이벤트 발행 실패: %v", rec.Market, err)
		}
	}
}

func (e *Engine) notify(ctx context.Context, alert notification.Alert) {
	if err := e.notifier.Send(ctx, alert); err != nil {
		log.Printf("[engine] 알림 실패: %v", err)
	}
}

// assetOf extracts the base asset from a market code ("KRW-BTC" → "BTC").
func assetOf(market string) string {
	if i := strings.IndexByte(market, '-'); i >= 0 {
		return market[i+1:]
	}
	return market
}
