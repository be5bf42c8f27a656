package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coinhero/internal/consensus"
	"coinhero/internal/model"
	"coinhero/internal/position"
	"coinhero/internal/scanner"
	"coinhero/internal/store/memory"
	"coinhero/internal/strategy"
)

// ── fakes ──

type fakeExchange struct {
	markets  []string
	candles  map[string][]model.Candle
	prices   map[string]float64
	balances map[string]float64
	priceErr map[string]error

	buys      []string
	sells     []string
	rejectBuy error
	rejectSel error
}

func (f *fakeExchange) Markets(context.Context) ([]string, error) { return f.markets, nil }

func (f *fakeExchange) Candles(_ context.Context, market string, _ model.Interval, _ int) ([]model.Candle, error) {
	cs, ok := f.candles[market]
	if !ok {
		return nil, model.ErrUnavailable
	}
	return cs, nil
}

func (f *fakeExchange) CurrentPrice(_ context.Context, market string) (float64, error) {
	if err := f.priceErr[market]; err != nil {
		return 0, err
	}
	p, ok := f.prices[market]
	if !ok {
		return 0, model.ErrUnavailable
	}
	return p, nil
}

func (f *fakeExchange) Balance(_ context.Context, asset string) (float64, error) {
	return f.balances[asset], nil
}

func (f *fakeExchange) MarketBuy(_ context.Context, market string, amountKRW float64) (*model.Fill, error) {
	if f.rejectBuy != nil {
		return nil, f.rejectBuy
	}
	f.buys = append(f.buys, market)
	price := f.prices[market]
	return &model.Fill{
		OrderID:   "buy-" + market,
		Market:    market,
		Price:     price,
		Quantity:  amountKRW / price,
		AmountKRW: amountKRW,
	}, nil
}

func (f *fakeExchange) MarketSell(_ context.Context, market string, quantity float64) (*model.Fill, error) {
	if f.rejectSel != nil {
		return nil, f.rejectSel
	}
	f.sells = append(f.sells, market)
	price := f.prices[market]
	return &model.Fill{
		OrderID:  "sell-" + market,
		Market:   market,
		Price:    price,
		Quantity: quantity,
	}, nil
}

type votingAdvisor struct {
	name    string
	verdict model.Verdict
}

func (a votingAdvisor) Name() string { return a.name }

func (a votingAdvisor) RequestOpinion(_ context.Context, market string, _ model.MarketContext, _ []model.Opinion) (*model.Opinion, error) {
	return &model.Opinion{
		Source:     a.name,
		Market:     market,
		Verdict:    a.verdict,
		Confidence: 80,
		Rationale:  "test",
	}, nil
}

// oversoldCandles fires the RSI reversal strategies at a liquid turnover.
func oversoldCandles(market string) []model.Candle {
	out := make([]model.Candle, 0, 25)
	price := 300.0
	for i := 0; i < 24; i++ {
		next := price * 0.97
		out = append(out, model.Candle{Market: market, Open: price, High: price * 1.002, Low: next * 0.998, Close: next, Volume: 1e8})
		price = next
	}
	up := price * 1.004
	out = append(out, model.Candle{Market: market, Open: price, High: up * 1.002, Low: price * 0.999, Close: up, Volume: 5e9 / up})
	return out
}

type harness struct {
	eng    *Engine
	ex     *fakeExchange
	store  *memory.Store
	posmgr *position.Manager
}

func newHarness(t *testing.T, ex *fakeExchange, verdicts ...model.Verdict) *harness {
	t.Helper()
	if len(verdicts) == 0 {
		verdicts = []model.Verdict{model.VerdictBuy, model.VerdictBuy}
	}
	advisors := make([]model.Advisor, len(verdicts))
	for i, v := range verdicts {
		advisors[i] = votingAdvisor{name: string(rune('a' + i)), verdict: v}
	}

	store := memory.New()
	posmgr := position.NewManager(position.DefaultConfig(), store)
	sc := scanner.New(ex, strategy.NewScorer(strategy.Select(strategy.DefaultStrategyNames), 0, 0))
	eng := New(Config{OrderAmountKRW: 100_000, MaxPositions: 2, MinScore: 60},
		ex, sc, consensus.NewDebate(advisors...), posmgr, store, Options{})
	return &harness{eng: eng, ex: ex, store: store, posmgr: posmgr}
}

// ─────────────────────────────────────────────
// Buy flow
// ─────────────────────────────────────────────

func TestScanAndBuy_OpensPosition(t *testing.T) {
	ex := &fakeExchange{
		markets:  []string{"KRW-AAA"},
		candles:  map[string][]model.Candle{"KRW-AAA": oversoldCandles("KRW-AAA")},
		prices:   map[string]float64{"KRW-AAA": 147},
		balances: map[string]float64{"KRW": 500_000},
	}
	h := newHarness(t, ex)

	h.eng.scanAndBuy(context.Background())

	if len(ex.buys) != 1 || ex.buys[0] != "KRW-AAA" {
		t.Fatalf("buys: %v", ex.buys)
	}
	pos, ok := h.posmgr.Get("KRW-AAA")
	if !ok {
		t.Fatal("no position opened")
	}
	if pos.EntryPrice != 147 {
		t.Errorf("entry price: %v", pos.EntryPrice)
	}
	if pos.Strategy == "" || pos.Target <= pos.EntryPrice {
		t.Errorf("position not carrying signal fields: %+v", pos)
	}

	trades, _ := h.store.Trades(context.Background(), 10)
	if len(trades) != 1 || trades[0].Action != model.ActionBuy {
		t.Fatalf("trades: %+v", trades)
	}
	if trades[0].TotalKRW != 100_000 {
		t.Errorf("order amount: %v", trades[0].TotalKRW)
	}
}

func TestScanAndBuy_ConsensusRejected(t *testing.T) {
	ex := &fakeExchange{
		markets:  []string{"KRW-AAA"},
		candles:  map[string][]model.Candle{"KRW-AAA": oversoldCandles("KRW-AAA")},
		prices:   map[string]float64{"KRW-AAA": 147},
		balances: map[string]float64{"KRW": 500_000},
	}
	h := newHarness(t, ex, model.VerdictBuy, model.VerdictHold, model.VerdictSell)

	h.eng.scanAndBuy(context.Background())

	if len(ex.buys) != 0 {
		t.Errorf("bought despite one buy vote: %v", ex.buys)
	}
	if h.posmgr.Count() != 0 {
		t.Errorf("positions: %d", h.posmgr.Count())
	}
}

func TestScanAndBuy_RespectsMaxPositions(t *testing.T) {
	ex := &fakeExchange{
		markets: []string{"KRW-AAA"},
		candles: map[string][]model.Candle{"KRW-AAA": oversoldCandles("KRW-AAA")},
		prices:  map[string]float64{"KRW-AAA": 147, "KRW-XXX": 50, "KRW-YYY": 60},
		balances: map[string]float64{
			"KRW": 500_000,
		},
	}
	h := newHarness(t, ex)
	mustOpen(t, h.posmgr, "KRW-XXX", 50)
	mustOpen(t, h.posmgr, "KRW-YYY", 60)

	h.eng.scanAndBuy(context.Background())

	if len(ex.buys) != 0 {
		t.Errorf("bought past the position cap: %v", ex.buys)
	}
}

func TestScanAndBuy_InsufficientKRW(t *testing.T) {
	ex := &fakeExchange{
		markets:  []string{"KRW-AAA"},
		candles:  map[string][]model.Candle{"KRW-AAA": oversoldCandles("KRW-AAA")},
		prices:   map[string]float64{"KRW-AAA": 147},
		balances: map[string]float64{"KRW": 3_000}, // under min order
	}
	h := newHarness(t, ex)

	h.eng.scanAndBuy(context.Background())

	if len(ex.buys) != 0 {
		t.Errorf("bought with %v KRW: %v", ex.balances["KRW"], ex.buys)
	}
}

func TestBuy_RejectionRecordsAndSkips(t *testing.T) {
	ex := &fakeExchange{
		markets:   []string{"KRW-AAA"},
		candles:   map[string][]model.Candle{"KRW-AAA": oversoldCandles("KRW-AAA")},
		prices:    map[string]float64{"KRW-AAA": 147},
		balances:  map[string]float64{"KRW": 500_000},
		rejectBuy: &model.OrderRejectedError{Market: "KRW-AAA", Message: "주문가능금액 부족"},
	}
	h := newHarness(t, ex)

	h.eng.scanAndBuy(context.Background())

	if h.posmgr.Count() != 0 {
		t.Errorf("position opened on rejected order")
	}
	trades, _ := h.store.Trades(context.Background(), 10)
	if len(trades) != 1 || !trades[0].Rejected {
		t.Fatalf("expected one rejected record, got %+v", trades)
	}
	if trades[0].Error == "" {
		t.Error("rejection message not recorded")
	}
}

// ─────────────────────────────────────────────
// Monitor flow
// ─────────────────────────────────────────────

func mustOpen(t *testing.T, pm *position.Manager, market string, entry float64) {
	t.Helper()
	err := pm.Open(context.Background(), model.Position{
		Market:     market,
		EntryPrice: entry,
		Quantity:   1,
		EntryTime:  time.Now().Add(-time.Hour),
		Target:     entry * 1.08,
		Strategy:   "rsi_reversal",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMonitor_HardStopSellsAndRecords(t *testing.T) {
	ex := &fakeExchange{
		prices:   map[string]float64{"KRW-BBB": 94},
		balances: map[string]float64{},
	}
	h := newHarness(t, ex)
	mustOpen(t, h.posmgr, "KRW-BBB", 100)

	h.eng.monitor(context.Background())

	if len(ex.sells) != 1 || ex.sells[0] != "KRW-BBB" {
		t.Fatalf("sells: %v", ex.sells)
	}
	if h.posmgr.Count() != 0 {
		t.Fatal("position not closed")
	}
	trades, _ := h.store.Trades(context.Background(), 10)
	if len(trades) != 1 || trades[0].Action != model.ActionSell {
		t.Fatalf("trades: %+v", trades)
	}
	if trades[0].ProfitRate == nil || *trades[0].ProfitRate != -6 {
		t.Errorf("profit rate: %v", trades[0].ProfitRate)
	}
	if trades[0].Profit == nil || *trades[0].Profit >= 0 {
		t.Errorf("profit: %v", trades[0].Profit)
	}
}

func TestMonitor_PriceFailureSkipsMarket(t *testing.T) {
	ex := &fakeExchange{
		prices:   map[string]float64{},
		priceErr: map[string]error{"KRW-BBB": model.ErrUnavailable},
		balances: map[string]float64{},
	}
	h := newHarness(t, ex)
	mustOpen(t, h.posmgr, "KRW-BBB", 100)

	h.eng.monitor(context.Background())

	if len(ex.sells) != 0 {
		t.Errorf("sold on failed quote: %v", ex.sells)
	}
	if h.posmgr.Count() != 1 {
		t.Error("position dropped on failed quote")
	}
	if st := h.eng.Status(); st.Errors["KRW-BBB"] == "" {
		t.Error("price failure not surfaced in status")
	}
}

func TestSell_RejectionKeepsPosition(t *testing.T) {
	ex := &fakeExchange{
		prices:    map[string]float64{"KRW-BBB": 94},
		balances:  map[string]float64{},
		rejectSel: &model.OrderRejectedError{Market: "KRW-BBB", Message: "주문수량 부족"},
	}
	h := newHarness(t, ex)
	mustOpen(t, h.posmgr, "KRW-BBB", 100)

	h.eng.monitor(context.Background())

	if h.posmgr.Count() != 1 {
		t.Fatal("position closed despite rejected sell")
	}
	trades, _ := h.store.Trades(context.Background(), 10)
	if len(trades) != 1 || !trades[0].Rejected {
		t.Fatalf("expected rejected record, got %+v", trades)
	}
}

// ─────────────────────────────────────────────
// Sell-side signal on held markets
// ─────────────────────────────────────────────

// overboughtCandles rallies steadily and spikes on the last bar,
// pushing RSI and %B into the sell bands.
func overboughtCandles(market string) []model.Candle {
	out := make([]model.Candle, 0, 25)
	price := 100.0
	for i := 0; i < 24; i++ {
		next := price * 1.03
		out = append(out, model.Candle{Market: market, Open: price, High: next * 1.002, Low: price * 0.999, Close: next, Volume: 1e8})
		price = next
	}
	up := price * 1.10
	out = append(out, model.Candle{Market: market, Open: price, High: up * 1.002, Low: price * 0.999, Close: up, Volume: 2e8})
	return out
}

func TestCheckSellSignals_OverboughtExits(t *testing.T) {
	ex := &fakeExchange{
		candles: map[string][]model.Candle{"KRW-AAA": overboughtCandles("KRW-AAA")},
	}
	h := newHarness(t, ex)
	ctx := context.Background()

	if err := h.posmgr.Open(ctx, model.Position{
		Market: "KRW-AAA", EntryPrice: 100, Quantity: 1, EntryTime: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	h.eng.checkSellSignals(ctx)

	if len(ex.sells) != 1 || ex.sells[0] != "KRW-AAA" {
		t.Fatalf("sells: %v", ex.sells)
	}
	if h.posmgr.Count() != 0 {
		t.Error("position still open after the sell signal fired")
	}

	trades, _ := h.store.Trades(ctx, 1)
	if len(trades) != 1 || trades[0].Action != model.ActionSell {
		t.Fatalf("trade log: %+v", trades)
	}
	if !strings.Contains(trades[0].Rationale, "과매수") {
		t.Errorf("rationale: %q", trades[0].Rationale)
	}
	if trades[0].Profit == nil || *trades[0].Profit <= 0 {
		t.Errorf("profit: %+v", trades[0])
	}
}

func TestCheckSellSignals_QuietMarketHolds(t *testing.T) {
	ex := &fakeExchange{
		candles: map[string][]model.Candle{"KRW-AAA": oversoldCandles("KRW-AAA")},
	}
	h := newHarness(t, ex)
	ctx := context.Background()

	if err := h.posmgr.Open(ctx, model.Position{
		Market: "KRW-AAA", EntryPrice: 300, Quantity: 1, EntryTime: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	h.eng.checkSellSignals(ctx)

	if len(ex.sells) != 0 || h.posmgr.Count() != 1 {
		t.Errorf("unexpected exit: sells=%v open=%d", ex.sells, h.posmgr.Count())
	}
}

// ─────────────────────────────────────────────
// Restart recovery
// ─────────────────────────────────────────────

func TestRecover_ReconcilesAgainstBalances(t *testing.T) {
	ex := &fakeExchange{
		balances: map[string]float64{"BBB": 1.0, "CCC": 0},
	}
	h := newHarness(t, ex)

	// Seed the store directly, as a previous process would have.
	ctx := context.Background()
	h.store.SavePosition(ctx, model.Position{Market: "KRW-BBB", EntryPrice: 100, Quantity: 1, EntryTime: time.Now()})
	h.store.SavePosition(ctx, model.Position{Market: "KRW-CCC", EntryPrice: 50, Quantity: 2, EntryTime: time.Now()})

	if err := h.eng.recover(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok := h.posmgr.Get("KRW-BBB"); !ok {
		t.Error("held position dropped")
	}
	if _, ok := h.posmgr.Get("KRW-CCC"); ok {
		t.Error("externally closed position kept")
	}
	open, _ := h.store.OpenPositions(ctx)
	if len(open) != 1 {
		t.Errorf("store after reconcile: %+v", open)
	}
}

// ─────────────────────────────────────────────
// Manual orders
// ─────────────────────────────────────────────

func TestManualSell(t *testing.T) {
	ex := &fakeExchange{
		prices:   map[string]float64{"KRW-BBB": 103},
		balances: map[string]float64{},
	}
	h := newHarness(t, ex)
	mustOpen(t, h.posmgr, "KRW-BBB", 100)

	if err := h.eng.ManualSell(context.Background(), "KRW-BBB"); err != nil {
		t.Fatal(err)
	}
	if h.posmgr.Count() != 0 {
		t.Fatal("position still open")
	}
	trades, _ := h.store.Trades(context.Background(), 10)
	if len(trades) != 1 || trades[0].ProfitRate == nil {
		t.Fatalf("trades: %+v", trades)
	}
	if got := *trades[0].ProfitRate; got < 2.9 || got > 3.1 {
		t.Errorf("profit rate: %v", got)
	}
}

func TestManualSell_NoPosition(t *testing.T) {
	h := newHarness(t, &fakeExchange{balances: map[string]float64{}})
	err := h.eng.ManualSell(context.Background(), "KRW-ZZZ")
	if !errors.Is(err, position.ErrNoPosition) {
		t.Errorf("err: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	ex := &fakeExchange{
		markets:  []string{},
		balances: map[string]float64{"KRW": 0},
	}
	h := newHarness(t, ex)
	h.eng.Configure(Config{ScanInterval: time.Hour, MonitorInterval: time.Hour})

	h.eng.Start()
	deadline := time.Now().Add(2 * time.Second)
	for !h.eng.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("engine never reported running")
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.eng.Stop()
	if h.eng.Status().Running {
		t.Error("engine still running after Stop")
	}
	h.eng.Stop() // idempotent
}
