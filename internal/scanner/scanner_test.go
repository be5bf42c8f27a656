package scanner

import (
	"context"
	"testing"

	"coinhero/internal/model"
	"coinhero/internal/strategy"
)

// fakeExchange serves canned candles per market.
type fakeExchange struct {
	markets []string
	candles map[string][]model.Candle
	fail    map[string]bool
}

func (f *fakeExchange) Markets(context.Context) ([]string, error) { return f.markets, nil }

func (f *fakeExchange) Candles(_ context.Context, market string, _ model.Interval, _ int) ([]model.Candle, error) {
	if f.fail[market] {
		return nil, model.ErrUnavailable
	}
	return f.candles[market], nil
}

func (f *fakeExchange) CurrentPrice(_ context.Context, market string) (float64, error) {
	cs := f.candles[market]
	if len(cs) == 0 {
		return 0, model.ErrUnavailable
	}
	return cs[len(cs)-1].Close, nil
}

func (f *fakeExchange) Balance(context.Context, string) (float64, error) { return 0, nil }
func (f *fakeExchange) MarketBuy(context.Context, string, float64) (*model.Fill, error) {
	return nil, model.ErrUnavailable
}
func (f *fakeExchange) MarketSell(context.Context, string, float64) (*model.Fill, error) {
	return nil, model.ErrUnavailable
}

// surgeWindow is a window that fires the oversold-reversal strategies,
// scaled so the last candle's turnover is tradeValue KRW.
func surgeWindow(market string, tradeValue float64) []model.Candle {
	out := make([]model.Candle, 0, 25)
	price := 300.0
	for i := 0; i < 24; i++ {
		next := price * 0.97
		out = append(out, model.Candle{Market: market, Open: price, High: price * 1.002, Low: next * 0.998, Close: next, Volume: 100})
		price = next
	}
	up := price * 1.004
	out = append(out, model.Candle{Market: market, Open: price, High: up * 1.002, Low: price * 0.999, Close: up, Volume: tradeValue / up})
	return out
}

// flatCandles never scores.
func flatCandles(market string, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{Market: market, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1e9}
	}
	return out
}

func testScanner(f *fakeExchange) *Scanner {
	return New(f, strategy.NewScorer(strategy.Select(strategy.DefaultStrategyNames), 0, 0))
}

func TestScan_FiltersAndRanks(t *testing.T) {
	f := &fakeExchange{
		markets: []string{"KRW-AAA", "KRW-BBB", "KRW-CCC", "KRW-DDD", "KRW-EEE"},
		candles: map[string][]model.Candle{
			"KRW-AAA": surgeWindow("KRW-AAA", 5e9), // scores, liquid
			"KRW-BBB": flatCandles("KRW-BBB", 25),  // liquid but no setup
			"KRW-CCC": surgeWindow("KRW-CCC", 1e8), // scores but too thin
			"KRW-DDD": flatCandles("KRW-DDD", 5),   // short window
			"KRW-EEE": surgeWindow("KRW-EEE", 5e9), // scores, liquid
		},
		fail: map[string]bool{},
	}

	got, err := testScanner(f).Scan(context.Background(), Config{MinScore: 60})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("candidates: %d (%+v)", len(got), got)
	}
	for _, c := range got {
		if c.Market != "KRW-AAA" && c.Market != "KRW-EEE" {
			t.Errorf("unexpected candidate %s", c.Market)
		}
		if c.Signal.Score < 60 {
			t.Errorf("%s under cut: %v", c.Market, c.Signal.Score)
		}
		if c.Context.RSI >= 38 {
			t.Errorf("%s context RSI: %v", c.Market, c.Context.RSI)
		}
	}
	if got[0].Signal.Score < got[1].Signal.Score {
		t.Errorf("not sorted by score: %v then %v", got[0].Signal.Score, got[1].Signal.Score)
	}
}

func TestScan_ExcludesHeldMarkets(t *testing.T) {
	f := &fakeExchange{
		markets: []string{"KRW-AAA", "KRW-EEE"},
		candles: map[string][]model.Candle{
			"KRW-AAA": surgeWindow("KRW-AAA", 5e9),
			"KRW-EEE": surgeWindow("KRW-EEE", 5e9),
		},
	}

	got, err := testScanner(f).Scan(context.Background(), Config{MinScore: 60, Exclude: []string{"KRW-AAA"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Market != "KRW-EEE" {
		t.Errorf("candidates: %+v", got)
	}
}

func TestScan_SkipsFailingMarkets(t *testing.T) {
	f := &fakeExchange{
		markets: []string{"KRW-AAA", "KRW-EEE"},
		candles: map[string][]model.Candle{
			"KRW-EEE": surgeWindow("KRW-EEE", 5e9),
		},
		fail: map[string]bool{"KRW-AAA": true},
	}

	got, err := testScanner(f).Scan(context.Background(), Config{MinScore: 60})
	if err != nil {
		t.Fatalf("one bad market aborted the sweep: %v", err)
	}
	if len(got) != 1 || got[0].Market != "KRW-EEE" {
		t.Errorf("candidates: %+v", got)
	}
}

func TestScan_MaxCandidates(t *testing.T) {
	f := &fakeExchange{
		markets: []string{"KRW-AAA", "KRW-BBB", "KRW-CCC"},
		candles: map[string][]model.Candle{
			"KRW-AAA": surgeWindow("KRW-AAA", 5e9),
			"KRW-BBB": surgeWindow("KRW-BBB", 5e9),
			"KRW-CCC": surgeWindow("KRW-CCC", 5e9),
		},
	}

	got, err := testScanner(f).Scan(context.Background(), Config{MinScore: 60, MaxCandidates: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("candidates: %d", len(got))
	}
}

func TestAnalyze_ConditionBands(t *testing.T) {
	oversold := surgeWindow("KRW-AAA", 5e9)
	mc := Analyze("KRW-AAA", oversold, model.Signal{Score: 80})
	if mc.Condition != "oversold" {
		t.Errorf("condition: %q", mc.Condition)
	}
	if mc.Support <= 0 || mc.Resistance <= mc.Support {
		t.Errorf("levels: support %v resistance %v", mc.Support, mc.Resistance)
	}

	flat := flatCandles("KRW-BBB", 25)
	if mc := Analyze("KRW-BBB", flat, model.Signal{}); mc.Condition != "neutral" {
		t.Errorf("flat condition: %q", mc.Condition)
	}
}
