package backtest

import (
	"math"
	"testing"

	"coinhero/internal/model"
	"coinhero/internal/strategy"
)

func testRunner(cfg Config) *Runner {
	return New(strategy.NewScorer(strategy.Select(strategy.DefaultStrategyNames), 0, 0), cfg)
}

// reboundSeries declines 3% per bar, upticks, then rallies. The uptick
// bar fires the oversold-reversal strategies; the rally bars carry the
// paper position into profit.
func reboundSeries(market string) []model.Candle {
	var out []model.Candle
	price := 300.0
	push := func(next float64, vol float64) {
		hi, lo := price, next
		if next > price {
			hi, lo = next, price
		}
		out = append(out, model.Candle{Market: market, Open: price, High: hi * 1.002, Low: lo * 0.998, Close: next, Volume: vol})
		price = next
	}
	for i := 0; i < 24; i++ {
		push(price*0.97, 100)
	}
	push(price*1.004, 500) // rebound bar
	for i := 0; i < 3; i++ {
		push(price*1.04, 50)
	}
	return out
}

func flatSeries(market string, n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{Market: market, Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 100}
	}
	return out
}

func TestRun_ReboundTradesProfitably(t *testing.T) {
	res, err := testRunner(Config{}).Run("KRW-AAA", reboundSeries("KRW-AAA"))
	if err != nil {
		t.Fatal(err)
	}

	if res.Buys < 1 || res.Sells < 1 {
		t.Fatalf("buys %d sells %d (trades %+v)", res.Buys, res.Sells, res.Trades)
	}
	if res.ProfitKRW <= 0 {
		t.Errorf("profit: %v", res.ProfitKRW)
	}
	// Only rising bars follow the entry, so every exit is a win.
	if res.Losses != 0 || res.WinRate != 100 {
		t.Errorf("losses %d win rate %v", res.Losses, res.WinRate)
	}

	// Bankroll accounting: final = initial + sum of realized deltas.
	if !res.OpenAtClose {
		var sellProceeds, buyCost float64
		for _, tr := range res.Trades {
			switch tr.Action {
			case model.ActionBuy:
				buyCost += tr.TotalKRW
			case model.ActionSell:
				sellProceeds += tr.TotalKRW
			}
		}
		want := 1_000_000 - buyCost + sellProceeds
		if math.Abs(res.FinalKRW-want) > 1e-6 {
			t.Errorf("final KRW %v, want %v", res.FinalKRW, want)
		}
	}

	for _, tr := range res.Trades {
		if tr.Action == model.ActionSell {
			if tr.Profit == nil || *tr.Profit <= 0 {
				t.Errorf("sell profit: %v", tr.Profit)
			}
			if tr.Rationale == "" {
				t.Error("exit label missing")
			}
		}
	}
}

func TestRun_FlatSeriesNeverTrades(t *testing.T) {
	res, err := testRunner(Config{}).Run("KRW-BBB", flatSeries("KRW-BBB", 40))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("trades on flat series: %+v", res.Trades)
	}
	if res.FinalKRW != 1_000_000 || res.ReturnPct != 0 {
		t.Errorf("final %v return %v", res.FinalKRW, res.ReturnPct)
	}
}

func TestRun_InsufficientCandles(t *testing.T) {
	if _, err := testRunner(Config{}).Run("KRW-CCC", flatSeries("KRW-CCC", 10)); err == nil {
		t.Fatal("expected error for short series")
	}
}

func TestRun_HardStopLoss(t *testing.T) {
	// Rebound bar triggers a buy, then the market keeps falling.
	series := reboundSeries("KRW-DDD")[:25] // ends right after the buy bar
	price := series[len(series)-1].Close
	for i := 0; i < 3; i++ {
		next := price * 0.94
		series = append(series, model.Candle{Market: "KRW-DDD", Open: price, High: price, Low: next, Close: next, Volume: 100})
		price = next
	}

	res, err := testRunner(Config{}).Run("KRW-DDD", series)
	if err != nil {
		t.Fatal(err)
	}
	if res.Buys != 1 || res.Sells != 1 {
		t.Fatalf("buys %d sells %d", res.Buys, res.Sells)
	}
	if res.Losses != 1 || res.ProfitKRW >= 0 {
		t.Errorf("losses %d profit %v", res.Losses, res.ProfitKRW)
	}
}
