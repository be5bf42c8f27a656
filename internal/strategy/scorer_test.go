package strategy

import (
	"math"
	"strings"
	"testing"

	"coinhero/internal/model"
)

// dayCandle builds a flat-ish daily candle around close.
func dayCandle(open, high, low, close, volume float64) model.Candle {
	return model.Candle{Market: "KRW-TEST", Open: open, High: high, Low: low, Close: close, Volume: volume}
}

// flatWindow returns n identical candles at the given price.
func flatWindow(n int, price float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = dayCandle(price, price*1.01, price*0.99, price, 100)
	}
	return out
}

func defaultScorer() *Scorer {
	return NewScorer(Select(DefaultStrategyNames), 0, 0)
}

func TestScore_ShortWindowHolds(t *testing.T) {
	sc := defaultScorer()
	sig := sc.Score("KRW-BTC", flatWindow(5, 50000))

	if sig.Action != model.ActionHold {
		t.Errorf("action: got %v, want hold", sig.Action)
	}
	if sig.Score != 0 {
		t.Errorf("score: got %v, want 0", sig.Score)
	}
	if len(sig.Reasons) == 0 || !strings.Contains(sig.Reasons[0], "데이터 부족") {
		t.Errorf("want insufficient-data reason, got %v", sig.Reasons)
	}
}

func TestScore_FlatMarketHolds(t *testing.T) {
	sc := defaultScorer()
	sig := sc.Score("KRW-BTC", flatWindow(30, 50000))

	if sig.Action != model.ActionHold || sig.Score != 0 {
		t.Errorf("flat market: got action %v score %v, want hold/0", sig.Action, sig.Score)
	}
}

// oversoldWindow builds a long decline with a final small uptick, the
// classic RSI-reversal shape.
func oversoldWindow() []model.Candle {
	out := make([]model.Candle, 0, 25)
	price := 300.0
	for i := 0; i < 24; i++ {
		next := price * 0.97
		out = append(out, dayCandle(price, price*1.002, next*0.998, next, 100))
		price = next
	}
	// Uptick: green candle, positive close-over-close change.
	up := price * 1.004
	out = append(out, dayCandle(price, up*1.002, price*0.999, up, 120))
	return out
}

func TestScore_OversoldReversalBuys(t *testing.T) {
	sc := defaultScorer()
	sig := sc.Score("KRW-BTC", oversoldWindow())

	if sig.Action != model.ActionBuy {
		t.Fatalf("action: got %v (score %.1f, reasons %v), want buy", sig.Action, sig.Score, sig.Reasons)
	}
	if sig.Score < sc.BuyThreshold() {
		t.Errorf("score %0.1f below threshold %0.1f", sig.Score, sc.BuyThreshold())
	}

	found := false
	for _, r := range sig.Reasons {
		if strings.Contains(r, "과매도") {
			found = true
		}
	}
	if !found {
		t.Errorf("want an oversold (과매도) reason, got %v", sig.Reasons)
	}

	if sig.Target <= sig.StopLoss || sig.StopLoss == 0 {
		t.Errorf("target/stop not set: target %v stop %v", sig.Target, sig.StopLoss)
	}
}

func TestScore_ClampedTo100(t *testing.T) {
	// Massive breakout on huge volume: raw scores overflow 100.
	w := flatWindow(30, 100)
	last := &w[len(w)-1]
	last.Open = 100
	last.Close = 140
	last.High = 141
	last.Volume = 2000

	sc := defaultScorer()
	sig := sc.Score("KRW-BTC", w)
	if sig.Score > 100 {
		t.Errorf("score not clamped: %v", sig.Score)
	}
	if sig.Action != model.ActionBuy {
		t.Errorf("action: got %v, want buy", sig.Action)
	}
}

func TestScore_CorroborationBonus(t *testing.T) {
	// One matched strategy gets no bonus; the bonus applies per
	// additional corroborating strategy.
	w := oversoldWindow()

	solo := NewScorer(Select([]string{"rsi_reversal"}), 0, 0).Score("KRW-BTC", w)
	multi := defaultScorer().Score("KRW-BTC", w)

	if len(multi.Reasons) > 1 {
		wantMin := solo.Score + CorroborationBonus*float64(len(multi.Reasons)-1)
		if multi.Score < math.Min(wantMin, 100)-1e-9 && multi.Score < 100 {
			t.Errorf("corroboration bonus missing: solo %.1f, multi %.1f with %d reasons",
				solo.Score, multi.Score, len(multi.Reasons))
		}
	}
}

func TestSellSignal_OverboughtSells(t *testing.T) {
	// Strong ramp with shallow pullbacks (so RSI computes high rather
	// than hitting the zero-loss guard), ending in a blow-off candle
	// through the upper band.
	out := make([]model.Candle, 0, 30)
	price := 100.0
	for i := 0; i < 29; i++ {
		next := price * 1.05
		if i%3 == 2 {
			next = price * 0.995
		}
		out = append(out, dayCandle(price, math.Max(price, next)*1.002, math.Min(price, next)*0.999, next, 100))
		price = next
	}
	out = append(out, dayCandle(price, price*1.16, price*0.999, price*1.15, 300))

	sc := defaultScorer()
	sig := sc.SellSignal("KRW-BTC", out, 12.0)

	if sig.Action != model.ActionSell {
		t.Fatalf("action: got %v (score %.1f, reasons %v), want sell", sig.Action, sig.Score, sig.Reasons)
	}
}

func TestSellSignal_NeutralHolds(t *testing.T) {
	sc := defaultScorer()
	sig := sc.SellSignal("KRW-BTC", flatWindow(30, 100), 0.5)

	if sig.Action != model.ActionHold {
		t.Errorf("action: got %v (reasons %v), want hold", sig.Action, sig.Reasons)
	}
}

func TestRegistry_AllNamesResolve(t *testing.T) {
	reg := Registry()
	for _, n := range DefaultStrategyNames {
		if _, ok := reg[n]; !ok {
			t.Errorf("default strategy %q missing from registry", n)
		}
	}
	if got := len(Select([]string{"rsi_reversal", "no_such_strategy"})); got != 1 {
		t.Errorf("Select with unknown name: got %d strategies, want 1", got)
	}
}

func TestVolatilityBreakout_FiresOnRangeBreak(t *testing.T) {
	w := flatWindow(30, 100)
	// Yesterday's range 10 wide; today opens at 100 and clears
	// open + 0.5×range = 105 on strong volume.
	w[28] = dayCandle(100, 105, 95, 100, 100)
	w[29] = dayCandle(100, 108, 99, 107, 200)

	score, reason := VolatilityBreakout{}.Evaluate(NewWindow(w))
	if score <= 0 {
		t.Fatalf("breakout did not fire")
	}
	if !strings.Contains(reason, "변동성 돌파") {
		t.Errorf("reason: got %q", reason)
	}
}

func TestLarryOops_RequiresGapDownReclaim(t *testing.T) {
	w := flatWindow(30, 100)
	w[28] = dayCandle(100, 102, 98, 100, 100) // yesterday, low 98
	w[29] = dayCandle(96, 101, 95, 100, 150)  // gap below 98, reclaimed

	score, _ := LarryOops{}.Evaluate(NewWindow(w))
	if score <= 0 {
		t.Fatalf("oops pattern did not fire")
	}

	// No gap down: must not fire.
	w[29] = dayCandle(99, 101, 98, 100, 150)
	if score, _ := (LarryOops{}).Evaluate(NewWindow(w)); score > 0 {
		t.Errorf("fired without a gap down: %v", score)
	}
}
