package consensus

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"coinhero/internal/model"
)

func op(v model.Verdict, conf float64, points ...string) model.Opinion {
	return model.Opinion{Source: "test", Market: "KRW-BTC", Verdict: v, Confidence: conf, KeyPoints: points}
}

func TestAggregate_MixedPanelHolds(t *testing.T) {
	// {buy@80, hold@50, sell@40}: (1×0.8 + 0×0.5 + -1×0.4)/3 = 0.1333,
	// inside the hold band.
	c := Aggregate("KRW-BTC", []model.Opinion{
		op(model.VerdictBuy, 80),
		op(model.VerdictHold, 50),
		op(model.VerdictSell, 40),
	})

	if math.Abs(c.WeightedScore-0.4/3) > 1e-9 {
		t.Errorf("weighted score: got %v, want %v", c.WeightedScore, 0.4/3)
	}
	if c.Verdict != model.VerdictHold {
		t.Errorf("verdict: got %v, want hold", c.Verdict)
	}
	if math.Abs(c.AvgConfidence-170.0/3) > 1e-9 {
		t.Errorf("avg confidence: got %v", c.AvgConfidence)
	}
	if c.BuyVotes != 1 {
		t.Errorf("buy votes: got %d, want 1", c.BuyVotes)
	}
}

func TestAggregate_VerdictBands(t *testing.T) {
	cases := []struct {
		name    string
		panel   []model.Opinion
		verdict model.Verdict
	}{
		{"unanimous strong buy", []model.Opinion{
			op(model.VerdictStrongBuy, 90), op(model.VerdictStrongBuy, 80), op(model.VerdictStrongBuy, 85),
		}, model.VerdictStrongBuy},
		{"solid buy", []model.Opinion{
			op(model.VerdictBuy, 90), op(model.VerdictBuy, 90), op(model.VerdictStrongBuy, 60),
		}, model.VerdictBuy},
		{"solid sell", []model.Opinion{
			op(model.VerdictSell, 90), op(model.VerdictSell, 80), op(model.VerdictHold, 50),
		}, model.VerdictSell},
		{"unanimous strong sell", []model.Opinion{
			op(model.VerdictStrongSell, 90), op(model.VerdictStrongSell, 85), op(model.VerdictStrongSell, 80),
		}, model.VerdictStrongSell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if c := Aggregate("KRW-BTC", tc.panel); c.Verdict != tc.verdict {
				t.Errorf("got %v (score %.3f), want %v", c.Verdict, c.WeightedScore, tc.verdict)
			}
		})
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	panel := []model.Opinion{
		op(model.VerdictStrongBuy, 95, "p1"),
		op(model.VerdictBuy, 70, "p2"),
		op(model.VerdictSell, 40, "p3"),
		op(model.VerdictHold, 55, "p4"),
	}
	base := Aggregate("KRW-BTC", panel)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]model.Opinion(nil), panel...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		c := Aggregate("KRW-BTC", shuffled)
		if c.Verdict != base.Verdict {
			t.Fatalf("verdict changed under reordering: %v vs %v", c.Verdict, base.Verdict)
		}
		if math.Abs(c.WeightedScore-base.WeightedScore) > 1e-9 || math.Abs(c.AvgConfidence-base.AvgConfidence) > 1e-9 {
			t.Fatalf("aggregate drifted under reordering")
		}
	}
}

func TestAggregate_EmptyPanelHolds(t *testing.T) {
	c := Aggregate("KRW-BTC", nil)
	if c.Verdict != model.VerdictHold {
		t.Errorf("verdict: got %v, want hold", c.Verdict)
	}
	if c.Tradable() {
		t.Error("empty panel must not be tradable")
	}
}

func TestAggregate_SingleOutlierNotTradable(t *testing.T) {
	// One screaming buy among holds clears no agreement gate.
	c := Aggregate("KRW-BTC", []model.Opinion{
		op(model.VerdictStrongBuy, 100),
		op(model.VerdictHold, 50),
		op(model.VerdictHold, 50),
	})
	if c.Tradable() {
		t.Errorf("single outlier tradable: verdict %v, votes %d", c.Verdict, c.BuyVotes)
	}

	// Two buys plus a hold: gate satisfied once the band agrees.
	c = Aggregate("KRW-BTC", []model.Opinion{
		op(model.VerdictStrongBuy, 90),
		op(model.VerdictBuy, 80),
		op(model.VerdictHold, 50),
	})
	if !c.Tradable() {
		t.Errorf("corroborated buy not tradable: verdict %v score %.3f votes %d", c.Verdict, c.WeightedScore, c.BuyVotes)
	}
}

func TestAggregate_KeyPointsCapped(t *testing.T) {
	c := Aggregate("KRW-BTC", []model.Opinion{
		op(model.VerdictBuy, 80, "a1", "a2", "a3"),
		op(model.VerdictBuy, 80, "b1", "b2"),
		op(model.VerdictBuy, 80, "c1", "c2"),
	})
	if len(c.KeyPoints) != 5 {
		t.Errorf("key points: got %d (%v), want 5", len(c.KeyPoints), c.KeyPoints)
	}
	for _, kp := range c.KeyPoints {
		if kp == "a3" {
			t.Error("took more than two points from one opinion")
		}
	}
}

func TestAggregate_KeyPointsDistinct(t *testing.T) {
	c := Aggregate("KRW-BTC", []model.Opinion{
		op(model.VerdictBuy, 80, "RSI 과매도", "거래량 급증"),
		op(model.VerdictBuy, 80, "RSI 과매도", "지지선 확인"),
	})
	want := []string{"RSI 과매도", "거래량 급증", "지지선 확인"}
	if len(c.KeyPoints) != len(want) {
		t.Fatalf("key points: got %v, want %v", c.KeyPoints, want)
	}
	for i, kp := range c.KeyPoints {
		if kp != want[i] {
			t.Errorf("key point %d: got %q, want %q", i, kp, want[i])
		}
	}
}

// scriptedAdvisor returns a fixed opinion or error.
type scriptedAdvisor struct {
	name string
	op   *model.Opinion
	err  error

	sawPrior int
}

func (s *scriptedAdvisor) Name() string { return s.name }

func (s *scriptedAdvisor) RequestOpinion(_ context.Context, _ string, _ model.MarketContext, prior []model.Opinion) (*model.Opinion, error) {
	s.sawPrior = len(prior)
	return s.op, s.err
}

func TestDebate_SkipsFailedAdvisors(t *testing.T) {
	good1 := &scriptedAdvisor{name: "a", op: &model.Opinion{Verdict: model.VerdictBuy, Confidence: 80}}
	bad := &scriptedAdvisor{name: "b", err: errors.New("boom")}
	good2 := &scriptedAdvisor{name: "c", op: &model.Opinion{Verdict: model.VerdictBuy, Confidence: 70}}

	c := NewDebate(good1, bad, good2).Run(context.Background(), "KRW-BTC", model.MarketContext{})

	if len(c.Opinions) != 2 {
		t.Fatalf("opinions: got %d, want 2", len(c.Opinions))
	}
	if c.BuyVotes != 2 || !c.Tradable() {
		t.Errorf("expected a tradable two-buy consensus, got %+v", c)
	}
	// The failed advisor contributes nothing to the later context.
	if good2.sawPrior != 1 {
		t.Errorf("later advisor saw %d prior opinions, want 1", good2.sawPrior)
	}
}

func TestDebate_AllAdvisorsDownHolds(t *testing.T) {
	bad := &scriptedAdvisor{name: "x", err: model.ErrUnavailable}
	c := NewDebate(bad, bad).Run(context.Background(), "KRW-BTC", model.MarketContext{})
	if c.Verdict != model.VerdictHold || c.Tradable() {
		t.Errorf("dead panel: got %v tradable=%v, want hold/false", c.Verdict, c.Tradable())
	}
}

func TestDebate_ObserverSeesEveryCall(t *testing.T) {
	good := &scriptedAdvisor{name: "a", op: &model.Opinion{Verdict: model.VerdictBuy, Confidence: 80}}
	bad := &scriptedAdvisor{name: "b", err: errors.New("boom")}

	type call struct {
		name   string
		failed bool
	}
	var calls []call
	d := NewDebate(good, bad)
	d.Observe(func(name string, _ time.Duration, failed bool) {
		calls = append(calls, call{name, failed})
	})
	d.Run(context.Background(), "KRW-BTC", model.MarketContext{})

	want := []call{{"a", false}, {"b", true}}
	if len(calls) != len(want) {
		t.Fatalf("calls: got %d, want %d", len(calls), len(want))
	}
	for i, c := range calls {
		if c != want[i] {
			t.Errorf("call %d: got %+v, want %+v", i, c, want[i])
		}
	}
}
