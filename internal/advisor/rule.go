package advisor

import (
	"context"
	"fmt"
	"time"

	"coinhero/internal/model"
)

// Rule is the deterministic voice on the panel: it converts the
// rule-based strategy score already present in the market context into
// an opinion, so the consensus always has at least one participant
// even with every LLM down.
type Rule struct{}

func (Rule) Name() string { return "rule" }

// RequestOpinion maps the strategy score to a verdict: 80+ strong buy,
// threshold-to-80 buy, oversold/overbought conditions nudge off hold.
// Confidence tracks the score itself. Never fails.
func (Rule) RequestOpinion(_ context.Context, market string, mc model.MarketContext, _ []model.Opinion) (*model.Opinion, error) {
	op := &model.Opinion{
		Source:     "rule",
		Market:     market,
		Verdict:    model.VerdictHold,
		Confidence: 50,
		KeyPoints:  mc.Reasons,
		TS:         time.Now(),
	}

	switch {
	case mc.Score >= 80:
		op.Verdict = model.VerdictStrongBuy
		op.Confidence = model.Clamp100(mc.Score)
	case mc.Score >= 60:
		op.Verdict = model.VerdictBuy
		op.Confidence = model.Clamp100(mc.Score)
	case mc.RSI >= 75 && mc.PercentB >= 95:
		op.Verdict = model.VerdictSell
		op.Confidence = 60
	}

	if op.Verdict == model.VerdictHold {
		op.Rationale = "전략 점수 기준 미달, 관망"
	} else {
		op.Rationale = fmt.Sprintf("전략 점수 %.1f점", mc.Score)
	}
	return op, nil
}
