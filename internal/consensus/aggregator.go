// Package consensus merges independent market opinions into a single
// verdict. Opinions come from rule-based scorers and external advisors
// alike; the aggregator does not care who produced them.
package consensus

import "coinhero/internal/model"

// Verdict band cutoffs over the confidence-weighted mean in [-2, +2].
const (
	strongBuyCutoff = 1.5
	buyCutoff       = 0.5
	holdCutoff      = -0.5
	sellCutoff      = -1.5
)

const maxKeyPoints = 5

// Aggregate folds opinions into one Consensus. The math is a
// confidence-weighted mean of the signed verdict weights, so the result
// depends only on the multiset of opinions, never their order. Zero
// opinions yield a hold at 50 confidence.
func Aggregate(market string, opinions []model.Opinion) model.Consensus {
	c := model.Consensus{Market: market, Verdict: model.VerdictHold, AvgConfidence: 50, Opinions: opinions}
	if len(opinions) == 0 {
		return c
	}

	var weighted, confSum float64
	seen := make(map[string]bool)
	for _, op := range opinions {
		conf := model.Clamp100(op.Confidence)
		weighted += op.Verdict.Weight() * conf / 100
		confSum += conf
		if op.Verdict.BuySide() {
			c.BuyVotes++
		}
		taken := 0
		for _, kp := range op.KeyPoints {
			if taken >= 2 || len(c.KeyPoints) >= maxKeyPoints {
				break
			}
			if seen[kp] {
				continue // two advisors citing the same point is one point
			}
			seen[kp] = true
			c.KeyPoints = append(c.KeyPoints, kp)
			taken++
		}
	}

	n := float64(len(opinions))
	c.WeightedScore = weighted / n
	c.AvgConfidence = confSum / n
	c.Verdict = bandVerdict(c.WeightedScore)
	return c
}

func bandVerdict(score float64) model.Verdict {
	switch {
	case score >= strongBuyCutoff:
		return model.VerdictStrongBuy
	case score >= buyCutoff:
		return model.VerdictBuy
	case score >= holdCutoff:
		return model.VerdictHold
	case score >= sellCutoff:
		return model.VerdictSell
	default:
		return model.VerdictStrongSell
	}
}
