package consensus

import (
	"context"
	"log"
	"time"

	"coinhero/internal/model"
)

// Debate runs a panel of advisors over one market, sequentially, each
// advisor seeing the opinions voiced before it. An advisor that fails
// or returns garbage simply contributes nothing; the round degrades to
// whatever opinions remain.
type Debate struct {
	advisors []model.Advisor
	observe  func(advisor string, elapsed time.Duration, failed bool)
}

// NewDebate builds a debate over the given advisor panel.
func NewDebate(advisors ...model.Advisor) *Debate {
	return &Debate{advisors: advisors}
}

// Observe installs a callback invoked after every advisor request with
// its round-trip time and whether it produced an opinion.
func (d *Debate) Observe(fn func(advisor string, elapsed time.Duration, failed bool)) {
	d.observe = fn
}

// Run collects one opinion per advisor and aggregates them. The prior
// opinions are passed along so later advisors can agree or push back,
// matching a round-table debate rather than an isolated poll.
func (d *Debate) Run(ctx context.Context, market string, mc model.MarketContext) model.Consensus {
	opinions := make([]model.Opinion, 0, len(d.advisors))
	for _, a := range d.advisors {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		op, err := a.RequestOpinion(ctx, market, mc, opinions)
		if d.observe != nil {
			d.observe(a.Name(), time.Since(start), err != nil || op == nil)
		}
		if err != nil || op == nil {
			log.Printf("[consensus] %s: no opinion from %s: %v", market, a.Name(), err)
			continue
		}
		opinions = append(opinions, *op)
	}
	return Aggregate(market, opinions)
}
