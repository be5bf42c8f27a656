// Package strategy scores candle windows into trading signals.
//
// A Strategy is a named rule set that inspects one instrument's Window
// and answers a 0..100 score with a human-readable reason. The Scorer
// runs every registered strategy, takes the best score, rewards
// corroboration when several strategies agree, and maps the result to
// a buy/hold signal.
package strategy

// Strategy evaluates one market window. A zero score means the setup
// is absent; anything positive carries a reason string for the trade
// log and the advisor prompt.
type Strategy interface {
	// Name returns the strategy's registry key.
	Name() string

	// TargetPct is the take-profit target in percent for positions
	// opened on this strategy's signal.
	TargetPct() float64

	// Evaluate scores the window. Implementations never error on
	// normal market data; a window that is too short scores 0.
	Evaluate(w Window) (score float64, reason string)
}

// Registry holds every built-in strategy keyed by name.
func Registry() map[string]Strategy {
	all := []Strategy{
		VolatilityBreakout{},
		RSIReversal{},
		BollingerBounce{},
		VolumeSurge{},
		MomentumBreakout{},
		LarryWilliamsR{},
		LarryOops{},
		LarrySmashDay{},
		LarryCombo{},
	}
	m := make(map[string]Strategy, len(all))
	for _, s := range all {
		m[s.Name()] = s
	}
	return m
}

// DefaultStrategyNames is the active set when no configuration is
// given. These fire on daily candles and cover breakout, reversal and
// volume regimes.
var DefaultStrategyNames = []string{
	"volatility_breakout",
	"rsi_reversal",
	"bollinger_bounce",
	"volume_surge",
	"momentum_breakout",
	"larry_williams_r",
	"larry_combo",
}

// Select resolves names against the registry, skipping unknown ones.
func Select(names []string) []Strategy {
	reg := Registry()
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		if s, ok := reg[n]; ok {
			out = append(out, s)
		}
	}
	return out
}
