package position

import "time"

// Band maps a max-favorable-excursion threshold to the fraction of
// that peak the trailing stop must lock in once crossed.
type Band struct {
	MinPeakPct   float64 `yaml:"min_peak_pct" json:"min_peak_pct"`
	ProtectRatio float64 `yaml:"protect_ratio" json:"protect_ratio"`
}

// Config holds the exit-rule parameters. The banding constants vary
// between trader variants in practice, so everything here is data, not
// law; DefaultConfig gives the tuned daily-candle set.
type Config struct {
	// HardStopPct is the loss floor in percent. At or below it the
	// position is cut immediately, holding time notwithstanding.
	HardStopPct float64 `yaml:"hard_stop_pct" json:"hard_stop_pct"`

	// MinProfitForExitPct gates trailing-stop, time and drawdown
	// exits so fees cannot turn a nominal win into a net loss.
	MinProfitForExitPct float64 `yaml:"min_profit_for_exit_pct" json:"min_profit_for_exit_pct"`

	// MinHolding delays target-profit exits; MaxHolding forces a
	// profitable position out after sitting too long.
	MinHolding time.Duration `yaml:"min_holding" json:"min_holding"`
	MaxHolding time.Duration `yaml:"max_holding" json:"max_holding"`

	// TrailingActivatePct is the profit level that arms the trailing
	// stop; ActivationFloorPct is the profit it guarantees on arming.
	TrailingActivatePct float64 `yaml:"trailing_activate_pct" json:"trailing_activate_pct"`
	ActivationFloorPct  float64 `yaml:"activation_floor_pct" json:"activation_floor_pct"`

	// Bands tighten the stop as the peak grows; evaluated highest
	// threshold first.
	Bands []Band `yaml:"bands" json:"bands"`

	// DrawdownExitFraction exits when profit has given back at least
	// this fraction of the peak while still above the minimal floor.
	DrawdownExitFraction float64 `yaml:"drawdown_exit_fraction" json:"drawdown_exit_fraction"`
}

// DefaultConfig returns the standard exit rules: -5% hard stop, 1.5%
// minimal exit floor, 5/30 minute holding bounds, trailing stop armed
// at +3% guaranteeing +2%, protection bands 60/70/75/80%, and a 40%
// peak-drawdown exit.
func DefaultConfig() Config {
	return Config{
		HardStopPct:         -5.0,
		MinProfitForExitPct: 1.5,
		MinHolding:          5 * time.Minute,
		MaxHolding:          30 * time.Minute,
		TrailingActivatePct: 3.0,
		ActivationFloorPct:  2.0,
		Bands: []Band{
			{MinPeakPct: 10, ProtectRatio: 0.80},
			{MinPeakPct: 7, ProtectRatio: 0.75},
			{MinPeakPct: 5, ProtectRatio: 0.70},
			{MinPeakPct: 3, ProtectRatio: 0.60},
		},
		DrawdownExitFraction: 0.4,
	}
}

// protectRatio resolves the protection fraction for a peak profit, 0
// when no band is reached yet.
func (c Config) protectRatio(peakPct float64) float64 {
	best := 0.0
	bestThreshold := -1.0
	for _, b := range c.Bands {
		if peakPct >= b.MinPeakPct && b.MinPeakPct > bestThreshold {
			best = b.ProtectRatio
			bestThreshold = b.MinPeakPct
		}
	}
	return best
}
