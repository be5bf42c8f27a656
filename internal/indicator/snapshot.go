package indicator

import "coinhero/internal/model"

// Snapshot bundles every indicator the strategies consume, computed
// once per tick from a single candle window so all rules argue over
// the same numbers.
type Snapshot struct {
	Close       float64
	RSI         float64
	Bands       Bands
	PercentB    float64
	MACD        MACDResult
	WilliamsR   float64
	Stoch       Stoch
	ATR         float64
	SMA5        float64
	SMA20       float64
	EMA12       float64
	EMA26       float64
	VolumeRatio float64
	Candles     int // window length the snapshot was computed from
}

// Standard periods. These mirror the usual charting defaults; the
// strategies assume them when reasoning about thresholds.
const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	BollingerK      = 2.0
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	WilliamsPeriod  = 14
	StochKPeriod    = 14
	StochDPeriod    = 3
	ATRPeriod       = 14
	VolumePeriod    = 20
)

// Compute builds a Snapshot from chronological candles. Short windows
// produce neutral indicator values rather than errors; Candles carries
// the window length so strategies can refuse to score a thin window.
func Compute(candles []model.Candle) Snapshot {
	closes := model.Closes(candles)

	var close float64
	if len(closes) > 0 {
		close = closes[len(closes)-1]
	}

	bands := Bollinger(closes, BollingerPeriod, BollingerK)
	return Snapshot{
		Close:       close,
		RSI:         RSI(closes, RSIPeriod),
		Bands:       bands,
		PercentB:    PercentB(close, bands),
		MACD:        MACD(closes, MACDFast, MACDSlow, MACDSignal),
		WilliamsR:   WilliamsR(candles, WilliamsPeriod),
		Stoch:       Stochastic(candles, StochKPeriod, StochDPeriod),
		ATR:         ATR(candles, ATRPeriod),
		SMA5:        SMA(closes, 5),
		SMA20:       SMA(closes, 20),
		EMA12:       EMA(closes, MACDFast),
		EMA26:       EMA(closes, MACDSlow),
		VolumeRatio: VolumeRatio(candles, VolumePeriod),
		Candles:     len(candles),
	}
}
