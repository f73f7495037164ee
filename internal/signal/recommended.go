package signal

import (
	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
)

type RecommendedID string

const (
	RecommendedRSIReversal        RecommendedID = "rsi_reversal"
	RecommendedEMACross           RecommendedID = "ema_cross"
	RecommendedBollingerReversion RecommendedID = "bollinger_reversion"
	RecommendedMACDCross          RecommendedID = "macd_cross"
	RecommendedStochBollinger     RecommendedID = "stoch_bollinger"
	RecommendedWilliamsTrend      RecommendedID = "williams_trend"
	RecommendedTripleEMA          RecommendedID = "triple_ema"
	RecommendedDCA                RecommendedID = "dca"
)

var recommendedIDs = []RecommendedID{
	RecommendedRSIReversal,
	RecommendedEMACross,
	RecommendedBollingerReversion,
	RecommendedMACDCross,
	RecommendedStochBollinger,
	RecommendedWilliamsTrend,
	RecommendedTripleEMA,
	RecommendedDCA,
}

func RecommendedIDs() []RecommendedID {
	out := make([]RecommendedID, len(recommendedIDs))
	copy(out, recommendedIDs)
	return out
}

func (id RecommendedID) Valid() bool {
	for _, r := range recommendedIDs {
		if r == id {
			return true
		}
	}
	return false
}

const (
	stochOversold    = 20.0
	stochOverbought  = 80.0
	williamsOversold = -80.0
	williamsExit     = -20.0
)

type recommended struct {
	id   RecommendedID
	bars []dto.PriceBar
	set  *indicator.Set
	th   Thresholds
}

// Evaluate applies the fixed rule of r.id. Any missing input holds.
func (r *recommended) Evaluate(i int, _ bool) Decision {
	switch r.id {
	case RecommendedRSIReversal:
		return r.rsiReversal(i)
	case RecommendedEMACross:
		return r.emaCross(i)
	case RecommendedBollingerReversion:
		return r.bollingerReversion(i)
	case RecommendedMACDCross:
		return r.macdCross(i)
	case RecommendedStochBollinger:
		return r.stochBollinger(i)
	case RecommendedWilliamsTrend:
		return r.williamsTrend(i)
	case RecommendedTripleEMA:
		return r.tripleEMA(i)
	}
	return Hold()
}

func (r *recommended) rsiReversal(i int) Decision {
	rsi, ok := r.set.RSI.At(i)
	if !ok {
		return Hold()
	}
	switch {
	case rsi < r.th.RSIOversold:
		return buy("RSI Oversold (%.2f < %.0f)", rsi, r.th.RSIOversold)
	case rsi > r.th.RSIOverbought:
		return sell("RSI Overbought (%.2f > %.0f)", rsi, r.th.RSIOverbought)
	}
	return Hold()
}

func (r *recommended) emaCross(i int) Decision {
	prevFast, fast, okF := r.set.EMAFast.Pair(i)
	prevSlow, slow, okS := r.set.EMASlow.Pair(i)
	if !okF || !okS {
		return Hold()
	}
	switch {
	case crossedAbove(prevFast, fast, prevSlow, slow):
		return buy("EMA Golden Cross")
	case crossedBelow(prevFast, fast, prevSlow, slow):
		return sell("EMA Death Cross")
	}
	return Hold()
}

func (r *recommended) bollingerReversion(i int) Decision {
	lower, okL := r.set.Bollinger.Lower.At(i)
	upper, okU := r.set.Bollinger.Upper.At(i)
	price, okP := closeAt(r.bars, i)
	if !okL || !okU || !okP {
		return Hold()
	}
	switch {
	case price < lower:
		return buy("Price below lower Bollinger Band")
	case price > upper:
		return sell("Price above upper Bollinger Band")
	}
	return Hold()
}

func (r *recommended) macdCross(i int) Decision {
	prevM, m, okM := r.set.MACD.MACD.Pair(i)
	prevS, s, okS := r.set.MACD.Signal.Pair(i)
	if !okM || !okS {
		return Hold()
	}
	switch {
	case crossedAbove(prevM, m, prevS, s):
		return buy("MACD crossed above signal")
	case crossedBelow(prevM, m, prevS, s):
		return sell("MACD crossed below signal")
	}
	return Hold()
}

func (r *recommended) stochBollinger(i int) Decision {
	k, okK := r.set.Stochastic.K.At(i)
	lower, okL := r.set.Bollinger.Lower.At(i)
	upper, okU := r.set.Bollinger.Upper.At(i)
	price, okP := closeAt(r.bars, i)
	if !okK || !okL || !okU || !okP {
		return Hold()
	}
	switch {
	case k < stochOversold && price <= lower:
		return buy("Stochastic oversold at lower Bollinger Band")
	case k > stochOverbought && price >= upper:
		return sell("Stochastic overbought at upper Bollinger Band")
	}
	return Hold()
}

func (r *recommended) williamsTrend(i int) Decision {
	wr, okW := r.set.WilliamsR.At(i)
	if !okW {
		return Hold()
	}
	if wr > williamsExit {
		return sell("Williams %%R overbought (%.2f)", wr)
	}
	trend, okT := r.set.EMATrend.At(i)
	price, okP := closeAt(r.bars, i)
	if okT && okP && wr < williamsOversold && price > trend {
		return buy("Williams %%R oversold in uptrend (%.2f)", wr)
	}
	return Hold()
}

func (r *recommended) tripleEMA(i int) Decision {
	prevFast, fast, okF := r.set.EMAFast.Pair(i)
	prevSlow, slow, okS := r.set.EMASlow.Pair(i)
	prevTrend, trend, okT := r.set.EMATrend.Pair(i)
	if !okF || !okS || !okT {
		return Hold()
	}
	alignedNow := fast > slow && slow > trend
	alignedBefore := prevFast > prevSlow && prevSlow > prevTrend
	switch {
	case alignedNow && !alignedBefore:
		return buy("Triple EMA bullish alignment")
	case crossedBelow(prevFast, fast, prevSlow, slow):
		return sell("Fast EMA crossed below slow EMA")
	}
	return Hold()
}
