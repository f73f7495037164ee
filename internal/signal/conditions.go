package signal

type IndicatorKind string

const (
	KindRSI        IndicatorKind = "rsi"
	KindEMA        IndicatorKind = "ema"
	KindSMA        IndicatorKind = "sma"
	KindMACD       IndicatorKind = "macd"
	KindBollinger  IndicatorKind = "bollinger"
	KindStochastic IndicatorKind = "stochastic"
	KindWilliamsR  IndicatorKind = "williams_r"
	KindVWAP       IndicatorKind = "vwap"
	KindSuperTrend IndicatorKind = "supertrend"
	KindIchimoku   IndicatorKind = "ichimoku"
	KindPivots     IndicatorKind = "pivot_points"
	KindOBV        IndicatorKind = "obv"
)

type ConditionKind string

const (
	CondOversold                ConditionKind = "oversold"
	CondOverbought              ConditionKind = "overbought"
	CondCrossesAbove            ConditionKind = "crosses_above"
	CondCrossesBelow            ConditionKind = "crosses_below"
	CondPriceAbove              ConditionKind = "price_above"
	CondPriceBelow              ConditionKind = "price_below"
	CondPriceCrossesAbove       ConditionKind = "price_crosses_above"
	CondPriceCrossesBelow       ConditionKind = "price_crosses_below"
	CondCrossesAboveSignal      ConditionKind = "crosses_above_signal"
	CondCrossesBelowSignal      ConditionKind = "crosses_below_signal"
	CondHistogramPositive       ConditionKind = "histogram_positive"
	CondHistogramNegative       ConditionKind = "histogram_negative"
	CondAboveZero               ConditionKind = "above_zero"
	CondBelowZero               ConditionKind = "below_zero"
	CondTouchesLower            ConditionKind = "touches_lower"
	CondTouchesUpper            ConditionKind = "touches_upper"
	CondPriceAboveMiddle        ConditionKind = "price_above_middle"
	CondPriceBelowMiddle        ConditionKind = "price_below_middle"
	CondKCrossesAboveD          ConditionKind = "k_crosses_above_d"
	CondKCrossesBelowD          ConditionKind = "k_crosses_below_d"
	CondUptrend                 ConditionKind = "uptrend"
	CondDowntrend               ConditionKind = "downtrend"
	CondTurnsUp                 ConditionKind = "turns_up"
	CondTurnsDown               ConditionKind = "turns_down"
	CondPriceAboveCloud         ConditionKind = "price_above_cloud"
	CondPriceBelowCloud         ConditionKind = "price_below_cloud"
	CondTenkanCrossesAboveKijun ConditionKind = "tenkan_crosses_above_kijun"
	CondTenkanCrossesBelowKijun ConditionKind = "tenkan_crosses_below_kijun"
	CondPriceAbovePivot         ConditionKind = "price_above_pivot"
	CondPriceBelowPivot         ConditionKind = "price_below_pivot"
	CondBreaksR1                ConditionKind = "breaks_r1"
	CondBreaksS1                ConditionKind = "breaks_s1"
	CondRising                  ConditionKind = "rising"
	CondFalling                 ConditionKind = "falling"

	// CondCustom is a placeholder for a condition the user has not configured.
	// It is accepted on every kind and never evaluated.
	CondCustom ConditionKind = "custom"
)

var conditionsByKind = map[IndicatorKind][]ConditionKind{
	KindRSI:        {CondOversold, CondOverbought, CondCrossesAbove, CondCrossesBelow},
	KindEMA:        {CondPriceAbove, CondPriceBelow, CondPriceCrossesAbove, CondPriceCrossesBelow},
	KindSMA:        {CondPriceAbove, CondPriceBelow, CondPriceCrossesAbove, CondPriceCrossesBelow},
	KindMACD:       {CondCrossesAboveSignal, CondCrossesBelowSignal, CondHistogramPositive, CondHistogramNegative, CondAboveZero, CondBelowZero},
	KindBollinger:  {CondTouchesLower, CondTouchesUpper, CondPriceAboveMiddle, CondPriceBelowMiddle},
	KindStochastic: {CondOversold, CondOverbought, CondKCrossesAboveD, CondKCrossesBelowD},
	KindWilliamsR:  {CondOversold, CondOverbought},
	KindVWAP:       {CondPriceAbove, CondPriceBelow},
	KindSuperTrend: {CondUptrend, CondDowntrend, CondTurnsUp, CondTurnsDown},
	KindIchimoku:   {CondPriceAboveCloud, CondPriceBelowCloud, CondTenkanCrossesAboveKijun, CondTenkanCrossesBelowKijun},
	KindPivots:     {CondPriceAbovePivot, CondPriceBelowPivot, CondBreaksR1, CondBreaksS1},
	KindOBV:        {CondRising, CondFalling},
}

func (k IndicatorKind) Valid() bool {
	_, ok := conditionsByKind[k]
	return ok
}

// Conditions lists the condition kinds k accepts, excluding the custom placeholder.
func (k IndicatorKind) Conditions() []ConditionKind {
	src := conditionsByKind[k]
	out := make([]ConditionKind, len(src))
	copy(out, src)
	return out
}

func (k IndicatorKind) Supports(c ConditionKind) bool {
	if !k.Valid() {
		return false
	}
	if c == CondCustom {
		return true
	}
	for _, allowed := range conditionsByKind[k] {
		if allowed == c {
			return true
		}
	}
	return false
}

// defaultThreshold is used when a threshold condition is configured without a level.
func defaultThreshold(k IndicatorKind, c ConditionKind) float64 {
	switch k {
	case KindRSI:
		switch c {
		case CondOversold:
			return 30
		case CondOverbought:
			return 70
		}
		return 50
	case KindStochastic:
		if c == CondOverbought {
			return 80
		}
		return 20
	case KindWilliamsR:
		if c == CondOverbought {
			return -20
		}
		return -80
	}
	return 0
}

// Params carries the numeric settings of one indicator instance. Zero fields take defaults.
type Params struct {
	Period        int     `json:"period,omitempty"`
	FastPeriod    int     `json:"fast_period,omitempty"`
	SlowPeriod    int     `json:"slow_period,omitempty"`
	SignalPeriod  int     `json:"signal_period,omitempty"`
	KPeriod       int     `json:"k_period,omitempty"`
	DPeriod       int     `json:"d_period,omitempty"`
	StdDev        float64 `json:"std_dev,omitempty"`
	Multiplier    float64 `json:"multiplier,omitempty"`
	TenkanPeriod  int     `json:"tenkan_period,omitempty"`
	KijunPeriod   int     `json:"kijun_period,omitempty"`
	SenkouBPeriod int     `json:"senkou_b_period,omitempty"`
	Displacement  int     `json:"displacement,omitempty"`
}

func (p Params) withDefaults(k IndicatorKind) Params {
	or := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	switch k {
	case KindRSI, KindWilliamsR:
		or(&p.Period, 14)
	case KindEMA, KindSMA, KindBollinger:
		or(&p.Period, 20)
		if k == KindBollinger && p.StdDev <= 0 {
			p.StdDev = 2
		}
	case KindMACD:
		or(&p.FastPeriod, 12)
		or(&p.SlowPeriod, 26)
		or(&p.SignalPeriod, 9)
	case KindStochastic:
		or(&p.KPeriod, 14)
		or(&p.DPeriod, 3)
	case KindSuperTrend:
		or(&p.Period, 10)
		if p.Multiplier <= 0 {
			p.Multiplier = 3
		}
	case KindIchimoku:
		or(&p.TenkanPeriod, 9)
		or(&p.KijunPeriod, 26)
		or(&p.SenkouBPeriod, 52)
		or(&p.Displacement, 26)
	}
	return p
}
