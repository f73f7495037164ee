package indicator

import "golang-backtest/internal/dto"

// Settings holds the periods used to compute a Set. Zero fields take the defaults.
type Settings struct {
	RSIPeriod            int     `json:"rsi_period" mapstructure:"rsi_period"`
	EMAFast              int     `json:"ema_fast" mapstructure:"ema_fast"`
	EMASlow              int     `json:"ema_slow" mapstructure:"ema_slow"`
	EMATrend             int     `json:"ema_trend" mapstructure:"ema_trend"`
	SMAPeriod            int     `json:"sma_period" mapstructure:"sma_period"`
	BollingerPeriod      int     `json:"bollinger_period" mapstructure:"bollinger_period"`
	BollingerStdDev      float64 `json:"bollinger_std_dev" mapstructure:"bollinger_std_dev"`
	MACDFast             int     `json:"macd_fast" mapstructure:"macd_fast"`
	MACDSlow             int     `json:"macd_slow" mapstructure:"macd_slow"`
	MACDSignal           int     `json:"macd_signal" mapstructure:"macd_signal"`
	StochasticK          int     `json:"stochastic_k" mapstructure:"stochastic_k"`
	StochasticD          int     `json:"stochastic_d" mapstructure:"stochastic_d"`
	WilliamsPeriod       int     `json:"williams_period" mapstructure:"williams_period"`
	VWAPPeriod           int     `json:"vwap_period" mapstructure:"vwap_period"`
	SuperTrendPeriod     int     `json:"supertrend_period" mapstructure:"supertrend_period"`
	SuperTrendMultiplier float64 `json:"supertrend_multiplier" mapstructure:"supertrend_multiplier"`
	IchimokuTenkan       int     `json:"ichimoku_tenkan" mapstructure:"ichimoku_tenkan"`
	IchimokuKijun        int     `json:"ichimoku_kijun" mapstructure:"ichimoku_kijun"`
	IchimokuSenkouB      int     `json:"ichimoku_senkou_b" mapstructure:"ichimoku_senkou_b"`
	IchimokuDisplacement int     `json:"ichimoku_displacement" mapstructure:"ichimoku_displacement"`
}

func DefaultSettings() Settings {
	return Settings{
		RSIPeriod:            14,
		EMAFast:              12,
		EMASlow:              26,
		EMATrend:             50,
		SMAPeriod:            20,
		BollingerPeriod:      20,
		BollingerStdDev:      2,
		MACDFast:             12,
		MACDSlow:             26,
		MACDSignal:           9,
		StochasticK:          14,
		StochasticD:          3,
		WilliamsPeriod:       14,
		VWAPPeriod:           0,
		SuperTrendPeriod:     10,
		SuperTrendMultiplier: 3,
		IchimokuTenkan:       9,
		IchimokuKijun:        26,
		IchimokuSenkouB:      52,
		IchimokuDisplacement: 26,
	}
}

// WithDefaults fills every zero field from DefaultSettings. VWAPPeriod stays 0 (cumulative).
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	orInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	orFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	orInt(&s.RSIPeriod, d.RSIPeriod)
	orInt(&s.EMAFast, d.EMAFast)
	orInt(&s.EMASlow, d.EMASlow)
	orInt(&s.EMATrend, d.EMATrend)
	orInt(&s.SMAPeriod, d.SMAPeriod)
	orInt(&s.BollingerPeriod, d.BollingerPeriod)
	orFloat(&s.BollingerStdDev, d.BollingerStdDev)
	orInt(&s.MACDFast, d.MACDFast)
	orInt(&s.MACDSlow, d.MACDSlow)
	orInt(&s.MACDSignal, d.MACDSignal)
	orInt(&s.StochasticK, d.StochasticK)
	orInt(&s.StochasticD, d.StochasticD)
	orInt(&s.WilliamsPeriod, d.WilliamsPeriod)
	orInt(&s.SuperTrendPeriod, d.SuperTrendPeriod)
	orFloat(&s.SuperTrendMultiplier, d.SuperTrendMultiplier)
	orInt(&s.IchimokuTenkan, d.IchimokuTenkan)
	orInt(&s.IchimokuKijun, d.IchimokuKijun)
	orInt(&s.IchimokuSenkouB, d.IchimokuSenkouB)
	orInt(&s.IchimokuDisplacement, d.IchimokuDisplacement)
	if s.VWAPPeriod < 0 {
		s.VWAPPeriod = 0
	}
	return s
}

// Set holds every indicator family computed for one price series.
type Set struct {
	RSI        Series           `json:"rsi"`
	EMAFast    Series           `json:"ema_fast"`
	EMASlow    Series           `json:"ema_slow"`
	EMATrend   Series           `json:"ema_trend"`
	SMA        Series           `json:"sma"`
	MACD       MACDSeries       `json:"macd"`
	Bollinger  BollingerSeries  `json:"bollinger"`
	Stochastic StochasticSeries `json:"stochastic"`
	WilliamsR  Series           `json:"williams_r"`
	VWAP       Series           `json:"vwap"`
	SuperTrend SuperTrendSeries `json:"supertrend"`
	Ichimoku   IchimokuSeries   `json:"ichimoku"`
	Pivots     PivotSeries      `json:"pivots"`
	OBV        Series           `json:"obv"`
}

// Compute derives the full Set from bars. It never fails; short input yields null series.
func Compute(bars []dto.PriceBar, s Settings) *Set {
	s = s.WithDefaults()
	c := closes(bars)
	return &Set{
		RSI:        RSI(c, s.RSIPeriod),
		EMAFast:    EMA(c, s.EMAFast),
		EMASlow:    EMA(c, s.EMASlow),
		EMATrend:   EMA(c, s.EMATrend),
		SMA:        SMA(c, s.SMAPeriod),
		MACD:       MACD(c, s.MACDFast, s.MACDSlow, s.MACDSignal),
		Bollinger:  Bollinger(c, s.BollingerPeriod, s.BollingerStdDev),
		Stochastic: Stochastic(bars, s.StochasticK, s.StochasticD),
		WilliamsR:  WilliamsR(bars, s.WilliamsPeriod),
		VWAP:       VWAP(bars, s.VWAPPeriod),
		SuperTrend: SuperTrend(bars, s.SuperTrendPeriod, s.SuperTrendMultiplier),
		Ichimoku:   Ichimoku(bars, s.IchimokuTenkan, s.IchimokuKijun, s.IchimokuSenkouB, s.IchimokuDisplacement),
		Pivots:     PivotPoints(bars),
		OBV:        OBV(bars),
	}
}

// Slice returns the entries in [start, end] of every series.
func (s *Set) Slice(start, end int) *Set {
	if s == nil {
		return nil
	}
	return &Set{
		RSI:        s.RSI.Slice(start, end),
		EMAFast:    s.EMAFast.Slice(start, end),
		EMASlow:    s.EMASlow.Slice(start, end),
		EMATrend:   s.EMATrend.Slice(start, end),
		SMA:        s.SMA.Slice(start, end),
		MACD:       s.MACD.Slice(start, end),
		Bollinger:  s.Bollinger.Slice(start, end),
		Stochastic: s.Stochastic.Slice(start, end),
		WilliamsR:  s.WilliamsR.Slice(start, end),
		VWAP:       s.VWAP.Slice(start, end),
		SuperTrend: s.SuperTrend.Slice(start, end),
		Ichimoku:   s.Ichimoku.Slice(start, end),
		Pivots:     s.Pivots.Slice(start, end),
		OBV:        s.OBV.Slice(start, end),
	}
}

// All lists every series of the set with a stable name, for length checks and export.
func (s *Set) All() map[string]Series {
	return map[string]Series{
		"rsi":               s.RSI,
		"ema_fast":          s.EMAFast,
		"ema_slow":          s.EMASlow,
		"ema_trend":         s.EMATrend,
		"sma":               s.SMA,
		"macd":              s.MACD.MACD,
		"macd_signal":       s.MACD.Signal,
		"macd_histogram":    s.MACD.Histogram,
		"bollinger_upper":   s.Bollinger.Upper,
		"bollinger_middle":  s.Bollinger.Middle,
		"bollinger_lower":   s.Bollinger.Lower,
		"stochastic_k":      s.Stochastic.K,
		"stochastic_d":      s.Stochastic.D,
		"williams_r":        s.WilliamsR,
		"vwap":              s.VWAP,
		"supertrend":        s.SuperTrend.Line,
		"supertrend_dir":    s.SuperTrend.Direction,
		"ichimoku_tenkan":   s.Ichimoku.Tenkan,
		"ichimoku_kijun":    s.Ichimoku.Kijun,
		"ichimoku_senkou_a": s.Ichimoku.SenkouA,
		"ichimoku_senkou_b": s.Ichimoku.SenkouB,
		"ichimoku_chikou":   s.Ichimoku.Chikou,
		"pivot":             s.Pivots.Pivot,
		"pivot_r1":          s.Pivots.R1,
		"pivot_r2":          s.Pivots.R2,
		"pivot_r3":          s.Pivots.R3,
		"pivot_s1":          s.Pivots.S1,
		"pivot_s2":          s.Pivots.S2,
		"pivot_s3":          s.Pivots.S3,
		"obv":               s.OBV,
	}
}
