package indicator

import (
	"golang-backtest/internal/dto"

	talib "github.com/markcheno/go-talib"
)

// RSI uses Wilder smoothing of average gains and losses; first value at index period.
func RSI(values []float64, period int) Series {
	n := len(values)
	switch {
	case period <= 0 || n <= period:
		return NewSeries(n)
	case period == 1:
		return rsiPerStep(values)
	}

	out := fromTalib(talib.Rsi(values, period), period)
	flat := true
	for i := 1; i < n; i++ {
		if values[i] != values[0] {
			flat = false
		}
		if i < period {
			continue
		}
		if flat {
			out[i] = Some(rsiFrom(0, 0))
			continue
		}
		out[i] = Some(clamp(out[i].V, 0, 100))
	}
	return out
}

// rsiPerStep is RSI(1): each bar's average gain and loss is its own move.
func rsiPerStep(values []float64) Series {
	out := NewSeries(len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		out[i] = Some(rsiFrom(max(d, 0), max(-d, 0)))
	}
	return out
}

// rsiFrom maps Wilder averages to RSI. A zero average loss is the degenerate case:
// 100 when prices only rose over the window, 50 when the window is completely flat.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100)
}

type StochasticSeries struct {
	K Series `json:"k"`
	D Series `json:"d"`
}

func (s StochasticSeries) Slice(start, end int) StochasticSeries {
	return StochasticSeries{K: s.K.Slice(start, end), D: s.D.Slice(start, end)}
}

// Stochastic computes %K over kPeriod bars and %D as the SMA of %K over dPeriod.
// %K is null when the high/low range of the window is zero, and %D is null
// whenever its window holds a null %K.
func Stochastic(bars []dto.PriceBar, kPeriod, dPeriod int) StochasticSeries {
	n := len(bars)
	out := StochasticSeries{K: NewSeries(n), D: NewSeries(n)}
	if kPeriod <= 0 || n < kPeriod {
		return out
	}
	high, low, closing, _ := ohlcv(bars)
	hh, ll := rollingRange(high, low, kPeriod)

	start := kPeriod - 1
	raw := make([]float64, n-start)
	for i := start; i < n; i++ {
		rng := hh[i] - ll[i]
		if rng <= 0 {
			continue
		}
		out.K[i] = Some(clamp((closing[i]-ll[i])/rng*100, 0, 100))
		raw[i-start] = out.K[i].V
	}

	d := shifted(SMA(raw, dPeriod), start, n)
	for i, v := range d {
		if v.Valid && allValid(out.K, i-dPeriod+1, i) {
			out.D[i] = v
		}
	}
	return out
}

// WilliamsR is (highest high - close) / (highest high - lowest low) * -100, in [-100, 0].
func WilliamsR(bars []dto.PriceBar, period int) Series {
	n := len(bars)
	out := NewSeries(n)
	if period <= 0 || n < period {
		return out
	}
	high, low, closing, _ := ohlcv(bars)
	hh, ll := rollingRange(high, low, period)
	var willr []float64
	if period > 1 {
		willr = talib.WillR(high, low, closing, period)
	}
	for i := period - 1; i < n; i++ {
		rng := hh[i] - ll[i]
		if rng <= 0 {
			continue
		}
		v := (hh[i] - closing[i]) / rng * -100
		if willr != nil {
			v = willr[i]
		}
		out[i] = Some(clamp(v, -100, 0))
	}
	return out
}

// rollingRange is the highest high and lowest low over each period-bar window.
func rollingRange(high, low []float64, period int) (hh, ll []float64) {
	if period == 1 {
		return high, low
	}
	return talib.Max(high, period), talib.Min(low, period)
}

func allValid(s Series, from, to int) bool {
	if from < 0 {
		return false
	}
	for i := from; i <= to; i++ {
		if !s[i].Valid {
			return false
		}
	}
	return true
}

type MACDSeries struct {
	MACD      Series `json:"macd"`
	Signal    Series `json:"signal"`
	Histogram Series `json:"histogram"`
}

func (m MACDSeries) Slice(start, end int) MACDSeries {
	return MACDSeries{
		MACD:      m.MACD.Slice(start, end),
		Signal:    m.Signal.Slice(start, end),
		Histogram: m.Histogram.Slice(start, end),
	}
}

// MACD is EMA(fast) - EMA(slow); the signal line is the EMA of MACD over signalPeriod.
// The line is valid from max(fast, slow)-1 and the signal signalPeriod-1 bars later.
func MACD(values []float64, fast, slow, signalPeriod int) MACDSeries {
	n := len(values)
	out := MACDSeries{MACD: NewSeries(n), Signal: NewSeries(n), Histogram: NewSeries(n)}
	start := max(fast, slow) - 1
	if fast <= 0 || slow <= 0 || n <= start {
		return out
	}
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	raw := make([]float64, n-start)
	for i := start; i < n; i++ {
		raw[i-start] = fastEMA[i].V - slowEMA[i].V
		out.MACD[i] = Some(raw[i-start])
	}
	out.Signal = shifted(EMA(raw, signalPeriod), start, n)
	for i := start; i < n; i++ {
		if s, ok := out.Signal.At(i); ok {
			out.Histogram[i] = Some(out.MACD[i].V - s)
		}
	}
	return out
}
