package indicator

import (
	talib "github.com/markcheno/go-talib"
)

// SMA is the simple moving average over period values; valid from index period-1.
func SMA(values []float64, period int) Series {
	switch {
	case period <= 0 || len(values) < period:
		return NewSeries(len(values))
	case period == 1:
		return FromFloats(values)
	}
	return fromTalib(talib.Sma(values, period), period-1)
}

// EMA uses smoothing 2/(period+1), seeded at index period-1 with the SMA of the first period values.
func EMA(values []float64, period int) Series {
	switch {
	case period <= 0 || len(values) < period:
		return NewSeries(len(values))
	case period == 1:
		return FromFloats(values)
	}
	return fromTalib(talib.Ema(values, period), period-1)
}
