package indicator

import (
	"golang-backtest/internal/dto"

	talib "github.com/markcheno/go-talib"
)

type BollingerSeries struct {
	Upper  Series `json:"upper"`
	Middle Series `json:"middle"`
	Lower  Series `json:"lower"`
}

func (b BollingerSeries) Slice(start, end int) BollingerSeries {
	return BollingerSeries{
		Upper:  b.Upper.Slice(start, end),
		Middle: b.Middle.Slice(start, end),
		Lower:  b.Lower.Slice(start, end),
	}
}

// Bollinger returns SMA(period) ± stdDev * population standard deviation of the same window.
func Bollinger(values []float64, period int, stdDev float64) BollingerSeries {
	n := len(values)
	switch {
	case period <= 0 || n < period:
		return BollingerSeries{Upper: NewSeries(n), Middle: NewSeries(n), Lower: NewSeries(n)}
	case period == 1:
		s := FromFloats(values)
		return BollingerSeries{Upper: s, Middle: s, Lower: s}
	}
	upper, middle, lower := talib.BBands(values, period, stdDev, stdDev, talib.SMA)
	return BollingerSeries{
		Upper:  fromTalib(upper, period-1),
		Middle: fromTalib(middle, period-1),
		Lower:  fromTalib(lower, period-1),
	}
}

// ATR is Wilder's average true range. The first true range needs a previous
// close, so the first value lands at index period.
func ATR(bars []dto.PriceBar, period int) Series {
	n := len(bars)
	if period <= 0 || n <= period {
		return NewSeries(n)
	}
	high, low, closing, _ := ohlcv(bars)
	return fromTalib(talib.Atr(high, low, closing, period), period)
}

type SuperTrendSeries struct {
	Line Series `json:"line"`
	// Direction is +1 in an uptrend and -1 in a downtrend.
	Direction Series `json:"direction"`
}

func (s SuperTrendSeries) Slice(start, end int) SuperTrendSeries {
	return SuperTrendSeries{Line: s.Line.Slice(start, end), Direction: s.Direction.Slice(start, end)}
}

// SuperTrend builds ATR bands around hl2 and carries the final bands forward
// until price closes through them.
func SuperTrend(bars []dto.PriceBar, period int, multiplier float64) SuperTrendSeries {
	n := len(bars)
	out := SuperTrendSeries{Line: NewSeries(n), Direction: NewSeries(n)}
	atr := ATR(bars, period)

	var (
		finalUpper, finalLower float64
		dir                    float64
		started                bool
	)
	for i, b := range bars {
		a, ok := atr.At(i)
		if !ok {
			continue
		}
		hl2 := (b.High + b.Low) / 2
		basicUpper := hl2 + multiplier*a
		basicLower := hl2 - multiplier*a

		if !started {
			finalUpper, finalLower = basicUpper, basicLower
			dir = 1
			if b.Close < hl2 {
				dir = -1
			}
			started = true
		} else {
			prevClose := bars[i-1].Close
			if basicUpper < finalUpper || prevClose > finalUpper {
				finalUpper = basicUpper
			}
			if basicLower > finalLower || prevClose < finalLower {
				finalLower = basicLower
			}
			switch {
			case dir > 0 && b.Close < finalLower:
				dir = -1
			case dir < 0 && b.Close > finalUpper:
				dir = 1
			}
		}

		line := finalLower
		if dir < 0 {
			line = finalUpper
		}
		out.Line[i] = Some(line)
		out.Direction[i] = Some(dir)
	}
	return out
}
