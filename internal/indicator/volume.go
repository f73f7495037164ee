package indicator

import (
	"golang-backtest/internal/dto"

	talib "github.com/markcheno/go-talib"
)

// VWAP weights the typical price (H+L+C)/3 by volume. With period <= 0 it is
// cumulative from the first bar, otherwise rolling over period bars.
// Null while the summed volume is zero.
func VWAP(bars []dto.PriceBar, period int) Series {
	n := len(bars)
	out := NewSeries(n)
	var sumPV, sumV float64
	for i, b := range bars {
		tp := (b.High + b.Low + b.Close) / 3
		sumPV += tp * b.Volume
		sumV += b.Volume

		if period > 0 {
			if i < period-1 {
				continue
			}
			if i >= period {
				old := bars[i-period]
				sumPV -= (old.High + old.Low + old.Close) / 3 * old.Volume
				sumV -= old.Volume
			}
		}
		if sumV <= 0 {
			continue
		}
		out[i] = Some(sumPV / sumV)
	}
	return out
}

// OBV accumulates volume signed by the close-to-close direction, starting at 0.
// go-talib seeds the running total with the first bar's volume, which is removed here.
func OBV(bars []dto.PriceBar) Series {
	if len(bars) == 0 {
		return Series{}
	}
	_, _, closing, volume := ohlcv(bars)
	obv := talib.Obv(closing, volume)
	out := NewSeries(len(bars))
	for i, v := range obv {
		out[i] = Some(v - volume[0])
	}
	return out
}
