package indicator

import "golang-backtest/internal/dto"

// fromTalib wraps a go-talib output. The library zero-fills the first lookback
// entries, so those become Null.
func fromTalib(out []float64, lookback int) Series {
	s := NewSeries(len(out))
	for i := lookback; i < len(out); i++ {
		s[i] = Some(out[i])
	}
	return s
}

// shifted places a series computed over values[offset:] back on the full index.
func shifted(tail Series, offset, n int) Series {
	out := NewSeries(n)
	copy(out[offset:], tail)
	return out
}

func ohlcv(bars []dto.PriceBar) (high, low, closing, volume []float64) {
	high = make([]float64, len(bars))
	low = make([]float64, len(bars))
	closing = make([]float64, len(bars))
	volume = make([]float64, len(bars))
	for i, b := range bars {
		high[i], low[i], closing[i], volume[i] = b.High, b.Low, b.Close, b.Volume
	}
	return high, low, closing, volume
}
