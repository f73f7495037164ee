package indicator

import "golang-backtest/internal/dto"

type IchimokuSeries struct {
	Tenkan  Series `json:"tenkan"`
	Kijun   Series `json:"kijun"`
	SenkouA Series `json:"senkou_a"`
	SenkouB Series `json:"senkou_b"`
	// Chikou at index i is the close displacement bars later. It is charted
	// only and must not feed signal evaluation.
	Chikou Series `json:"chikou"`
	// Displacement is the shift the spans were computed with.
	Displacement int `json:"displacement"`
}

func (s IchimokuSeries) Slice(start, end int) IchimokuSeries {
	return IchimokuSeries{
		Tenkan:  s.Tenkan.Slice(start, end),
		Kijun:   s.Kijun.Slice(start, end),
		SenkouA: s.SenkouA.Slice(start, end),
		SenkouB: s.SenkouB.Slice(start, end),
		Chikou:  s.Chikou.Slice(start, end),

		Displacement: s.Displacement,
	}
}

// HideAfter nulls the Chikou entries of a slice that starts at global bar
// start whenever their source close lies after bar target.
func (s IchimokuSeries) HideAfter(start, target int) IchimokuSeries {
	chikou := make(Series, len(s.Chikou))
	copy(chikou, s.Chikou)
	for j := range chikou {
		if start+j+s.Displacement > target {
			chikou[j] = Null
		}
	}
	s.Chikou = chikou
	return s
}

// CloudAt returns the top and bottom of the cloud drawn under bar i.
func (s IchimokuSeries) CloudAt(i int) (top, bottom float64, ok bool) {
	a, okA := s.SenkouA.At(i)
	b, okB := s.SenkouB.At(i)
	if !okA || !okB {
		return 0, 0, false
	}
	if a >= b {
		return a, b, true
	}
	return b, a, true
}

// Ichimoku computes the conversion and base lines as high/low midpoints. The
// leading spans at index i are the values computed displacement bars earlier,
// which is the cloud plotted under bar i.
func Ichimoku(bars []dto.PriceBar, tenkanPeriod, kijunPeriod, senkouBPeriod, displacement int) IchimokuSeries {
	n := len(bars)
	out := IchimokuSeries{
		Tenkan:  NewSeries(n),
		Kijun:   NewSeries(n),
		SenkouA: NewSeries(n),
		SenkouB: NewSeries(n),
		Chikou:  NewSeries(n),
	}
	if displacement < 0 {
		displacement = 0
	}
	out.Displacement = displacement
	for i := 0; i < n; i++ {
		if v, ok := midpoint(bars, i, tenkanPeriod); ok {
			out.Tenkan[i] = Some(v)
		}
		if v, ok := midpoint(bars, i, kijunPeriod); ok {
			out.Kijun[i] = Some(v)
		}
	}
	for i := 0; i < n; i++ {
		j := i - displacement
		if j >= 0 {
			t, okT := out.Tenkan.At(j)
			k, okK := out.Kijun.At(j)
			if okT && okK {
				out.SenkouA[i] = Some((t + k) / 2)
			}
			if v, ok := midpoint(bars, j, senkouBPeriod); ok {
				out.SenkouB[i] = Some(v)
			}
		}
		if i+displacement < n {
			out.Chikou[i] = Some(bars[i+displacement].Close)
		}
	}
	return out
}

func midpoint(bars []dto.PriceBar, end, period int) (float64, bool) {
	if period <= 0 || end-period+1 < 0 || end >= len(bars) {
		return 0, false
	}
	hh, ll := highestLowest(bars, end-period+1, end)
	return (hh + ll) / 2, true
}
