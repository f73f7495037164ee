package indicator

import "golang-backtest/internal/dto"

type PivotSeries struct {
	Pivot Series `json:"pivot"`
	R1    Series `json:"r1"`
	R2    Series `json:"r2"`
	R3    Series `json:"r3"`
	S1    Series `json:"s1"`
	S2    Series `json:"s2"`
	S3    Series `json:"s3"`
}

func (p PivotSeries) Slice(start, end int) PivotSeries {
	return PivotSeries{
		Pivot: p.Pivot.Slice(start, end),
		R1:    p.R1.Slice(start, end),
		R2:    p.R2.Slice(start, end),
		R3:    p.R3.Slice(start, end),
		S1:    p.S1.Slice(start, end),
		S2:    p.S2.Slice(start, end),
		S3:    p.S3.Slice(start, end),
	}
}

// PivotPoints computes classic floor pivots for bar i from bar i-1's high, low and close.
func PivotPoints(bars []dto.PriceBar) PivotSeries {
	n := len(bars)
	out := PivotSeries{
		Pivot: NewSeries(n),
		R1:    NewSeries(n),
		R2:    NewSeries(n),
		R3:    NewSeries(n),
		S1:    NewSeries(n),
		S2:    NewSeries(n),
		S3:    NewSeries(n),
	}
	for i := 1; i < n; i++ {
		h, l, c := bars[i-1].High, bars[i-1].Low, bars[i-1].Close
		p := (h + l + c) / 3
		out.Pivot[i] = Some(p)
		out.R1[i] = Some(2*p - l)
		out.S1[i] = Some(2*p - h)
		out.R2[i] = Some(p + (h - l))
		out.S2[i] = Some(p - (h - l))
		out.R3[i] = Some(h + 2*(p-l))
		out.S3[i] = Some(l - 2*(h-p))
	}
	return out
}
