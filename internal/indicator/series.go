// Package indicator computes technical indicators over an OHLCV series.
//
// Every function returns series index-aligned with its input. Entries that
// cannot be computed yet (warm-up) or are undefined (a zero price range, zero
// volume) are null rather than NaN, and short input yields an all-null series.
package indicator

import (
	"encoding/json"
	"math"

	"golang-backtest/internal/dto"
)

// Value is a single indicator reading. Valid is false during warm-up.
type Value struct {
	V     float64
	Valid bool
}

// Null is the reading of a bar that has no value.
var Null = Value{}

// Some wraps f, mapping NaN and ±Inf to Null.
func Some(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null
	}
	return Value{V: f, Valid: true}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Null
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Series is a nullable float series aligned with a price series.
type Series []Value

// NewSeries returns an all-null series of length n.
func NewSeries(n int) Series {
	return make(Series, n)
}

// FromFloats wraps a plain slice; NaN and ±Inf become null.
func FromFloats(xs []float64) Series {
	out := NewSeries(len(xs))
	for i, x := range xs {
		out[i] = Some(x)
	}
	return out
}

// At returns the value at i. ok is false for null entries and out-of-range indexes.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) || !s[i].Valid {
		return 0, false
	}
	return s[i].V, true
}

// Pair returns the values at i-1 and i; ok only when both exist.
func (s Series) Pair(i int) (prev, cur float64, ok bool) {
	prev, okPrev := s.At(i - 1)
	cur, okCur := s.At(i)
	return prev, cur, okPrev && okCur
}

// Slice returns the entries in [start, end], clamped to the series bounds.
func (s Series) Slice(start, end int) Series {
	if start < 0 {
		start = 0
	}
	if end >= len(s) {
		end = len(s) - 1
	}
	if len(s) == 0 || start > end {
		return Series{}
	}
	out := make(Series, end-start+1)
	copy(out, s[start:end+1])
	return out
}

// ValidCount returns the number of non-null entries.
func (s Series) ValidCount() int {
	n := 0
	for _, v := range s {
		if v.Valid {
			n++
		}
	}
	return n
}

func closes(bars []dto.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// highestLowest scans bars[from..to] inclusive.
func highestLowest(bars []dto.PriceBar, from, to int) (hh, ll float64) {
	hh = math.Inf(-1)
	ll = math.Inf(1)
	for j := from; j <= to; j++ {
		hh = math.Max(hh, bars[j].High)
		ll = math.Min(ll, bars[j].Low)
	}
	return hh, ll
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
