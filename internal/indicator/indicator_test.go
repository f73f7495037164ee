package indicator

import (
	"encoding/json"
	"math"
	"testing"

	"golang-backtest/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMs = int64(24 * 60 * 60 * 1000)

func risingBars(n int) []dto.PriceBar {
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = dto.PriceBar{Timestamp: int64(i) * dayMs, Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func flatBars(n int) []dto.PriceBar {
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		bars[i] = dto.PriceBar{Timestamp: int64(i) * dayMs, Open: 50, High: 50, Low: 50, Close: 50, Volume: 10}
	}
	return bars
}

func waveBars(n int) []dto.PriceBar {
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/4) + float64(i%3)
		bars[i] = dto.PriceBar{Timestamp: int64(i) * dayMs, Open: c - 1, High: c + 2, Low: c - 2, Close: c, Volume: float64(500 + 37*(i%7))}
	}
	return bars
}

func TestCompute_LengthAlwaysMatchesInput(t *testing.T) {
	for _, n := range []int{0, 1, 2, 10, 60, 200} {
		set := Compute(waveBars(n), Settings{})
		for name, series := range set.All() {
			assert.Len(t, series, n, "series %s with %d bars", name, n)
		}
	}
}

func TestCompute_ShortInputIsAllNull(t *testing.T) {
	set := Compute(waveBars(5), Settings{})
	for _, name := range []string{"rsi", "ema_slow", "macd", "bollinger_upper", "ichimoku_senkou_b", "supertrend"} {
		assert.Zero(t, set.All()[name].ValidCount(), name)
	}
}

func TestWarmup(t *testing.T) {
	bars := waveBars(120)
	c := closes(bars)

	tests := []struct {
		name       string
		series     Series
		firstValid int
	}{
		{name: "sma", series: SMA(c, 20), firstValid: 19},
		{name: "ema", series: EMA(c, 12), firstValid: 11},
		{name: "rsi", series: RSI(c, 14), firstValid: 14},
		{name: "bollinger", series: Bollinger(c, 20, 2).Middle, firstValid: 19},
		{name: "macd line", series: MACD(c, 12, 26, 9).MACD, firstValid: 25},
		{name: "macd signal", series: MACD(c, 12, 26, 9).Signal, firstValid: 33},
		{name: "stochastic k", series: Stochastic(bars, 14, 3).K, firstValid: 13},
		{name: "stochastic d", series: Stochastic(bars, 14, 3).D, firstValid: 15},
		{name: "williams", series: WilliamsR(bars, 14), firstValid: 13},
		{name: "atr", series: ATR(bars, 10), firstValid: 10},
		{name: "supertrend", series: SuperTrend(bars, 10, 3).Line, firstValid: 10},
		{name: "tenkan", series: Ichimoku(bars, 9, 26, 52, 26).Tenkan, firstValid: 8},
		{name: "senkou a", series: Ichimoku(bars, 9, 26, 52, 26).SenkouA, firstValid: 51},
		{name: "senkou b", series: Ichimoku(bars, 9, 26, 52, 26).SenkouB, firstValid: 77},
		{name: "pivot", series: PivotPoints(bars).Pivot, firstValid: 1},
		{name: "obv", series: OBV(bars), firstValid: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < tt.firstValid; i++ {
				assert.False(t, tt.series[i].Valid, "index %d should be warm-up", i)
			}
			assert.True(t, tt.series[tt.firstValid].Valid, "index %d should be valid", tt.firstValid)
		})
	}
}

func TestBoundedIndicatorsStayInRange(t *testing.T) {
	bars := waveBars(300)
	set := Compute(bars, Settings{})

	for i := range bars {
		if v, ok := set.RSI.At(i); ok {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
		if v, ok := set.Stochastic.K.At(i); ok {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
		if v, ok := set.Stochastic.D.At(i); ok {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
		if v, ok := set.WilliamsR.At(i); ok {
			assert.GreaterOrEqual(t, v, -100.0)
			assert.LessOrEqual(t, v, 0.0)
		}
	}
}

func TestMovingAverages_StrictlyIncreasingOnRisingInput(t *testing.T) {
	c := closes(risingBars(80))
	for name, series := range map[string]Series{"sma": SMA(c, 10), "ema": EMA(c, 10)} {
		var prev float64
		seen := false
		for i := range series {
			v, ok := series.At(i)
			if !ok {
				continue
			}
			if seen {
				assert.Greater(t, v, prev, "%s at %d", name, i)
			}
			prev, seen = v, true
		}
		assert.True(t, seen, name)
	}
}

func TestEMA_SeededBySMA(t *testing.T) {
	out := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.False(t, out[1].Valid)
	assert.InDelta(t, 2.0, out[2].V, 1e-9)
	assert.InDelta(t, 3.0, out[3].V, 1e-9)
	assert.InDelta(t, 4.0, out[4].V, 1e-9)
}

func TestRSI_DegenerateCases(t *testing.T) {
	flat := RSI(closes(flatBars(30)), 14)
	v, ok := flat.At(29)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	rising := RSI(closes(risingBars(30)), 14)
	v, ok = rising.At(29)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestZeroRangeAndVolumeAreNull(t *testing.T) {
	bars := flatBars(40)
	assert.Zero(t, Stochastic(bars, 14, 3).K.ValidCount())
	assert.Zero(t, WilliamsR(bars, 14).ValidCount())

	for i := range bars {
		bars[i].Volume = 0
	}
	assert.Zero(t, VWAP(bars, 0).ValidCount())
	assert.Zero(t, VWAP(bars, 5).ValidCount())
}

func TestRSI_FlatStartThenMove(t *testing.T) {
	values := []float64{10, 10, 10, 10, 11}
	out := RSI(values, 3)
	assert.Equal(t, 50.0, out[3].V)
	v, ok := out.At(4)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestATR_WilderSmoothing(t *testing.T) {
	bars := []dto.PriceBar{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 9, Close: 11},
		{High: 12, Low: 10, Close: 11},
	}
	out := ATR(bars, 2)
	assert.False(t, out[1].Valid)
	assert.InDelta(t, 2.5, out[2].V, 1e-9)
	assert.InDelta(t, 2.25, out[3].V, 1e-9)
}

func TestStochastic_DNullWhenWindowHasNullK(t *testing.T) {
	bars := append(flatBars(5), risingBars(10)...)
	st := Stochastic(bars, 3, 3)
	assert.False(t, st.K[4].Valid)
	assert.True(t, st.K[5].Valid)
	assert.False(t, st.D[5].Valid)
	assert.False(t, st.D[6].Valid)
	assert.True(t, st.D[7].Valid)
}

func TestMACD_SignalIsEMAOfLine(t *testing.T) {
	c := closes(waveBars(80))
	m := MACD(c, 12, 26, 9)
	line := make([]float64, 0, len(c))
	for i := 25; i < len(c); i++ {
		line = append(line, m.MACD[i].V)
	}
	sig := EMA(line, 9)
	for j, v := range sig {
		if !v.Valid {
			continue
		}
		assert.InDelta(t, v.V, m.Signal[25+j].V, 1e-9)
		assert.InDelta(t, m.MACD[25+j].V-v.V, m.Histogram[25+j].V, 1e-9)
	}
}

func TestBollinger_FlatSeriesCollapses(t *testing.T) {
	b := Bollinger(closes(flatBars(25)), 20, 2)
	assert.Equal(t, 50.0, b.Upper[24].V)
	assert.Equal(t, 50.0, b.Middle[24].V)
	assert.Equal(t, 50.0, b.Lower[24].V)
}

func TestBollinger_PopulationStdDev(t *testing.T) {
	b := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 1)
	assert.InDelta(t, 5.0, b.Middle[7].V, 1e-9)
	assert.InDelta(t, 7.0, b.Upper[7].V, 1e-9)
	assert.InDelta(t, 3.0, b.Lower[7].V, 1e-9)
}

func TestOBV(t *testing.T) {
	bars := []dto.PriceBar{
		{Close: 10, Volume: 100},
		{Close: 11, Volume: 50},
		{Close: 11, Volume: 70},
		{Close: 9, Volume: 30},
	}
	out := OBV(bars)
	assert.Equal(t, []float64{0, 50, 50, 20}, []float64{out[0].V, out[1].V, out[2].V, out[3].V})
}

func TestPivotPoints_Classic(t *testing.T) {
	bars := []dto.PriceBar{
		{High: 110, Low: 90, Close: 100},
		{High: 105, Low: 95, Close: 101},
	}
	p := PivotPoints(bars)
	assert.False(t, p.Pivot[0].Valid)
	assert.InDelta(t, 100.0, p.Pivot[1].V, 1e-9)
	assert.InDelta(t, 110.0, p.R1[1].V, 1e-9)
	assert.InDelta(t, 90.0, p.S1[1].V, 1e-9)
	assert.InDelta(t, 120.0, p.R2[1].V, 1e-9)
	assert.InDelta(t, 80.0, p.S2[1].V, 1e-9)
}

func TestVWAP_Cumulative(t *testing.T) {
	bars := []dto.PriceBar{
		{High: 12, Low: 8, Close: 10, Volume: 100},
		{High: 22, Low: 18, Close: 20, Volume: 300},
	}
	out := VWAP(bars, 0)
	assert.InDelta(t, 10.0, out[0].V, 1e-9)
	assert.InDelta(t, 17.5, out[1].V, 1e-9)
}

func TestMACD_ConstantSeriesIsZero(t *testing.T) {
	m := MACD(closes(flatBars(60)), 12, 26, 9)
	v, ok := m.Histogram.At(59)
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-12)
}

func TestSuperTrend_DirectionFollowsTrend(t *testing.T) {
	st := SuperTrend(risingBars(60), 10, 3)
	v, ok := st.Direction.At(59)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	line, _ := st.Line.At(59)
	assert.Less(t, line, 159.0)
}

func TestValue_JSON(t *testing.T) {
	b, err := json.Marshal(Series{Null, Some(1.5), Some(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `[null, 1.5, null]`, string(b))

	var back Series
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Series{Null, Some(1.5), Null}, back)
}

func TestSeries_Slice(t *testing.T) {
	s := FromFloats([]float64{1, 2, 3, 4})
	assert.Equal(t, FromFloats([]float64{2, 3}), s.Slice(1, 2))
	assert.Equal(t, FromFloats([]float64{1, 2, 3, 4}), s.Slice(-3, 10))
	assert.Empty(t, s.Slice(3, 1))
}
