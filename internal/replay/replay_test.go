package replay

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
	"golang-backtest/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDay = int64(24 * 60 * 60 * 1000)

func testData(n int, tradeBars ...int) Data {
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = dto.PriceBar{Timestamp: int64(i) * testDay, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	var trades []dto.Trade
	for k, i := range tradeBars {
		typ := dto.TradeBuy
		if k%2 == 1 {
			typ = dto.TradeSell
		}
		trades = append(trades, dto.Trade{Type: typ, Timestamp: int64(i) * testDay, Price: bars[i].Close})
	}
	return Data{Prices: bars, Trades: trades, Indicators: indicator.Compute(bars, indicator.Settings{})}
}

func TestCompute_NonFollowGrowsFromZero(t *testing.T) {
	data := testData(50, 5, 20, 30)
	w := Compute(data, 25, 10, false)

	assert.Equal(t, 0, w.StartIndex)
	assert.Equal(t, 25, w.EndIndex)
	assert.Equal(t, 25, w.TargetIndex)
	assert.Len(t, w.Prices, 26)
	assert.Len(t, w.Trades, 2)
	assert.Len(t, w.Indicators.RSI, 26)
}

func TestCompute_FollowInvariants(t *testing.T) {
	data := testData(120, 10, 40, 60, 110)
	for _, size := range []int{1, 7, 10, 50, 120, 500} {
		for target := -3; target < 125; target++ {
			w := Compute(data, target, size, true)
			width := min(size, 120)

			assert.Equal(t, width, w.EndIndex-w.StartIndex+1, "size %d target %d", size, target)
			assert.Len(t, w.Prices, width)
			assert.GreaterOrEqual(t, w.StartIndex, 0)
			assert.LessOrEqual(t, w.EndIndex, 119)
			assert.LessOrEqual(t, w.StartIndex, w.TargetIndex)
			assert.GreaterOrEqual(t, w.EndIndex, w.TargetIndex)
			for _, tr := range w.Trades {
				assert.LessOrEqual(t, tr.Timestamp, data.Prices[w.TargetIndex].Timestamp)
				assert.GreaterOrEqual(t, tr.Timestamp, w.Prices[0].Timestamp)
			}
		}
	}
}

func TestCompute_FollowFocalPosition(t *testing.T) {
	data := testData(200)
	w := Compute(data, 100, 20, true)
	assert.Equal(t, 86, w.StartIndex)
	assert.Equal(t, 105, w.EndIndex)
	assert.Equal(t, 14, w.TargetIndex-w.StartIndex)

	w = Compute(data, 3, 20, true)
	assert.Equal(t, 0, w.StartIndex)
	assert.Equal(t, 19, w.EndIndex)

	w = Compute(data, 199, 20, true)
	assert.Equal(t, 180, w.StartIndex)
	assert.Equal(t, 199, w.EndIndex)
}

func TestCompute_TradesHiddenAfterTarget(t *testing.T) {
	data := testData(100, 48, 52)
	w := Compute(data, 50, 20, true)
	require.Len(t, w.Trades, 1)
	assert.Equal(t, 48*testDay, w.Trades[0].Timestamp)
}

func TestCompute_ChikouHidesClosesAfterTarget(t *testing.T) {
	data := testData(100)
	full := data.Indicators.Ichimoku.Chikou
	require.True(t, full[40].Valid)

	w := Compute(data, 80, 60, true)
	require.Equal(t, 38, w.StartIndex)
	chikou := w.Indicators.Ichimoku.Chikou
	for j, v := range chikou {
		global := w.StartIndex + j
		if global+26 > 80 {
			assert.False(t, v.Valid, "bar %d", global)
			continue
		}
		assert.Equal(t, full[global], v, "bar %d", global)
	}
	assert.True(t, data.Indicators.Ichimoku.Chikou[40].Valid, "source series untouched")
}

func TestCompute_SlicesStrategySeries(t *testing.T) {
	data := testData(60)
	data.Strategy = signal.InstanceSeries{
		"ema-3": {"value": indicator.EMA(closesOf(data.Prices), 3)},
	}

	w := Compute(data, 40, 10, true)
	got := w.Strategy["ema-3"]["value"]
	require.Len(t, got, 10)
	assert.Equal(t, data.Strategy["ema-3"]["value"][w.StartIndex], got[0])

	assert.Nil(t, Compute(testData(60), 40, 10, true).Strategy)
}

func closesOf(bars []dto.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	w := Compute(Data{}, 5, 10, true)
	assert.Empty(t, w.Prices)
	assert.Empty(t, w.Trades)
	assert.Equal(t, -1, w.EndIndex)
}

func TestController_PlayRunsToEnd(t *testing.T) {
	c := NewController(testData(10), WithBaseInterval(2*time.Millisecond))
	defer c.Close()

	var updates atomic.Int32
	unsubscribe := c.Subscribe(func(State) { updates.Add(1) })
	defer unsubscribe()

	c.Play()
	assert.Eventually(t, func() bool {
		st := c.State()
		return st.Index == 9 && !st.Playing
	}, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return updates.Load() >= 10 }, time.Second, time.Millisecond)
}

func TestController_PauseStopsAdvancing(t *testing.T) {
	c := NewController(testData(1000), WithBaseInterval(time.Millisecond))
	defer c.Close()

	c.Play()
	assert.Eventually(t, func() bool { return c.State().Index > 3 }, time.Second, time.Millisecond)
	c.Pause()
	idx := c.State().Index
	time.Sleep(20 * time.Millisecond)

	st := c.State()
	assert.False(t, st.Playing)
	assert.Equal(t, idx, st.Index)
}

func TestController_CloseCancelsPlayback(t *testing.T) {
	c := NewController(testData(1000), WithBaseInterval(time.Millisecond))
	var calls atomic.Int32
	c.Subscribe(func(State) { calls.Add(1) })

	c.Play()
	assert.Eventually(t, func() bool { return calls.Load() > 2 }, time.Second, time.Millisecond)
	c.Close()

	idx := c.State().Index
	time.Sleep(10 * time.Millisecond)
	seen := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, idx, c.State().Index)
	assert.Equal(t, seen, calls.Load())

	c.Play()
	assert.False(t, c.State().Playing)
}

func TestController_SpeedIsClamped(t *testing.T) {
	c := NewController(testData(10))
	defer c.Close()

	c.SetSpeed(100)
	assert.Equal(t, MaxSpeed, c.State().Speed)
	c.SetSpeed(0)
	assert.Equal(t, MinSpeed, c.State().Speed)
	c.SetSpeed(2)
	assert.Equal(t, 2.0, c.State().Speed)
}

func TestController_Navigation(t *testing.T) {
	c := NewController(testData(50, 10, 20, 30), WithWindowSize(10), WithFollow(false))
	defer c.Close()

	c.StepForward()
	c.StepForward()
	assert.Equal(t, 2, c.State().Index)
	c.StepBackward()
	assert.Equal(t, 1, c.State().Index)

	c.Seek(500)
	assert.Equal(t, 49, c.State().Index)
	c.Seek(-2)
	assert.Equal(t, 0, c.State().Index)
	c.StepBackward()
	assert.Equal(t, 0, c.State().Index)

	c.SeekTime(15*testDay + 10)
	assert.Equal(t, 15, c.State().Index)
	c.SeekTime(-testDay)
	assert.Equal(t, 0, c.State().Index)

	assert.True(t, c.GoToNextTrade())
	assert.Equal(t, 10, c.State().Index)
	assert.True(t, c.GoToNextTrade())
	assert.Equal(t, 20, c.State().Index)
	assert.True(t, c.GoToPreviousTrade())
	assert.Equal(t, 10, c.State().Index)
	assert.False(t, c.GoToPreviousTrade())

	c.Seek(30)
	assert.False(t, c.GoToNextTrade())

	st := c.State()
	assert.False(t, st.Follow)
	assert.Equal(t, 0, st.Window.StartIndex)
	assert.Len(t, st.Window.Trades, 3)

	c.ToggleFollow()
	c.SetWindowSize(10)
	st = c.State()
	assert.True(t, st.Follow)
	assert.Equal(t, 10, st.Window.EndIndex-st.Window.StartIndex+1)

	c.Stop()
	assert.Equal(t, 0, c.State().Index)
}

func TestController_UnsubscribeStopsNotifications(t *testing.T) {
	c := NewController(testData(10))
	defer c.Close()

	var mu sync.Mutex
	var got []int
	unsubscribe := c.Subscribe(func(st State) {
		mu.Lock()
		got = append(got, st.Index)
		mu.Unlock()
	})
	c.StepForward()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)
	unsubscribe()
	unsubscribe()
	c.StepForward()
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1}, got)
}

func TestController_ListenerMayCloseAtLastBar(t *testing.T) {
	c := NewController(testData(5), WithBaseInterval(time.Millisecond))

	closed := make(chan struct{})
	c.Subscribe(func(st State) {
		if st.Index == st.Total-1 {
			c.Close()
			close(closed)
		}
	})
	c.Play()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close called from a listener did not return")
	}
	c.Play()
	assert.False(t, c.State().Playing)
}

func TestController_SnapshotsArriveInOrder(t *testing.T) {
	c := NewController(testData(200), WithBaseInterval(time.Millisecond))
	defer c.Close()

	var mu sync.Mutex
	var seqs []uint64
	c.Subscribe(func(st State) {
		mu.Lock()
		seqs = append(seqs, st.Seq)
		mu.Unlock()
	})

	c.Play()
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				c.Seek(i * 2)
				c.ToggleFollow()
			}
		}()
	}
	wg.Wait()
	c.Pause()
	last := c.State().Seq

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seqs) > 0 && seqs[len(seqs)-1] == last
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i], "snapshot %d", i)
	}
}

func TestController_Apply(t *testing.T) {
	c := NewController(testData(20))
	defer c.Close()

	idx := 7
	require.NoError(t, c.Apply(Command{Action: CommandSeek, Index: &idx}))
	assert.Equal(t, 7, c.State().Index)

	assert.ErrorIs(t, c.Apply(Command{Action: CommandSetSpeed}), ErrMissingArgument)
	assert.Error(t, c.Apply(Command{Action: "rewind"}))

	require.NoError(t, c.Apply(Command{Action: CommandStop}))
	assert.Equal(t, 0, c.State().Index)
}
