package backtest

import (
	"testing"

	"golang-backtest/internal/dto"

	"github.com/stretchr/testify/assert"
)

func sellTrade(ts int64, pnl, fee float64) dto.Trade {
	pct := pnl / 10
	return dto.Trade{Type: dto.TradeSell, Timestamp: ts, Fee: fee, RealizedPnL: &pnl, RealizedPnLPct: &pct}
}

func buyTrade(ts int64, fee float64) dto.Trade {
	return dto.Trade{Type: dto.TradeBuy, Timestamp: ts, Fee: fee}
}

func equity(values ...float64) []dto.EquityPoint {
	out := make([]dto.EquityPoint, len(values))
	for i, v := range values {
		out[i] = dto.EquityPoint{Timestamp: int64(i+1) * testDay, Value: v}
	}
	return out
}

func TestCalculateMetrics_TradeStats(t *testing.T) {
	state := &State{
		Trades: []dto.Trade{
			buyTrade(0, 1), sellTrade(2*testDay, 100, 1),
			buyTrade(3*testDay, 1), sellTrade(7*testDay, -50, 1),
			buyTrade(8*testDay, 1), sellTrade(9*testDay, 30, 1),
		},
		CapitalHistory: equity(1000, 1100, 1050, 1080),
	}
	m := CalculateMetrics(Config{InitialCapital: 1000}, nil, state)

	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 200.0/3, m.WinRate, 1e-9)
	assert.InDelta(t, 130.0/50, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 65.0, m.AvgWin, 1e-9)
	assert.InDelta(t, -50.0, m.AvgLoss, 1e-9)
	assert.InDelta(t, 100.0, m.LargestWin, 1e-9)
	assert.InDelta(t, -50.0, m.LargestLoss, 1e-9)
	assert.InDelta(t, 6.0, m.TotalFees, 1e-9)
	assert.InDelta(t, (2.0+4.0+1.0)/3, m.AvgHoldingPeriod, 1e-9)
	assert.InDelta(t, 1080.0, m.FinalValue, 1e-9)
	assert.InDelta(t, 80.0, m.TotalReturn, 1e-9)
	assert.InDelta(t, 8.0, m.TotalReturnPct, 1e-9)
}

func TestCalculateMetrics_ProfitFactorSentinel(t *testing.T) {
	winsOnly := &State{Trades: []dto.Trade{buyTrade(0, 0), sellTrade(testDay, 10, 0)}}
	assert.Equal(t, 999.0, CalculateMetrics(Config{InitialCapital: 100}, nil, winsOnly).ProfitFactor)

	none := &State{}
	assert.Zero(t, CalculateMetrics(Config{InitialCapital: 100}, nil, none).ProfitFactor)

	breakEven := &State{Trades: []dto.Trade{buyTrade(0, 0), sellTrade(testDay, 0, 0)}}
	m := CalculateMetrics(Config{InitialCapital: 100}, nil, breakEven)
	assert.Zero(t, m.ProfitFactor)
	assert.Equal(t, 1, m.LosingTrades)
}

func TestMaxDrawdown_PeakSeededWithInitialCapital(t *testing.T) {
	abs, pct := maxDrawdown(100, equity(110, 90, 120, 60))
	assert.InDelta(t, 60.0, abs, 1e-9)
	assert.InDelta(t, 50.0, pct, 1e-9)

	abs, pct = maxDrawdown(100, equity(80, 90))
	assert.InDelta(t, 20.0, abs, 1e-9)
	assert.InDelta(t, 20.0, pct, 1e-9)

	abs, pct = maxDrawdown(100, equity(100, 101, 102))
	assert.Zero(t, abs)
	assert.Zero(t, pct)
}

func TestSharpeRatio(t *testing.T) {
	assert.Zero(t, sharpeRatio(100, equity(100, 100, 100)))
	assert.Zero(t, sharpeRatio(100, equity(110)))

	assert.Greater(t, sharpeRatio(100, equity(101, 103, 104, 107)), 0.0)
	assert.Less(t, sharpeRatio(100, equity(99, 96, 95, 91)), 0.0)
}

func TestBuyAndHoldAndAlpha(t *testing.T) {
	bars := []dto.PriceBar{{Close: 100}, {Close: 200}, {Close: 300}}
	state := &State{CapitalHistory: equity(1000, 1050, 1100)}
	m := CalculateMetrics(Config{InitialCapital: 1000}, bars, state)

	assert.InDelta(t, 3000.0, m.BuyAndHoldValue, 1e-9)
	assert.InDelta(t, 200.0, m.BuyAndHoldReturnPct, 1e-9)
	assert.InDelta(t, 10.0-200.0, m.Alpha, 1e-9)
}

func TestBuyAndHold_SingleBarIsFlat(t *testing.T) {
	value, pct := buyAndHold(1000, []dto.PriceBar{{Close: 42}})
	assert.InDelta(t, 1000.0, value, 1e-9)
	assert.Zero(t, pct)
}

func TestCalculateMetrics_NilState(t *testing.T) {
	m := CalculateMetrics(Config{InitialCapital: 500}, nil, nil)
	assert.Equal(t, 500.0, m.FinalValue)
	assert.Zero(t, m.TotalTrades)
}
