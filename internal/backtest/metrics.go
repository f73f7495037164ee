package backtest

import (
	"math"

	"golang-backtest/internal/dto"
)

const (
	tradingDaysPerYear = 252
	dayMillis          = float64(24 * 60 * 60 * 1000)

	// profitFactorNoLosses is reported when a run has winning trades and no losing ones.
	profitFactorNoLosses = 999.0
)

// CalculateMetrics derives the summary of a finished run. bars is the full
// series the run was simulated on.
func CalculateMetrics(cfg Config, bars []dto.PriceBar, state *State) dto.Metrics {
	m := dto.Metrics{InitialCapital: cfg.InitialCapital}
	if state == nil {
		m.FinalValue = cfg.InitialCapital
		return m
	}

	var (
		grossWin, grossLoss float64
		holdingMillis       float64
		openedAt            int64
		hasOpen             bool
	)
	for _, t := range state.Trades {
		m.TotalFees += t.Fee
		if !t.IsSell() {
			if !hasOpen {
				openedAt, hasOpen = t.Timestamp, true
			}
			continue
		}

		m.TotalTrades++
		if hasOpen {
			holdingMillis += float64(t.Timestamp - openedAt)
			hasOpen = false
		}
		var pnl float64
		if t.RealizedPnL != nil {
			pnl = *t.RealizedPnL
		}
		if pnl > 0 {
			m.WinningTrades++
			grossWin += pnl
			m.LargestWin = math.Max(m.LargestWin, pnl)
		} else {
			m.LosingTrades++
			grossLoss += pnl
			m.LargestLoss = math.Min(m.LargestLoss, pnl)
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
		m.AvgHoldingPeriod = holdingMillis / float64(m.TotalTrades) / dayMillis
	}
	if m.WinningTrades > 0 {
		m.AvgWin = grossWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
	}
	switch {
	case grossLoss < 0:
		m.ProfitFactor = grossWin / -grossLoss
	case grossWin > 0:
		m.ProfitFactor = profitFactorNoLosses
	}

	m.FinalValue = state.FinalValue()
	m.TotalReturn = m.FinalValue - cfg.InitialCapital
	if cfg.InitialCapital > 0 {
		m.TotalReturnPct = m.TotalReturn / cfg.InitialCapital * 100
	}

	m.MaxDrawdown, m.MaxDrawdownPct = maxDrawdown(cfg.InitialCapital, state.CapitalHistory)
	m.SharpeRatio = sharpeRatio(cfg.InitialCapital, state.CapitalHistory)

	m.BuyAndHoldValue, m.BuyAndHoldReturnPct = buyAndHold(cfg.InitialCapital, bars)
	m.Alpha = m.TotalReturnPct - m.BuyAndHoldReturnPct
	return m
}

// maxDrawdown tracks the running peak, starting from the initial capital.
func maxDrawdown(initial float64, history []dto.EquityPoint) (abs, pct float64) {
	peak := initial
	for _, p := range history {
		if p.Value > peak {
			peak = p.Value
		}
		dd := peak - p.Value
		if dd > abs {
			abs = dd
		}
		if peak > 0 && dd/peak*100 > pct {
			pct = dd / peak * 100
		}
	}
	return abs, pct
}

// sharpeRatio annualizes per-bar returns with sqrt(252) and no risk-free rate.
// The first return is measured from the initial capital.
func sharpeRatio(initial float64, history []dto.EquityPoint) float64 {
	if len(history) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(history))
	prev := initial
	for _, p := range history {
		if prev > 0 {
			returns = append(returns, p.Value/prev-1)
		}
		prev = p.Value
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// buyAndHold invests the initial capital at the first close of the range and
// values it at the last close, without fees.
func buyAndHold(initial float64, bars []dto.PriceBar) (value, pct float64) {
	if len(bars) == 0 {
		return initial, 0
	}
	first := bars[0]
	last := bars[len(bars)-1]
	if first.Close <= 0 {
		return initial, 0
	}
	value = initial * last.Close / first.Close
	if initial > 0 {
		pct = (value - initial) / initial * 100
	}
	return value, pct
}
