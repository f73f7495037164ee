// Package replay turns a finished run into a navigable, bar-by-bar view.
package replay

import (
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
	"golang-backtest/internal/signal"
)

// focalRatio places the target bar this far from the left edge of a follow window.
const focalRatio = 0.7

// Data is the immutable input of a replay.
type Data struct {
	Prices     []dto.PriceBar
	Trades     []dto.Trade
	Indicators *indicator.Set
	// Strategy holds the custom strategy's own series, if any.
	Strategy signal.InstanceSeries
}

func DataFromResult(r *backtest.Result) Data {
	if r == nil {
		return Data{}
	}
	d := Data{Prices: r.PriceSeries, Indicators: r.IndicatorSeries, Strategy: r.StrategySeries}
	if r.FinalState != nil {
		d.Trades = r.FinalState.Trades
	}
	return d
}

// Window is the visible slice of a replay. StartIndex, EndIndex and
// TargetIndex are global bar indexes; EndIndex is inclusive.
type Window struct {
	Prices      []dto.PriceBar `json:"prices"`
	Trades      []dto.Trade    `json:"trades"`
	Indicators  *indicator.Set `json:"indicators,omitempty"`
	StartIndex  int            `json:"start_index"`
	EndIndex    int            `json:"end_index"`
	TargetIndex int            `json:"target_index"`

	Strategy signal.InstanceSeries `json:"strategy,omitempty"`
}

// Compute returns the window for target. Without follow the window grows from
// bar 0 to target. With follow it is windowSize bars wide with target at
// floor(0.7*windowSize) from the left, shifted to stay within the series.
// Trades are visible when they fall inside the window and not after target,
// and the Chikou span is null wherever its close lies after target.
func Compute(data Data, target, windowSize int, follow bool) Window {
	n := len(data.Prices)
	if n == 0 {
		return Window{Prices: []dto.PriceBar{}, Trades: []dto.Trade{}, EndIndex: -1}
	}
	target = clampInt(target, 0, n-1)

	start, end := 0, target
	if follow {
		size := clampInt(windowSize, 1, n)
		start = target - int(focalRatio*float64(size))
		end = start + size - 1
		if start < 0 {
			start, end = 0, size-1
		}
		if end > n-1 {
			start, end = n-size, n-1
		}
		if target < start {
			start = target
		}
		if target > end {
			end = target
		}
	}

	prices := make([]dto.PriceBar, end-start+1)
	copy(prices, data.Prices[start:end+1])

	from := data.Prices[start].Timestamp
	to := data.Prices[end].Timestamp
	cursor := data.Prices[target].Timestamp
	trades := []dto.Trade{}
	for _, t := range data.Trades {
		if t.Timestamp >= from && t.Timestamp <= to && t.Timestamp <= cursor {
			trades = append(trades, t)
		}
	}

	indicators := data.Indicators.Slice(start, end)
	if indicators != nil {
		indicators.Ichimoku = indicators.Ichimoku.HideAfter(start, target)
	}

	return Window{
		Prices:      prices,
		Trades:      trades,
		Indicators:  indicators,
		StartIndex:  start,
		EndIndex:    end,
		TargetIndex: target,
		Strategy:    data.Strategy.Slice(start, end),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
