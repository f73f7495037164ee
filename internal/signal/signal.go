// Package signal decides BUY, SELL or HOLD at each bar of a price series.
package signal

import (
	"fmt"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

type Decision struct {
	Action Action
	Reason string
}

func Hold() Decision {
	return Decision{Action: ActionHold}
}

func buy(format string, args ...any) Decision {
	return Decision{Action: ActionBuy, Reason: fmt.Sprintf(format, args...)}
}

func sell(format string, args ...any) Decision {
	return Decision{Action: ActionSell, Reason: fmt.Sprintf(format, args...)}
}

// Strategy evaluates bar i of the series it was built for. holding reports
// whether a position is open at the start of the bar. Implementations read at
// most bars i-1 and i.
type Strategy interface {
	Evaluate(i int, holding bool) Decision
}

// Thresholds are the RSI levels used by the rsi_reversal rule.
type Thresholds struct {
	RSIOversold   float64
	RSIOverbought float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{RSIOversold: 30, RSIOverbought: 70}
}

// Config selects one strategy. Custom takes precedence over Recommended.
type Config struct {
	Recommended RecommendedID
	Custom      *CustomStrategy
	Cadence     Cadence
	Thresholds  Thresholds
}

func (c Config) IsDCA() bool {
	return c.Custom == nil && c.Recommended == RecommendedDCA
}

// Name is a short label used in logs and persisted run summaries.
func (c Config) Name() string {
	if c.Custom != nil {
		return dto.StrategyTypeCustom
	}
	return string(c.Recommended)
}

// New builds the strategy for bars. set must have been computed from the same bars.
func New(cfg Config, bars []dto.PriceBar, set *indicator.Set) (Strategy, error) {
	if cfg.Custom != nil {
		return cfg.Custom.Compile(bars), nil
	}
	if cfg.Recommended == RecommendedDCA {
		return NewDCA(bars, cfg.Cadence)
	}
	if !cfg.Recommended.Valid() {
		return nil, fmt.Errorf("unknown recommended strategy %q", cfg.Recommended)
	}
	if set == nil {
		return nil, fmt.Errorf("indicator set is required for %s", cfg.Recommended)
	}
	th := cfg.Thresholds
	def := DefaultThresholds()
	if th.RSIOversold <= 0 {
		th.RSIOversold = def.RSIOversold
	}
	if th.RSIOverbought <= 0 {
		th.RSIOverbought = def.RSIOverbought
	}
	return &recommended{id: cfg.Recommended, bars: bars, set: set, th: th}, nil
}

func closesOf(bars []dto.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func closeAt(bars []dto.PriceBar, i int) (float64, bool) {
	if i < 0 || i >= len(bars) {
		return 0, false
	}
	return bars[i].Close, true
}

func crossedAbove(prevA, curA, prevB, curB float64) bool {
	return prevA <= prevB && curA > curB
}

func crossedBelow(prevA, curA, prevB, curB float64) bool {
	return prevA >= prevB && curA < curB
}
