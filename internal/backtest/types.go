// Package backtest simulates a single long position over a price series and
// summarizes the outcome.
package backtest

import (
	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
	"golang-backtest/internal/signal"
)

const (
	ReasonStopLoss    = "Stop Loss Hit"
	ReasonTakeProfit  = "Take Profit Hit"
	ReasonEndOfPeriod = "End of Period"
)

type DCAConfig struct {
	AmountPerBuy float64 `json:"amount_per_buy"`
}

// Config is the risk and sizing configuration of a run. Percentages are in
// percent units (5 means 5%). A zero StopLossPct or TakeProfitPct disables it.
type Config struct {
	InitialCapital  float64    `json:"initial_capital"`
	PositionSizePct float64    `json:"position_size_pct"`
	StopLossPct     float64    `json:"stop_loss_pct"`
	TakeProfitPct   float64    `json:"take_profit_pct"`
	FeePct          float64    `json:"fee_pct"`
	MinNotional     float64    `json:"min_notional"`
	DCA             *DCAConfig `json:"dca,omitempty"`
}

func (c Config) IsDCA() bool {
	return c.DCA != nil
}

type Position struct {
	IsOpen        bool    `json:"is_open"`
	Quantity      float64 `json:"quantity"`
	AverageCost   float64 `json:"average_cost"`
	TotalInvested float64 `json:"total_invested"`
	OpenedAt      int64   `json:"opened_at"`
}

// State is mutated by the engine during a run and frozen afterwards.
type State struct {
	Cash           float64           `json:"cash"`
	Position       Position          `json:"position"`
	Trades         []dto.Trade       `json:"trades"`
	CapitalHistory []dto.EquityPoint `json:"capital_history"`
}

func (s *State) FinalValue() float64 {
	if n := len(s.CapitalHistory); n > 0 {
		return s.CapitalHistory[n-1].Value
	}
	return s.Cash
}

// Result is everything a finished run produces. A failed run carries
// Success=false and Error; the other fields may be empty.
type Result struct {
	RunID           string              `json:"run_id"`
	Config          dto.BacktestRequest `json:"config"`
	DataSource      string              `json:"data_source,omitempty"`
	FinalState      *State              `json:"final_state,omitempty"`
	Metrics         *dto.Metrics        `json:"metrics,omitempty"`
	PriceSeries     []dto.PriceBar      `json:"price_series,omitempty"`
	IndicatorSeries *indicator.Set      `json:"indicator_series,omitempty"`
	// StrategySeries holds a custom strategy's per-instance series.
	StrategySeries signal.InstanceSeries `json:"strategy_series,omitempty"`
	Success        bool                  `json:"success"`
	Error          string                `json:"error,omitempty"`
}

func Failed(runID string, req dto.BacktestRequest, msg string) *Result {
	return &Result{RunID: runID, Config: req, Success: false, Error: msg}
}
