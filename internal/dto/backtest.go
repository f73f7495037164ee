package dto

import (
	"encoding/json"
	"time"
)

const (
	TradeBuy  = "BUY"
	TradeSell = "SELL"
)

const (
	StrategyTypeRecommended = "recommended"
	StrategyTypeCustom      = "custom"
)

// BacktestRequest is the strategy configuration accepted from the HTTP API and the CLI.
type BacktestRequest struct {
	Symbol          string                    `json:"symbol" validate:"required"`
	Period          string                    `json:"period" validate:"required,oneof=1m 3m 6m 1y 2y 5y"`
	Interval        string                    `json:"interval" validate:"omitempty,oneof=1h 1d 1wk"`
	Strategy        StrategyRequest           `json:"strategy"`
	InitialCapital  float64                   `json:"initial_capital" validate:"required,gt=0"`
	PositionSizePct float64                   `json:"position_size_pct" validate:"omitempty,gt=0,lte=100"`
	StopLossPct     float64                   `json:"stop_loss_pct" validate:"gte=0,lt=100"`
	TakeProfitPct   float64                   `json:"take_profit_pct" validate:"gte=0"`
	FeePct          *float64                  `json:"fee_pct" validate:"omitempty,gte=0,lt=100"`
	DCA             *DCARequest               `json:"dca"`
	Indicators      *IndicatorSettingsRequest `json:"indicators"`
}

type StrategyRequest struct {
	Type          string                 `json:"type" validate:"required,oneof=recommended custom"`
	RecommendedID string                 `json:"recommended_id" validate:"required_if=Type recommended"`
	Custom        *CustomStrategyRequest `json:"custom" validate:"required_if=Type custom"`
}

type CustomStrategyRequest struct {
	Indicators      []IndicatorInstanceRequest `json:"indicators" validate:"required,min=1,dive"`
	EntryCombinator string                     `json:"entry_combinator" validate:"omitempty,oneof=AND OR"`
	ExitCombinator  string                     `json:"exit_combinator" validate:"omitempty,oneof=AND OR"`
}

type IndicatorInstanceRequest struct {
	ID              string             `json:"id"`
	Kind            string             `json:"kind" validate:"required"`
	Params          IndicatorParams    `json:"params"`
	EntryConditions []ConditionRequest `json:"entry_conditions" validate:"dive"`
	ExitConditions  []ConditionRequest `json:"exit_conditions" validate:"dive"`
}

type ConditionRequest struct {
	Kind      string   `json:"kind" validate:"required"`
	Threshold *float64 `json:"threshold"`
}

// IndicatorParams carries every numeric parameter an indicator kind may use; zero means default.
type IndicatorParams struct {
	Period        int     `json:"period,omitempty" validate:"gte=0"`
	FastPeriod    int     `json:"fast_period,omitempty" validate:"gte=0"`
	SlowPeriod    int     `json:"slow_period,omitempty" validate:"gte=0"`
	SignalPeriod  int     `json:"signal_period,omitempty" validate:"gte=0"`
	KPeriod       int     `json:"k_period,omitempty" validate:"gte=0"`
	DPeriod       int     `json:"d_period,omitempty" validate:"gte=0"`
	StdDev        float64 `json:"std_dev,omitempty" validate:"gte=0"`
	Multiplier    float64 `json:"multiplier,omitempty" validate:"gte=0"`
	TenkanPeriod  int     `json:"tenkan_period,omitempty" validate:"gte=0"`
	KijunPeriod   int     `json:"kijun_period,omitempty" validate:"gte=0"`
	SenkouBPeriod int     `json:"senkou_b_period,omitempty" validate:"gte=0"`
	Displacement  int     `json:"displacement,omitempty" validate:"gte=0"`
}

type DCARequest struct {
	AmountPerBuy float64 `json:"amount_per_buy" validate:"required,gt=0"`
	Cadence      string  `json:"cadence" validate:"required,oneof=daily weekly biweekly monthly"`
}

// IndicatorSettingsRequest overrides the periods used for the recommended strategies and the charted series.
type IndicatorSettingsRequest struct {
	RSIPeriod        int     `json:"rsi_period" validate:"gte=0"`
	EMAFast          int     `json:"ema_fast" validate:"gte=0"`
	EMASlow          int     `json:"ema_slow" validate:"gte=0"`
	EMATrend         int     `json:"ema_trend" validate:"gte=0"`
	SMAPeriod        int     `json:"sma_period" validate:"gte=0"`
	BollingerPeriod  int     `json:"bollinger_period" validate:"gte=0"`
	BollingerStdDev  float64 `json:"bollinger_std_dev" validate:"gte=0"`
	MACDFast         int     `json:"macd_fast" validate:"gte=0"`
	MACDSlow         int     `json:"macd_slow" validate:"gte=0"`
	MACDSignal       int     `json:"macd_signal" validate:"gte=0"`
	StochasticK      int     `json:"stochastic_k" validate:"gte=0"`
	StochasticD      int     `json:"stochastic_d" validate:"gte=0"`
	WilliamsPeriod   int     `json:"williams_period" validate:"gte=0"`
	SuperTrendPeriod int     `json:"supertrend_period" validate:"gte=0"`
	SuperTrendMult   float64 `json:"supertrend_multiplier" validate:"gte=0"`
	RSIOversold      float64 `json:"rsi_oversold" validate:"gte=0,lte=100"`
	RSIOverbought    float64 `json:"rsi_overbought" validate:"gte=0,lte=100"`
}

// Trade is one ledger entry. SELL trades carry realized PnL, BUY trades do not.
type Trade struct {
	Type           string   `json:"type"`
	Timestamp      int64    `json:"timestamp"`
	Price          float64  `json:"price"`
	Quantity       float64  `json:"quantity"`
	Fee            float64  `json:"fee"`
	Reason         string   `json:"reason"`
	RealizedPnL    *float64 `json:"realized_pnl,omitempty"`
	RealizedPnLPct *float64 `json:"realized_pnl_pct,omitempty"`
}

func (t Trade) IsSell() bool {
	return t.Type == TradeSell
}

// EquityPoint is the mark-to-market value of cash plus position at a bar.
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Metrics summarizes a finished run.
type Metrics struct {
	TotalTrades         int     `json:"total_trades"`
	WinningTrades       int     `json:"winning_trades"`
	LosingTrades        int     `json:"losing_trades"`
	WinRate             float64 `json:"win_rate"`
	InitialCapital      float64 `json:"initial_capital"`
	FinalValue          float64 `json:"final_value"`
	TotalReturn         float64 `json:"total_return"`
	TotalReturnPct      float64 `json:"total_return_pct"`
	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct"`
	SharpeRatio         float64 `json:"sharpe_ratio"`
	ProfitFactor        float64 `json:"profit_factor"` // Total Profit / Total Loss
	AvgWin              float64 `json:"avg_win"`
	AvgLoss             float64 `json:"avg_loss"`
	LargestWin          float64 `json:"largest_win"`
	LargestLoss         float64 `json:"largest_loss"`
	TotalFees           float64 `json:"total_fees"`
	AvgHoldingPeriod    float64 `json:"avg_holding_period"`
	BuyAndHoldValue     float64 `json:"buy_and_hold_value"`
	BuyAndHoldReturnPct float64 `json:"buy_and_hold_return_pct"`
	Alpha               float64 `json:"alpha"`
}

// BacktestRunSummary is a persisted run as returned by the listing endpoints.
type BacktestRunSummary struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Period         string          `json:"period"`
	Interval       string          `json:"interval"`
	StrategyType   string          `json:"strategy_type"`
	StrategyName   string          `json:"strategy_name"`
	DataSource     string          `json:"data_source,omitempty"`
	Success        bool            `json:"success"`
	Error          string          `json:"error,omitempty"`
	InitialCapital float64         `json:"initial_capital"`
	FinalValue     float64         `json:"final_value"`
	TotalReturnPct float64         `json:"total_return_pct"`
	TotalTrades    int             `json:"total_trades"`
	Config         json.RawMessage `json:"config,omitempty"`
	Metrics        json.RawMessage `json:"metrics,omitempty"`
	Trades         json.RawMessage `json:"trades,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ListBacktestRunsRequest struct {
	Symbol      string `query:"symbol"`
	SuccessOnly bool   `query:"success_only"`
	Limit       int    `query:"limit" validate:"gte=0,lte=200"`
	Offset      int    `query:"offset" validate:"gte=0"`
}

type CreateReplaySessionRequest struct {
	RunID      string   `json:"run_id" validate:"required"`
	WindowSize int      `json:"window_size" validate:"gte=0"`
	Follow     *bool    `json:"follow"`
	Speed      *float64 `json:"speed" validate:"omitempty,gt=0"`
}
