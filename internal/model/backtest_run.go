package model

import (
	"time"

	"gorm.io/datatypes"
)

// BacktestRun is the persisted summary of one simulation.
type BacktestRun struct {
	ID             string         `gorm:"primaryKey;type:uuid"`
	Symbol         string         `gorm:"not null"`
	Period         string         `gorm:"not null"`
	Interval       string         `gorm:"not null"`
	StrategyType   string         `gorm:"not null"`
	StrategyName   string         `gorm:"not null"`
	DataSource     string         `gorm:"null"`
	Success        bool           `gorm:"not null"`
	Error          string         `gorm:"null"`
	InitialCapital float64        `gorm:"not null"`
	FinalValue     float64        `gorm:"not null"`
	TotalReturnPct float64        `gorm:"not null"`
	TotalTrades    int            `gorm:"not null"`
	Config         datatypes.JSON `gorm:"type:jsonb"`
	Metrics        datatypes.JSON `gorm:"type:jsonb"`
	Trades         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}

type ListBacktestRunParam struct {
	Symbol      string
	SuccessOnly bool
	Limit       int
	Offset      int
}
