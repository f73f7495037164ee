package repository

import (
	"golang-backtest/config"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	YahooFinanceRepo YahooFinanceRepository
	BinanceRepo      BinanceRepository
	CandleRepo       CandleRepository
	// BacktestRunRepo is nil when no database is configured.
	BacktestRunRepo BacktestRunRepository
}

func NewRepository(cfg *config.Config, db *gorm.DB, inmemoryCache cache.Cache, log *logger.Logger) *Repository {
	yahooRepo := NewYahooFinanceRepository(cfg.YahooFinance, log)
	binanceRepo := NewBinanceRepository(cfg.Binance, log)

	repo := &Repository{
		YahooFinanceRepo: yahooRepo,
		BinanceRepo:      binanceRepo,
		CandleRepo:       NewCandleRepository(binanceRepo, yahooRepo, inmemoryCache, cfg.Cache.PriceTTL, log),
	}
	if db != nil {
		repo.BacktestRunRepo = NewBacktestRunRepository(db)
	}
	return repo
}
