package service

import (
	"golang-backtest/config"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
)

type Service struct {
	BacktestService  BacktestService
	ReplayService    ReplayService
	SchedulerService SchedulerService
	TaskExecutor     TaskExecutor
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
) *Service {
	backtestService := NewBacktestService(cfg, log, repo.CandleRepo, repo.BacktestRunRepo, inmemoryCache)
	replayService := NewReplayService(cfg.Replay, log, backtestService)

	executorStrategies := make(map[strategy.JobType]strategy.JobExecutionStrategy)
	executorStrategies[strategy.JobTypePriceWarmup] = strategy.NewPriceWarmupStrategy(log, repo.CandleRepo)
	executorStrategies[strategy.JobTypeRunRetention] = strategy.NewRunRetentionStrategy(log, repo.BacktestRunRepo)

	taskExecutor := NewTaskExecutor(log, executorStrategies)
	schedulerService := NewSchedulerService(cfg, log, taskExecutor)
	return &Service{
		BacktestService:  backtestService,
		ReplayService:    replayService,
		SchedulerService: schedulerService,
		TaskExecutor:     taskExecutor,
	}
}
