package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang-backtest/config"
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/signal"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/common"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrPersistenceDisabled = errors.New("run persistence is not configured")

// BacktestService runs simulations and keeps finished results for replay.
type BacktestService interface {
	// RunBacktest never returns an error; failures come back as Success=false.
	RunBacktest(ctx context.Context, req dto.BacktestRequest) *backtest.Result
	GetResult(ctx context.Context, runID string) (*backtest.Result, bool)
	ListRuns(ctx context.Context, req dto.ListBacktestRunsRequest) ([]dto.BacktestRunSummary, error)
	GetRun(ctx context.Context, runID string) (*dto.BacktestRunSummary, error)
}

type backtestService struct {
	cfg        *config.Config
	log        *logger.Logger
	candleRepo repository.CandleRepository
	runRepo    repository.BacktestRunRepository
	cache      cache.Cache
	newID      func() string
}

// NewBacktestService wires the run pipeline. runRepo may be nil.
func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	candleRepo repository.CandleRepository,
	runRepo repository.BacktestRunRepository,
	inmemoryCache cache.Cache,
) BacktestService {
	return &backtestService{
		cfg:        cfg,
		log:        log,
		candleRepo: candleRepo,
		runRepo:    runRepo,
		cache:      inmemoryCache,
		newID:      uuid.NewString,
	}
}

func (s *backtestService) RunBacktest(ctx context.Context, req dto.BacktestRequest) *backtest.Result {
	runID := s.newID()
	log := s.log.With(logger.StringField("run_id", runID), logger.StringField("symbol", req.Symbol))
	ctx = logger.NewContext(ctx, log)
	start := time.Now()

	var result *backtest.Result
	err := utils.Recover(func() error {
		result = s.run(ctx, runID, req)
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Backtest panicked", logger.ErrorField(err))
		result = backtest.Failed(runID, req, fmt.Sprintf("internal error: %v", err))
	}

	if result.Success {
		log.InfoContext(ctx, "Backtest completed",
			logger.IntField("bars", len(result.PriceSeries)),
			logger.IntField("trades", result.Metrics.TotalTrades),
			logger.Float64Field("final_value", result.Metrics.FinalValue),
			logger.StringField("total_return", utils.FormatPercentage(result.Metrics.TotalReturnPct)),
			logger.DurationField("elapsed", time.Since(start)))
		if s.cache != nil {
			s.cache.Set(fmt.Sprintf(common.KEY_BACKTEST_RESULT, runID), result, s.cfg.Cache.ResultTTL)
		}
	} else {
		log.WarnContext(ctx, "Backtest failed", logger.StringField("error", result.Error))
	}

	s.persist(ctx, result)
	return result
}

func (s *backtestService) run(ctx context.Context, runID string, req dto.BacktestRequest) *backtest.Result {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Interval == "" {
		req.Interval = common.INTERVAL_1D
	}

	strategyCfg, err := signal.FromRequest(req)
	if err != nil {
		return backtest.Failed(runID, req, fmt.Sprintf("invalid strategy: %v", err))
	}
	if strategyCfg.IsDCA() && (req.DCA == nil || req.DCA.AmountPerBuy <= 0) {
		return backtest.Failed(runID, req, "invalid strategy: dca amount_per_buy must be positive")
	}

	if s.cfg.API.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.API.RunTimeout)
		defer cancel()
	}

	data, err := s.candleRepo.Fetch(ctx, dto.GetStockDataParam{
		Symbol:   req.Symbol,
		Range:    req.Period,
		Interval: req.Interval,
	})
	if err != nil {
		return backtest.Failed(runID, req, fmt.Sprintf("failed to fetch price data: %v", err))
	}
	if len(data.Bars) == 0 {
		return backtest.Failed(runID, req, "no price data available")
	}
	bars := data.Bars

	set := indicator.Compute(bars, indicatorSettings(s.cfg.Backtest.Indicators, req.Indicators))
	strategy, err := signal.New(strategyCfg, bars, set)
	if err != nil {
		return backtest.Failed(runID, req, fmt.Sprintf("invalid strategy: %v", err))
	}

	engineCfg := s.engineConfig(req, strategyCfg)
	state, err := backtest.NewEngine(engineCfg).Run(ctx, bars, strategy)
	if err != nil {
		return backtest.Failed(runID, req, fmt.Sprintf("backtest cancelled: %v", err))
	}
	metrics := backtest.CalculateMetrics(engineCfg, bars, state)

	result := &backtest.Result{
		RunID:           runID,
		Config:          req,
		DataSource:      data.Source,
		FinalState:      state,
		Metrics:         &metrics,
		PriceSeries:     bars,
		IndicatorSeries: set,
		Success:         true,
	}
	if provider, ok := strategy.(signal.SeriesProvider); ok {
		result.StrategySeries = provider.Series()
	}
	return result
}

func (s *backtestService) engineConfig(req dto.BacktestRequest, strategyCfg signal.Config) backtest.Config {
	fee := s.cfg.Backtest.FeePct
	if req.FeePct != nil {
		fee = *req.FeePct
	}
	cfg := backtest.Config{
		InitialCapital:  req.InitialCapital,
		PositionSizePct: req.PositionSizePct,
		StopLossPct:     req.StopLossPct,
		TakeProfitPct:   req.TakeProfitPct,
		FeePct:          fee,
		MinNotional:     s.cfg.Backtest.MinNotional,
	}
	if strategyCfg.IsDCA() {
		cfg.DCA = &backtest.DCAConfig{AmountPerBuy: req.DCA.AmountPerBuy}
	}
	return cfg
}

// indicatorSettings layers request overrides on top of the configured defaults.
func indicatorSettings(base indicator.Settings, req *dto.IndicatorSettingsRequest) indicator.Settings {
	s := base
	if req == nil {
		return s.WithDefaults()
	}
	override := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	overrideFloat := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	override(&s.RSIPeriod, req.RSIPeriod)
	override(&s.EMAFast, req.EMAFast)
	override(&s.EMASlow, req.EMASlow)
	override(&s.EMATrend, req.EMATrend)
	override(&s.SMAPeriod, req.SMAPeriod)
	override(&s.BollingerPeriod, req.BollingerPeriod)
	overrideFloat(&s.BollingerStdDev, req.BollingerStdDev)
	override(&s.MACDFast, req.MACDFast)
	override(&s.MACDSlow, req.MACDSlow)
	override(&s.MACDSignal, req.MACDSignal)
	override(&s.StochasticK, req.StochasticK)
	override(&s.StochasticD, req.StochasticD)
	override(&s.WilliamsPeriod, req.WilliamsPeriod)
	override(&s.SuperTrendPeriod, req.SuperTrendPeriod)
	overrideFloat(&s.SuperTrendMultiplier, req.SuperTrendMult)
	return s.WithDefaults()
}

func (s *backtestService) GetResult(ctx context.Context, runID string) (*backtest.Result, bool) {
	return cache.GetFromCache[*backtest.Result](s.cache, fmt.Sprintf(common.KEY_BACKTEST_RESULT, runID))
}

func (s *backtestService) persist(ctx context.Context, result *backtest.Result) {
	if s.runRepo == nil {
		return
	}
	run, err := newBacktestRunModel(result)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to build backtest run record", logger.ErrorField(err))
		return
	}
	// saved even when the request context is already cancelled
	if err := s.runRepo.Create(context.WithoutCancel(ctx), run); err != nil {
		s.log.ErrorContext(ctx, "Failed to save backtest run", logger.ErrorField(err))
	}
}

func (s *backtestService) ListRuns(ctx context.Context, req dto.ListBacktestRunsRequest) ([]dto.BacktestRunSummary, error) {
	if s.runRepo == nil {
		return nil, ErrPersistenceDisabled
	}
	if req.Limit == 0 {
		req.Limit = 50
	}
	runs, err := s.runRepo.List(ctx, model.ListBacktestRunParam{
		Symbol:      req.Symbol,
		SuccessOnly: req.SuccessOnly,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to list backtest runs", logger.ErrorField(err))
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}

	out := make([]dto.BacktestRunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary(run))
	}
	return out, nil
}

func (s *backtestService) GetRun(ctx context.Context, runID string) (*dto.BacktestRunSummary, error) {
	if s.runRepo == nil {
		return nil, ErrPersistenceDisabled
	}
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	summary := runSummary(*run)
	return &summary, nil
}

func newBacktestRunModel(result *backtest.Result) (*model.BacktestRun, error) {
	req := result.Config
	run := &model.BacktestRun{
		ID:             result.RunID,
		Symbol:         req.Symbol,
		Period:         req.Period,
		Interval:       req.Interval,
		StrategyType:   req.Strategy.Type,
		StrategyName:   strategyName(req),
		DataSource:     result.DataSource,
		Success:        result.Success,
		Error:          result.Error,
		InitialCapital: req.InitialCapital,
		FinalValue:     req.InitialCapital,
	}

	var err error
	if run.Config, err = json.Marshal(req); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if result.Metrics != nil {
		run.FinalValue = result.Metrics.FinalValue
		run.TotalReturnPct = result.Metrics.TotalReturnPct
		run.TotalTrades = result.Metrics.TotalTrades
		if run.Metrics, err = json.Marshal(result.Metrics); err != nil {
			return nil, fmt.Errorf("failed to marshal metrics: %w", err)
		}
	}
	if result.FinalState != nil {
		if run.Trades, err = json.Marshal(result.FinalState.Trades); err != nil {
			return nil, fmt.Errorf("failed to marshal trades: %w", err)
		}
	}
	return run, nil
}

func strategyName(req dto.BacktestRequest) string {
	if req.Strategy.Type == dto.StrategyTypeCustom {
		return dto.StrategyTypeCustom
	}
	return req.Strategy.RecommendedID
}

func runSummary(run model.BacktestRun) dto.BacktestRunSummary {
	return dto.BacktestRunSummary{
		ID:             run.ID,
		Symbol:         run.Symbol,
		Period:         run.Period,
		Interval:       run.Interval,
		StrategyType:   run.StrategyType,
		StrategyName:   run.StrategyName,
		DataSource:     run.DataSource,
		Success:        run.Success,
		Error:          run.Error,
		InitialCapital: run.InitialCapital,
		FinalValue:     run.FinalValue,
		TotalReturnPct: run.TotalReturnPct,
		TotalTrades:    run.TotalTrades,
		Config:         json.RawMessage(run.Config),
		Metrics:        json.RawMessage(run.Metrics),
		Trades:         json.RawMessage(run.Trades),
		CreatedAt:      run.CreatedAt,
	}
}
