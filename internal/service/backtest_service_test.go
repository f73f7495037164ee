package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"golang-backtest/config"
	"golang-backtest/internal/backtest"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/indicator"
	"golang-backtest/internal/model"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/cache"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMs = int64(24 * 60 * 60 * 1000)

type fakeCandleRepo struct {
	mu     sync.Mutex
	bars   []dto.PriceBar
	err    error
	panics bool
	params []dto.GetStockDataParam
}

func (f *fakeCandleRepo) Fetch(_ context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, param)
	if f.panics {
		panic("provider exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dto.StockData{Symbol: param.Symbol, Range: param.Range, Interval: param.Interval, Source: "fake", Bars: f.bars}, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]model.BacktestRun
	err  error
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[string]model.BacktestRun{}}
}

func (f *fakeRunRepo) Create(_ context.Context, run *model.BacktestRun, _ ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRunRepo) GetByID(_ context.Context, id string) (*model.BacktestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return &run, nil
}

func (f *fakeRunRepo) List(_ context.Context, param model.ListBacktestRunParam) ([]model.BacktestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BacktestRun
	for _, run := range f.runs {
		if param.SuccessOnly && !run.Success {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func (f *fakeRunRepo) DeleteOlderThan(_ context.Context, date time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, run := range f.runs {
		if run.CreatedAt.Before(date) {
			delete(f.runs, id)
			n++
		}
	}
	return n, nil
}

func waveBars(n int) []dto.PriceBar {
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		c := 100 + 15*math.Sin(float64(i)/6)
		bars[i] = dto.PriceBar{Timestamp: int64(i) * dayMs, Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func testConfig() *config.Config {
	return &config.Config{
		Cache:    config.Cache{ResultTTL: time.Hour},
		Backtest: config.Backtest{FeePct: 0.1, MinNotional: 1, Indicators: indicator.DefaultSettings()},
		API:      config.API{RunTimeout: time.Minute},
	}
}

func newTestBacktestService(candles repository.CandleRepository, runs repository.BacktestRunRepository) (*backtestService, cache.Cache) {
	c := cache.NewCache(time.Hour, time.Hour)
	svc := NewBacktestService(testConfig(), logger.NewNop(), candles, runs, c).(*backtestService)
	n := 0
	svc.newID = func() string {
		n++
		return "run-" + string(rune('0'+n))
	}
	return svc, c
}

func recommendedRequest(id string) dto.BacktestRequest {
	return dto.BacktestRequest{
		Symbol:         " btcusdt ",
		Period:         "1y",
		Strategy:       dto.StrategyRequest{Type: dto.StrategyTypeRecommended, RecommendedID: id},
		InitialCapital: 10000,
		StopLossPct:    5,
		TakeProfitPct:  10,
	}
}

func TestRunBacktest_Success(t *testing.T) {
	candles := &fakeCandleRepo{bars: waveBars(200)}
	runs := newFakeRunRepo()
	svc, _ := newTestBacktestService(candles, runs)

	result := svc.RunBacktest(context.Background(), recommendedRequest("rsi_reversal"))

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "BTCUSDT", result.Config.Symbol)
	assert.Equal(t, "1d", result.Config.Interval)
	assert.Equal(t, "fake", result.DataSource)
	assert.Len(t, result.PriceSeries, 200)
	assert.Len(t, result.IndicatorSeries.RSI, 200)
	assert.Nil(t, result.StrategySeries)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 10000.0, result.Metrics.InitialCapital)
	assert.Len(t, result.FinalState.CapitalHistory, 199)

	require.Len(t, candles.params, 1)
	assert.Equal(t, dto.GetStockDataParam{Symbol: "BTCUSDT", Range: "1y", Interval: "1d"}, candles.params[0])

	cached, ok := svc.GetResult(context.Background(), "run-1")
	require.True(t, ok)
	assert.Same(t, result, cached)

	saved, err := runs.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.True(t, saved.Success)
	assert.Equal(t, "rsi_reversal", saved.StrategyName)
	assert.Equal(t, result.Metrics.TotalTrades, saved.TotalTrades)
}

func TestRunBacktest_ProviderFailureIsReported(t *testing.T) {
	candles := &fakeCandleRepo{err: &repository.PriceDataError{Symbol: "BTCUSDT", Range: "1y", Interval: "1d"}}
	runs := newFakeRunRepo()
	svc, _ := newTestBacktestService(candles, runs)

	result := svc.RunBacktest(context.Background(), recommendedRequest("ema_cross"))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "price data unavailable")
	assert.Nil(t, result.Metrics)
	_, ok := svc.GetResult(context.Background(), result.RunID)
	assert.False(t, ok, "failed runs are not replayable")

	saved, err := runs.GetByID(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.False(t, saved.Success)
	assert.Equal(t, 10000.0, saved.FinalValue)
}

func TestRunBacktest_InvalidStrategyNeverFetches(t *testing.T) {
	candles := &fakeCandleRepo{bars: waveBars(50)}
	svc, _ := newTestBacktestService(candles, nil)

	result := svc.RunBacktest(context.Background(), recommendedRequest("moon_shot"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid strategy")

	dca := recommendedRequest("dca")
	result = svc.RunBacktest(context.Background(), dca)
	assert.False(t, result.Success)

	dca.DCA = &dto.DCARequest{AmountPerBuy: 0, Cadence: "weekly"}
	result = svc.RunBacktest(context.Background(), dca)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "amount_per_buy")

	assert.Empty(t, candles.params)
}

func TestRunBacktest_PanicBecomesFailedResult(t *testing.T) {
	svc, _ := newTestBacktestService(&fakeCandleRepo{panics: true}, nil)

	var result *backtest.Result
	require.NotPanics(t, func() {
		result = svc.RunBacktest(context.Background(), recommendedRequest("macd_cross"))
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "provider exploded")
}

func TestRunBacktest_CancelledContext(t *testing.T) {
	svc, _ := newTestBacktestService(&fakeCandleRepo{bars: waveBars(2000)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.RunBacktest(ctx, recommendedRequest("rsi_reversal"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "cancelled")
}

func TestRunBacktest_DCA(t *testing.T) {
	svc, _ := newTestBacktestService(&fakeCandleRepo{bars: waveBars(71)}, nil)
	req := recommendedRequest("dca")
	req.DCA = &dto.DCARequest{AmountPerBuy: 100, Cadence: "weekly"}

	result := svc.RunBacktest(context.Background(), req)
	require.True(t, result.Success, result.Error)

	buys := 0
	for _, tr := range result.FinalState.Trades {
		if tr.Type == dto.TradeBuy {
			buys++
		}
	}
	assert.Equal(t, 10, buys)
	last := result.FinalState.Trades[len(result.FinalState.Trades)-1]
	assert.Equal(t, backtest.ReasonEndOfPeriod, last.Reason)
}

func TestRunBacktest_CustomStrategy(t *testing.T) {
	svc, _ := newTestBacktestService(&fakeCandleRepo{bars: waveBars(150)}, nil)
	req := recommendedRequest("")
	req.Strategy = dto.StrategyRequest{
		Type: dto.StrategyTypeCustom,
		Custom: &dto.CustomStrategyRequest{
			Indicators: []dto.IndicatorInstanceRequest{{
				Kind:            "rsi",
				Params:          dto.IndicatorParams{Period: 7},
				EntryConditions: []dto.ConditionRequest{{Kind: "oversold"}},
				ExitConditions:  []dto.ConditionRequest{{Kind: "overbought"}},
			}},
		},
	}

	result := svc.RunBacktest(context.Background(), req)
	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.FinalState.Trades)

	require.Contains(t, result.StrategySeries, "rsi-1")
	rsi := result.StrategySeries["rsi-1"]["value"]
	assert.Len(t, rsi, 150)
	assert.True(t, rsi[7].Valid, "period 7 from the instance")
	assert.False(t, result.IndicatorSeries.RSI[7].Valid, "global set keeps the default period")
}

func TestIndicatorSettings(t *testing.T) {
	base := indicator.DefaultSettings()
	base.RSIPeriod = 21

	assert.Equal(t, base, indicatorSettings(base, nil))

	got := indicatorSettings(base, &dto.IndicatorSettingsRequest{EMAFast: 5, BollingerStdDev: 2.5, SuperTrendMult: 2})
	assert.Equal(t, 21, got.RSIPeriod)
	assert.Equal(t, 5, got.EMAFast)
	assert.Equal(t, 26, got.EMASlow)
	assert.Equal(t, 2.5, got.BollingerStdDev)
	assert.Equal(t, 2.0, got.SuperTrendMultiplier)
}

func TestRuns_PersistenceDisabled(t *testing.T) {
	svc, _ := newTestBacktestService(&fakeCandleRepo{}, nil)

	_, err := svc.ListRuns(context.Background(), dto.ListBacktestRunsRequest{})
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
	_, err = svc.GetRun(context.Background(), "x")
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}

func TestRuns_ListAndGet(t *testing.T) {
	runs := newFakeRunRepo()
	svc, _ := newTestBacktestService(&fakeCandleRepo{bars: waveBars(100)}, runs)
	ok := svc.RunBacktest(context.Background(), recommendedRequest("ema_cross"))
	svc.RunBacktest(context.Background(), recommendedRequest("unknown"))

	all, err := svc.ListRuns(context.Background(), dto.ListBacktestRunsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	succeeded, err := svc.ListRuns(context.Background(), dto.ListBacktestRunsRequest{SuccessOnly: true})
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
	assert.Equal(t, ok.RunID, succeeded[0].ID)

	got, err := svc.GetRun(context.Background(), ok.RunID)
	require.NoError(t, err)
	var metrics dto.Metrics
	require.NoError(t, json.Unmarshal(got.Metrics, &metrics))
	assert.Equal(t, ok.Metrics.FinalValue, metrics.FinalValue)

	_, err = svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestRunBacktest_PersistFailureDoesNotFailRun(t *testing.T) {
	runs := newFakeRunRepo()
	runs.err = errors.New("db down")
	svc, _ := newTestBacktestService(&fakeCandleRepo{bars: waveBars(100)}, runs)

	result := svc.RunBacktest(context.Background(), recommendedRequest("triple_ema"))
	assert.True(t, result.Success, result.Error)
}
