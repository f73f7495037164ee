package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-backtest/internal/dto"
	"golang-backtest/internal/model"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandles struct {
	failing  map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []dto.GetStockDataParam
}

func (f *fakeCandles) Fetch(_ context.Context, param dto.GetStockDataParam) (*dto.StockData, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	f.seen = append(f.seen, param)
	f.mu.Unlock()
	if f.failing[param.Symbol] {
		return nil, errors.New("unavailable")
	}
	return &dto.StockData{Source: "fake", Bars: make([]dto.PriceBar, 10)}, nil
}

func warmupJob(t *testing.T, payload PriceWarmupPayload) Job {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Job{Name: "warmup", Type: JobTypePriceWarmup, Payload: raw}
}

func TestPriceWarmup_AllSucceed(t *testing.T) {
	candles := &fakeCandles{}
	s := NewPriceWarmupStrategy(logger.NewNop(), candles)

	res, err := s.Execute(context.Background(), warmupJob(t, PriceWarmupPayload{
		Symbols:        []string{"BTCUSDT", "AAPL", "MSFT"},
		Periods:        []string{"1y", "6m"},
		Interval:       "1d",
		MaxConcurrency: 2,
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_SUCCESS), res.ExitCode)
	assert.Len(t, candles.seen, 6)
	assert.LessOrEqual(t, candles.peak.Load(), int32(2))

	var out []PriceWarmupResult
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	assert.Len(t, out, 6)
	assert.Equal(t, 10, out[0].Bars)
}

func TestPriceWarmup_PartialAndTotalFailure(t *testing.T) {
	candles := &fakeCandles{failing: map[string]bool{"BAD": true}}
	s := NewPriceWarmupStrategy(logger.NewNop(), candles)

	res, err := s.Execute(context.Background(), warmupJob(t, PriceWarmupPayload{Symbols: []string{"BAD", "AAPL"}, Periods: []string{"1y"}}))
	require.NoError(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_PARTIAL_SUCCESS), res.ExitCode)

	res, err = s.Execute(context.Background(), warmupJob(t, PriceWarmupPayload{Symbols: []string{"BAD"}, Periods: []string{"1y"}}))
	assert.Error(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_FAILED), res.ExitCode)
}

func TestPriceWarmup_SkipsEmptyWatchlist(t *testing.T) {
	s := NewPriceWarmupStrategy(logger.NewNop(), &fakeCandles{})
	res, err := s.Execute(context.Background(), warmupJob(t, PriceWarmupPayload{}))
	require.NoError(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_SKIPPED), res.ExitCode)

	_, err = s.Execute(context.Background(), Job{Payload: []byte("{")})
	assert.Error(t, err)
}

type fakeRuns struct {
	before time.Time
	err    error
}

func (f *fakeRuns) Create(context.Context, *model.BacktestRun, ...utils.DBOption) error { return nil }
func (f *fakeRuns) GetByID(context.Context, string) (*model.BacktestRun, error)         { return nil, nil }
func (f *fakeRuns) List(context.Context, model.ListBacktestRunParam) ([]model.BacktestRun, error) {
	return nil, nil
}
func (f *fakeRuns) DeleteOlderThan(_ context.Context, date time.Time) (int64, error) {
	f.before = date
	return 4, f.err
}

func TestRunRetention(t *testing.T) {
	runs := &fakeRuns{}
	s := NewRunRetentionStrategy(logger.NewNop(), runs).(*RunRetentionStrategy)
	s.now = func() time.Time { return time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC) }

	res, err := s.Execute(context.Background(), Job{Payload: []byte(`{"retention_days":30}`)})
	require.NoError(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_SUCCESS), res.ExitCode)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), runs.before)
	assert.Contains(t, res.Output, `"total":4`)

	res, err = s.Execute(context.Background(), Job{Payload: []byte(`{"retention_days":0}`)})
	require.NoError(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_SKIPPED), res.ExitCode)

	runs.err = errors.New("db down")
	res, err = s.Execute(context.Background(), Job{Payload: []byte(`{"retention_days":30}`)})
	assert.Error(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_FAILED), res.ExitCode)
}

func TestRunRetention_WithoutDatabase(t *testing.T) {
	s := NewRunRetentionStrategy(logger.NewNop(), nil)
	res, err := s.Execute(context.Background(), Job{Payload: []byte(`{"retention_days":30}`)})
	require.NoError(t, err)
	assert.Equal(t, int32(JOB_EXIT_CODE_SKIPPED), res.ExitCode)
}
