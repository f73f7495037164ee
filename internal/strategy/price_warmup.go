package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
	"sync"

	"golang.org/x/sync/errgroup"
)

type PriceWarmupPayload struct {
	Symbols        []string `json:"symbols"`
	Periods        []string `json:"periods"`
	Interval       string   `json:"interval"`
	MaxConcurrency int      `json:"max_concurrency"`
}

type PriceWarmupResult struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
	Bars   int    `json:"bars"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PriceWarmupStrategy prefetches a watchlist so interactive runs hit the price cache.
type PriceWarmupStrategy struct {
	log        *logger.Logger
	candleRepo repository.CandleRepository
}

func NewPriceWarmupStrategy(log *logger.Logger, candleRepo repository.CandleRepository) JobExecutionStrategy {
	return &PriceWarmupStrategy{
		log:        log,
		candleRepo: candleRepo,
	}
}

func (s *PriceWarmupStrategy) Execute(ctx context.Context, job Job) (JobResult, error) {
	var payload PriceWarmupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.StringField("job_name", job.Name))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to unmarshal job payload: %v", err)}, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if len(payload.Symbols) == 0 || len(payload.Periods) == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no symbols configured"}, nil
	}

	s.log.InfoContext(ctx, "Starting price warm-up",
		logger.IntField("symbols", len(payload.Symbols)),
		logger.IntField("periods", len(payload.Periods)))

	var (
		mu      sync.Mutex
		results []PriceWarmupResult
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	if payload.MaxConcurrency > 0 {
		g.SetLimit(payload.MaxConcurrency)
	}

	for _, symbol := range payload.Symbols {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		for _, period := range payload.Periods {
			g.Go(func() error {
				res := PriceWarmupResult{Symbol: symbol, Period: period}
				data, err := s.candleRepo.Fetch(gctx, dto.GetStockDataParam{Symbol: symbol, Range: period, Interval: payload.Interval})
				if err != nil {
					s.log.WarnContext(gctx, "Price warm-up failed",
						logger.StringField("symbol", symbol),
						logger.StringField("period", period),
						logger.ErrorField(err))
					res.Error = err.Error()
				} else {
					res.Bars = len(data.Bars)
					res.Source = data.Source
				}

				mu.Lock()
				results = append(results, res)
				if err != nil {
					failed++
				}
				mu.Unlock()
				// a single symbol failing must not cancel the others
				return nil
			})
		}
	}
	_ = g.Wait()

	output, err := json.Marshal(results)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", err)}, fmt.Errorf("failed to marshal output message: %w", err)
	}

	switch {
	case failed == 0:
		return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(output)}, nil
	case failed < len(results):
		return JobResult{ExitCode: JOB_EXIT_CODE_PARTIAL_SUCCESS, Output: string(output)}, nil
	default:
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: string(output)}, fmt.Errorf("price warm-up failed for all %d requests", failed)
	}
}

func (s *PriceWarmupStrategy) GetType() JobType {
	return JobTypePriceWarmup
}
