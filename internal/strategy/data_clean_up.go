package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"golang-backtest/internal/repository"
	"golang-backtest/pkg/logger"
	"time"
)

type RunRetentionPayload struct {
	RetentionDays int `json:"retention_days"`
}

type RunRetentionResult struct {
	Table  string    `json:"table"`
	Before time.Time `json:"before"`
	Total  int64     `json:"total"`
}

// RunRetentionStrategy deletes persisted runs past their retention.
type RunRetentionStrategy struct {
	log     *logger.Logger
	runRepo repository.BacktestRunRepository
	now     func() time.Time
}

func NewRunRetentionStrategy(log *logger.Logger, runRepo repository.BacktestRunRepository) JobExecutionStrategy {
	return &RunRetentionStrategy{
		log:     log,
		runRepo: runRepo,
		now:     time.Now,
	}
}

func (s *RunRetentionStrategy) Execute(ctx context.Context, job Job) (JobResult, error) {
	if s.runRepo == nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "persistence disabled"}, nil
	}

	var payload RunRetentionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.StringField("job_name", job.Name))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to unmarshal job payload: %v", err)}, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if payload.RetentionDays <= 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "retention disabled"}, nil
	}

	before := s.now().UTC().AddDate(0, 0, -payload.RetentionDays)
	total, err := s.runRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to delete old backtest runs", logger.ErrorField(err))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to delete backtest runs older than %v: %v", before, err)}, fmt.Errorf("failed to delete old backtest runs: %w", err)
	}

	res, err := json.Marshal(RunRetentionResult{Table: "backtest_runs", Before: before, Total: total})
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", err)}, fmt.Errorf("failed to marshal output message: %w", err)
	}
	s.log.InfoContext(ctx, "Deleted old backtest runs", logger.Field("total", total))
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(res)}, nil
}

func (s *RunRetentionStrategy) GetType() JobType {
	return JobTypeRunRetention
}
