package service

import (
	"context"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskExecution records one run of a job.
type TaskExecution struct {
	JobName     string           `json:"job_name"`
	JobType     strategy.JobType `json:"job_type"`
	Status      string           `json:"status"`
	ExitCode    int32            `json:"exit_code"`
	Output      string           `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type TaskExecutor interface {
	Execute(ctx context.Context, job strategy.Job) TaskExecution
}

type taskExecutor struct {
	log                *logger.Logger
	executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy
}

func NewTaskExecutor(log *logger.Logger, executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy) TaskExecutor {
	return &taskExecutor{
		log:                log,
		executorStrategies: executorStrategies,
	}
}

func (t *taskExecutor) Execute(ctx context.Context, job strategy.Job) (history TaskExecution) {
	t.log.InfoContext(ctx, "Processing job", logger.StringField("job_name", job.Name), logger.StringField("job_type", string(job.Type)))

	history = TaskExecution{
		JobName:   job.Name,
		JobType:   job.Type,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		completedAt := time.Now().UTC()
		history.CompletedAt = &completedAt
	}()

	executor := t.executorStrategies[job.Type]
	if executor == nil {
		t.log.ErrorContext(ctx, "Job type not found", logger.StringField("job_name", job.Name))
		history.Status = StatusFailed
		history.ExitCode = strategy.JOB_EXIT_CODE_FAILED
		history.Error = "job type not found"
		return history
	}

	var result strategy.JobResult
	err := utils.Recover(func() error {
		var execErr error
		result, execErr = executor.Execute(ctx, job)
		return execErr
	})
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to execute job", logger.ErrorField(err), logger.StringField("job_name", job.Name))
		history.Status = StatusFailed
		history.Error = err.Error()
		if result.ExitCode == 0 {
			result.ExitCode = strategy.JOB_EXIT_CODE_FAILED
		}
	} else {
		history.Status = StatusCompleted
	}
	history.ExitCode = result.ExitCode
	history.Output = result.Output

	t.log.InfoContext(ctx, "Job execution completed",
		logger.StringField("job_name", job.Name),
		logger.StringField("status", history.Status),
		logger.IntField("exit_code", int(result.ExitCode)),
		logger.DurationField("elapsed", time.Since(history.StartedAt)))
	return history
}
