package strategy

import (
	"context"
	"encoding/json"
	"time"
)

const (
	JOB_EXIT_CODE_SUCCESS         = 200
	JOB_EXIT_CODE_FAILED          = 500
	JOB_EXIT_CODE_SKIPPED         = 204
	JOB_EXIT_CODE_PARTIAL_SUCCESS = 206
)

type JobType string

const (
	JobTypePriceWarmup  JobType = "price_warmup"
	JobTypeRunRetention JobType = "run_retention"
)

// Job is one scheduled unit of work, built from configuration.
type Job struct {
	Name     string          `json:"name"`
	Type     JobType         `json:"type"`
	Schedule string          `json:"schedule"`
	Timeout  time.Duration   `json:"timeout"`
	Payload  json.RawMessage `json:"payload"`
}

type JobResult struct {
	ExitCode int32  `json:"exit_code"`
	Output   string `json:"output"`
}

// JobExecutionStrategy defines the interface for different job execution strategies.
type JobExecutionStrategy interface {
	Execute(ctx context.Context, job Job) (JobResult, error)
	GetType() JobType
}
