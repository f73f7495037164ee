package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang-backtest/config"
	"golang-backtest/internal/strategy"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/utils"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrJobNotFound = errors.New("job not found")

// JobSchedule is the public view of a configured job.
type JobSchedule struct {
	Name          string           `json:"name"`
	Type          strategy.JobType `json:"type"`
	Schedule      string           `json:"schedule"`
	Timeout       string           `json:"timeout"`
	NextExecution *time.Time       `json:"next_execution,omitempty"`
	LastExecution *TaskExecution   `json:"last_execution,omitempty"`
}

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	ListJobs(ctx context.Context) []JobSchedule
	// RunJob starts the job in the background and returns once it is queued.
	RunJob(ctx context.Context, name string) error
}

type schedulerService struct {
	log          *logger.Logger
	cronParser   cron.Parser
	cron         *cron.Cron
	taskExecutor TaskExecutor
	semaphore    chan struct{}
	jobs         []strategy.Job

	mu      sync.RWMutex
	entries map[string]cron.EntryID
	last    map[string]TaskExecution
	wg      sync.WaitGroup
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	taskExecutor TaskExecutor,
) *schedulerService {
	return newSchedulerService(log, taskExecutor, cfg.Scheduler.MaxConcurrency, JobsFromConfig(cfg))
}

func newSchedulerService(log *logger.Logger, taskExecutor TaskExecutor, maxConcurrency int, jobs []strategy.Job) *schedulerService {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &schedulerService{
		log:          log,
		cronParser:   parser,
		cron:         cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
		taskExecutor: taskExecutor,
		semaphore:    make(chan struct{}, maxConcurrency),
		jobs:         jobs,
		entries:      map[string]cron.EntryID{},
		last:         map[string]TaskExecution{},
	}
}

// JobsFromConfig builds the enabled jobs.
func JobsFromConfig(cfg *config.Config) []strategy.Job {
	var jobs []strategy.Job
	if cfg.Warmup.Enabled {
		payload, _ := json.Marshal(strategy.PriceWarmupPayload{
			Symbols:        cfg.Warmup.Symbols,
			Periods:        cfg.Warmup.Periods,
			Interval:       cfg.Warmup.Interval,
			MaxConcurrency: cfg.Warmup.MaxConcurrency,
		})
		jobs = append(jobs, strategy.Job{
			Name:     "price_warmup",
			Type:     strategy.JobTypePriceWarmup,
			Schedule: cfg.Warmup.Cron,
			Timeout:  cfg.Warmup.Timeout,
			Payload:  payload,
		})
	}
	if cfg.Cleanup.Enabled && cfg.DB.Enabled() {
		payload, _ := json.Marshal(strategy.RunRetentionPayload{RetentionDays: cfg.Cleanup.RetentionDays})
		jobs = append(jobs, strategy.Job{
			Name:     "run_retention",
			Type:     strategy.JobTypeRunRetention,
			Schedule: cfg.Cleanup.Cron,
			Timeout:  cfg.Cleanup.Timeout,
			Payload:  payload,
		})
	}
	return jobs
}

func (s *schedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		schedule, err := s.cronParser.Parse(job.Schedule)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to parse cron expression", logger.ErrorField(err), logger.StringField("job_name", job.Name))
			return fmt.Errorf("failed to parse cron expression for %s: %w", job.Name, err)
		}
		s.entries[job.Name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
			if err := s.enqueue(context.Background(), job); err != nil {
				s.log.Warn("Failed to enqueue job", logger.ErrorField(err), logger.StringField("job_name", job.Name))
			}
		}))
	}

	s.cron.Start()
	s.log.InfoContext(ctx, "Scheduler started",
		logger.IntField("job_count", len(s.jobs)),
		logger.IntField("max_concurrency", cap(s.semaphore)))
	return nil
}

// Stop halts the cron loop and waits for running jobs until ctx expires.
func (s *schedulerService) Stop(ctx context.Context) {
	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.InfoContext(ctx, "Scheduler stopped")
	case <-ctx.Done():
		s.log.WarnContext(ctx, "Scheduler stopped before running jobs finished", logger.ErrorField(ctx.Err()))
	}
}

func (s *schedulerService) ListJobs(ctx context.Context) []JobSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobSchedule, 0, len(s.jobs))
	for _, job := range s.jobs {
		item := JobSchedule{
			Name:     job.Name,
			Type:     job.Type,
			Schedule: job.Schedule,
			Timeout:  job.Timeout.String(),
		}
		if id, ok := s.entries[job.Name]; ok {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				item.NextExecution = &next
			}
		}
		if last, ok := s.last[job.Name]; ok {
			item.LastExecution = &last
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *schedulerService) RunJob(ctx context.Context, name string) error {
	s.log.InfoContext(ctx, "Running job task", logger.StringField("job_name", name))
	for _, job := range s.jobs {
		if job.Name == name {
			return s.enqueue(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, name)
}

func (s *schedulerService) enqueue(ctx context.Context, job strategy.Job) error {
	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.DebugContext(ctx, "Executing job",
		logger.StringField("job_name", job.Name),
		logger.StringField("job_type", string(job.Type)),
		logger.IntField("active_concurrency", len(s.semaphore)),
		logger.IntField("max_concurrency", cap(s.semaphore)))

	s.wg.Add(1)
	utils.GoSafe(s.log, func() {
		defer s.wg.Done()
		defer func() { <-s.semaphore }()

		jobCtx, cancel := jobContext(job.Timeout)
		defer cancel()

		history := s.taskExecutor.Execute(jobCtx, job)
		s.mu.Lock()
		s.last[job.Name] = history
		s.mu.Unlock()
	})
	return nil
}

func jobContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
