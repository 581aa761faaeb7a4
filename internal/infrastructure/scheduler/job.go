package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSchedulerNotRunning rejects submissions before Start or after Stop
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	// ErrJobQueueFull rejects submissions when every queue slot is taken
	ErrJobQueueFull = errors.New("job queue is full")
	// ErrUnknownJobKind is returned by executors handed a job they do not run
	ErrUnknownJobKind = errors.New("unknown job kind")
	// ErrInvalidSchedule is returned for cron expressions outside the supported subset
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// JobStatus is where a job is in its run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind names what a job does
type JobKind string

// JobKindStockAudit compares owner totals with batch holdings
const JobKindStockAudit JobKind = "STOCK_AUDIT"

// Job is one run of a background job, including its retries
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a pending job that may be retried maxRetries times
func NewJob(kind JobKind, maxRetries int) *Job {
	return &Job{ID: uuid.New(), Kind: kind, Status: JobStatusPending, MaxRetries: maxRetries}
}

func stamp() *time.Time {
	now := time.Now().UTC()
	return &now
}

// Start moves the job to RUNNING and clears the previous attempt's error
func (j *Job) Start() {
	j.Status, j.Error, j.StartedAt, j.CompletedAt = JobStatusRunning, "", stamp(), nil
}

// Complete records success
func (j *Job) Complete() {
	j.Status, j.CompletedAt = JobStatusSuccess, stamp()
}

// Fail records the attempt's error
func (j *Job) Fail(reason string) {
	j.Status, j.Error, j.CompletedAt = JobStatusFailed, reason, stamp()
}

// ShouldRetry reports whether a failed job has attempts left
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry puts a failed job back to PENDING, due after delay
func (j *Job) ScheduleRetry(delay time.Duration) {
	due := time.Now().UTC().Add(delay)
	j.RetryCount++
	j.Status, j.Error, j.NextRetryAt = JobStatusPending, "", &due
}

// JobExecutor runs one attempt of a job
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// JobExecutorFunc adapts a function to JobExecutor
type JobExecutorFunc func(ctx context.Context, job *Job) error

// Execute calls f
func (f JobExecutorFunc) Execute(ctx context.Context, job *Job) error { return f(ctx, job) }
