package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunLocker makes sure one replica fires a daily run. TryLock returns ok=false
// without error when another replica already holds the key.
type RunLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// CronTriggerConfig holds configuration for the daily trigger
type CronTriggerConfig struct {
	Kind   JobKind
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
	// LockTTL is how long the per-day run lock is held; it must outlive the trigger minute
	LockTTL time.Duration
}

// DefaultCronTriggerConfig returns a 02:00 daily stock audit
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Kind:          JobKindStockAudit,
		Hour:          2,
		Minute:        0,
		CheckInterval: time.Minute,
		LockTTL:       time.Hour,
	}
}

// ParseCronSchedule reads the minute and hour fields of a "M H * * *" expression.
// An empty expression means 02:00.
func ParseCronSchedule(expr string) (hour, minute int, err error) {
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return 2, 0, nil
	}
	if len(parts) != 5 {
		return 0, 0, fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidSchedule, len(parts))
	}
	for _, field := range parts[2:] {
		if field != "*" {
			return 0, 0, fmt.Errorf("%w: only daily schedules are supported", ErrInvalidSchedule)
		}
	}

	minute, err = strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute must be 0-59, got %q", ErrInvalidSchedule, parts[0])
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour must be 0-23, got %q", ErrInvalidSchedule, parts[1])
	}
	return hour, minute, nil
}

// CronTrigger submits one job a day at a fixed UTC time
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *Scheduler
	locker    RunLocker
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewCronTrigger creates a new cron trigger. locker may be nil for single-replica deployments.
func NewCronTrigger(config CronTriggerConfig, scheduler *Scheduler, locker RunLocker, logger *zap.Logger) *CronTrigger {
	defaults := DefaultCronTriggerConfig()
	if config.Kind == "" {
		config.Kind = defaults.Kind
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		locker:    locker,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start starts the check loop
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return nil
	}
	c.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.String("kind", string(c.config.Kind)),
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

func (c *CronTrigger) shouldRun(now time.Time) bool {
	return now.Hour() == c.config.Hour && now.Minute() == c.config.Minute
}

// checkAndTrigger submits today's job once the configured minute arrives
func (c *CronTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate || !c.shouldRun(now) {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	if c.locker != nil {
		key := fmt.Sprintf("stockledger:scheduler:%s:%s", strings.ToLower(string(c.config.Kind)), currentDate)
		_, ok, err := c.locker.TryLock(ctx, key, c.config.LockTTL)
		if err != nil {
			c.logger.Warn("Failed to take run lock, skipping today's run", zap.Error(err))
			return false
		}
		if !ok {
			c.logger.Debug("Another replica owns today's run", zap.String("key", key))
			return false
		}
	}

	if _, err := c.scheduler.Schedule(c.config.Kind); err != nil {
		c.logger.Error("Failed to schedule daily job",
			zap.String("kind", string(c.config.Kind)),
			zap.Error(err),
		)
		return false
	}
	c.logger.Info("Daily job triggered", zap.String("kind", string(c.config.Kind)))
	return true
}

// TriggerNow submits a job immediately, outside the daily schedule
func (c *CronTrigger) TriggerNow() (*Job, error) {
	return c.scheduler.Schedule(c.config.Kind)
}
