// Package retention prunes old audit records on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the job once a day at midnight.
const DefaultSchedule = "@daily"

var (
	// ErrInvalidRetention indicates a non-positive retention window.
	ErrInvalidRetention = errors.New("retention must be positive")

	// ErrInvalidSchedule indicates a schedule cron cannot parse.
	ErrInvalidSchedule = errors.New("invalid retention schedule")
)

// Pruner deletes audit records older than retention.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type Job struct {
	pruner    Pruner
	retention time.Duration
	schedule  string
	timeout   time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewJob validates the schedule up front so a typo fails at startup.
func NewJob(logger *slog.Logger, pruner Pruner, retention time.Duration, schedule string) (*Job, error) {
	if retention <= 0 {
		return nil, ErrInvalidRetention
	}

	if schedule == "" {
		schedule = DefaultSchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, schedule, err)
	}

	return &Job{
		pruner:    pruner,
		retention: retention,
		schedule:  schedule,
		timeout:   5 * time.Minute,
		logger:    logger.With("module", "retention", "schedule", schedule, "retention", retention.String()),
	}, nil
}

// RunOnce prunes immediately.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := j.pruner.Prune(ctx, j.retention)
	if err != nil {
		return 0, err
	}

	j.logger.InfoContext(ctx, "Pruned action logs", "deleted", deleted)

	return deleted, nil
}

// Start schedules the job. It returns immediately.
func (j *Job) Start() error {
	j.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := j.cron.AddFunc(j.schedule, j.run)
	if err != nil {
		return fmt.Errorf("failed to add retention job: %w", err)
	}

	j.logger.Info("Starting retention job")
	j.cron.Start()

	return nil
}

// Stop waits for a running prune to finish or ctx to be done.
func (j *Job) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}

	done := j.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.RunOnce(ctx)
	if err != nil {
		j.logger.Error("Failed to prune action logs", "error", err)
	}
}
