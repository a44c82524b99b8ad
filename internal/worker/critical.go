package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// CriticalStore defines the store operations needed by the critical-mode
// worker.
type CriticalStore interface {
	GetActiveUsers(ctx context.Context) ([]types.User, error)
	GetActiveTasks(ctx context.Context, userID string) ([]types.Task, error)
}

// RelapseDetector reports whether a user has lost their completion
// momentum.
type RelapseDetector interface {
	DetectRelapse(ctx context.Context, userID string) (bool, error)
}

// Rescheduler recomputes a user's schedule.
type Rescheduler interface {
	Reschedule(ctx context.Context, userID string) error
}

// CriticalModeWorker periodically scans active users and escalates to an
// immediate reschedule when a user has relapsed or accumulated too many
// high-priority overdue tasks.
type CriticalModeWorker struct {
	store     CriticalStore
	detector  RelapseDetector
	engine    Rescheduler
	threshold int
	interval  time.Duration
	metrics   Recorder
	now       func() time.Time
}

// NewCriticalModeWorker creates a worker. threshold is the number of
// overdue tasks at High priority or above that triggers critical mode on
// its own.
func NewCriticalModeWorker(store CriticalStore, detector RelapseDetector, engine Rescheduler, threshold int, interval time.Duration, metrics Recorder) *CriticalModeWorker {
	return &CriticalModeWorker{
		store:     store,
		detector:  detector,
		engine:    engine,
		threshold: threshold,
		interval:  interval,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *CriticalModeWorker) Run(ctx context.Context) {
	runLoop(ctx, "critical-mode", Every(w.interval), w.metrics, w.Scan)
}

// Scan runs one pass over all active users. A failure for one user is
// logged and the scan continues; only a fleet-level query failure aborts
// the tick.
func (w *CriticalModeWorker) Scan(ctx context.Context) error {
	users, err := w.store.GetActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.scanUser(ctx, user.ID); err != nil {
			slog.Error("critical-mode scan failed for user",
				"component", "worker",
				"worker", "critical-mode",
				"user_id", user.ID,
				"error", err,
			)
		}
	}
	return nil
}

func (w *CriticalModeWorker) scanUser(ctx context.Context, userID string) error {
	relapsed, err := w.detector.DetectRelapse(ctx, userID)
	if err != nil {
		return fmt.Errorf("detect relapse: %w", err)
	}

	tasks, err := w.store.GetActiveTasks(ctx, userID)
	if err != nil {
		return fmt.Errorf("load active tasks: %w", err)
	}
	overdue := countCriticalOverdue(tasks, w.now().UTC())

	if !relapsed && overdue < w.threshold {
		return nil
	}

	slog.Warn("critical mode triggered",
		"component", "worker",
		"worker", "critical-mode",
		"user_id", userID,
		"relapsed", relapsed,
		"critical_overdue", overdue,
	)
	w.metrics.CriticalModeActivated()
	if err := w.engine.Reschedule(ctx, userID); err != nil {
		return fmt.Errorf("critical reschedule: %w", err)
	}
	return nil
}

// countCriticalOverdue counts active tasks past their due time at High
// priority or above.
func countCriticalOverdue(tasks []types.Task, now time.Time) int {
	var n int
	for _, t := range tasks {
		if t.Overdue(now) && t.Priority >= types.PriorityHigh {
			n++
		}
	}
	return n
}
