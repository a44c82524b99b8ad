package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/cadence/internal/types"
)

// RecoveryStore defines the store operations needed by the recovery
// worker.
type RecoveryStore interface {
	GetActiveUsers(ctx context.Context) ([]types.User, error)
	CompletionsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// RecoveryWorker periodically reschedules users who have completed nothing
// for a while. This is a coarse time-windowed inactivity signal, distinct
// from the relapse heuristic the critical-mode worker uses.
type RecoveryWorker struct {
	store          RecoveryStore
	engine         Rescheduler
	inactivityDays int
	interval       time.Duration
	metrics        Recorder
	now            func() time.Time
}

// NewRecoveryWorker creates a worker that reschedules users with no task
// completion in the last inactivityDays days.
func NewRecoveryWorker(store RecoveryStore, engine Rescheduler, inactivityDays int, interval time.Duration, metrics Recorder) *RecoveryWorker {
	return &RecoveryWorker{
		store:          store,
		engine:         engine,
		inactivityDays: inactivityDays,
		interval:       interval,
		metrics:        metrics,
		now:            time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *RecoveryWorker) Run(ctx context.Context) {
	runLoop(ctx, "recovery", Every(w.interval), w.metrics, w.Scan)
}

// Scan runs one pass over all active users.
func (w *RecoveryWorker) Scan(ctx context.Context) error {
	users, err := w.store.GetActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	cutoff := w.now().UTC().AddDate(0, 0, -w.inactivityDays)
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.scanUser(ctx, user, cutoff); err != nil {
			slog.Error("recovery scan failed for user",
				"component", "worker",
				"worker", "recovery",
				"user_id", user.ID,
				"error", err,
			)
		}
	}
	return nil
}

func (w *RecoveryWorker) scanUser(ctx context.Context, user types.User, cutoff time.Time) error {
	completed, err := w.store.CompletionsSince(ctx, user.ID, cutoff)
	if err != nil {
		return fmt.Errorf("count recent completions: %w", err)
	}
	if completed > 0 {
		return nil
	}

	slog.Info("inactive user, rescheduling",
		"component", "worker",
		"worker", "recovery",
		"user_id", user.ID,
		"inactivity_days", w.inactivityDays,
	)
	if err := w.engine.Reschedule(ctx, user.ID); err != nil {
		return fmt.Errorf("recovery reschedule: %w", err)
	}
	return nil
}
