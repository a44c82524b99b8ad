package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/cadence/internal/types"
)

// TimetableStore defines the store operations needed by the timetable
// worker.
type TimetableStore interface {
	GetActiveUsers(ctx context.Context) ([]types.User, error)
}

// TimetableWorker regenerates every active user's daily schedule once a
// day at a fixed UTC hour.
type TimetableWorker struct {
	store   TimetableStore
	engine  Rescheduler
	hourUTC int
	metrics Recorder
}

// NewTimetableWorker creates a worker that fires daily at hourUTC.
func NewTimetableWorker(store TimetableStore, engine Rescheduler, hourUTC int, metrics Recorder) *TimetableWorker {
	return &TimetableWorker{
		store:   store,
		engine:  engine,
		hourUTC: hourUTC,
		metrics: metrics,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *TimetableWorker) Run(ctx context.Context) {
	runLoop(ctx, "timetable", DailyAt(w.hourUTC, 0), w.metrics, w.Regenerate)
}

// Regenerate recomputes the schedule for every active user.
func (w *TimetableWorker) Regenerate(ctx context.Context) error {
	users, err := w.store.GetActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.engine.Reschedule(ctx, user.ID); err != nil {
			slog.Error("timetable regeneration failed for user",
				"component", "worker",
				"worker", "timetable",
				"user_id", user.ID,
				"error", err,
			)
		}
	}
	return nil
}
