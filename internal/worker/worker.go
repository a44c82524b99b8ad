// Package worker contains the periodic background jobs: critical-mode
// escalation, procrastination recovery, daily timetable regeneration,
// nudge scans, and database snapshots. Each worker runs as an independent
// loop and observes cancellation at every iteration boundary.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Recorder receives worker observations.
type Recorder interface {
	CriticalModeActivated()
	JobRun(job string)
	JobFailed(job string)
	JobDuration(job string, d time.Duration)
}

// runLoop drives a worker: compute the next fire time, sleep until it,
// run one tick. Blocks until ctx is cancelled. Does not fire immediately
// on start.
func runLoop(ctx context.Context, name string, sched Schedule, metrics Recorder, tick func(context.Context) error) {
	slog.Info("worker started",
		"component", "worker",
		"worker", name,
	)

	for {
		next := sched.Next(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("worker stopped",
				"component", "worker",
				"worker", name,
				"reason", "context_cancelled",
			)
			return
		case <-timer.C:
		}

		start := time.Now()
		metrics.JobRun(name)
		err := tick(ctx)
		metrics.JobDuration(name, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("worker stopped",
					"component", "worker",
					"worker", name,
					"reason", "context_cancelled",
				)
				return
			}
			metrics.JobFailed(name)
			slog.Error("worker tick failed",
				"component", "worker",
				"worker", name,
				"error", err,
			)
		}
	}
}
