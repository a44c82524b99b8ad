package worker

import (
	"context"
	"log/slog"
	"time"
)

// NudgeScanner runs one fleet-wide nudge scan.
type NudgeScanner interface {
	ScanAndSendNudges(ctx context.Context) (int, error)
}

// NudgeWorker periodically runs the nudge orchestrator over all active
// users.
type NudgeWorker struct {
	scanner  NudgeScanner
	interval time.Duration
	metrics  Recorder
}

// NewNudgeWorker creates a worker that scans at the given interval.
func NewNudgeWorker(scanner NudgeScanner, interval time.Duration, metrics Recorder) *NudgeWorker {
	return &NudgeWorker{
		scanner:  scanner,
		interval: interval,
		metrics:  metrics,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *NudgeWorker) Run(ctx context.Context) {
	runLoop(ctx, "nudge", Every(w.interval), w.metrics, w.scan)
}

func (w *NudgeWorker) scan(ctx context.Context) error {
	delivered, err := w.scanner.ScanAndSendNudges(ctx)
	if err != nil {
		return err
	}
	slog.Info("nudge scan complete",
		"component", "worker",
		"worker", "nudge",
		"delivered", delivered,
	)
	return nil
}
