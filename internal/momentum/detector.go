package momentum

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CompletionStore defines the store operations needed for relapse detection.
// Implemented by SQLiteStore.
type CompletionStore interface {
	CompletionDays(ctx context.Context, userID string) ([]string, error)
	CompletionsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Recorder counts relapse detections for observability.
type Recorder interface {
	RelapseDetected()
}

// Detector flags users who had completion momentum and lost it.
type Detector struct {
	store          CompletionStore
	inactivityDays int
	metrics        Recorder
}

// NewDetector creates a detector. inactivityDays is the window with no
// completions that counts as "fell off" (3 in production).
func NewDetector(store CompletionStore, inactivityDays int, metrics Recorder) *Detector {
	if inactivityDays < 1 {
		inactivityDays = 3
	}
	return &Detector{store: store, inactivityDays: inactivityDays, metrics: metrics}
}

// DetectRelapse reports whether the user has relapsed: current streak zero,
// no completions within the inactivity window, and a best streak greater
// than zero. A user who never completed anything has not relapsed.
func (d *Detector) DetectRelapse(ctx context.Context, userID string) (bool, error) {
	days, err := d.store.CompletionDays(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load completion history: %w", err)
	}

	now := time.Now().UTC()
	stats := StreakFromDays(days, now)
	if stats.BestStreak == 0 {
		// Never started is not a relapse.
		return false, nil
	}
	if stats.CurrentStreak != 0 {
		return false, nil
	}

	since := now.AddDate(0, 0, -d.inactivityDays)
	recent, err := d.store.CompletionsSince(ctx, userID, since)
	if err != nil {
		return false, fmt.Errorf("count recent completions: %w", err)
	}
	if recent > 0 {
		return false, nil
	}

	slog.Warn("relapse detected",
		"component", "momentum",
		"user_id", userID,
		"best_streak", stats.BestStreak,
	)
	if d.metrics != nil {
		d.metrics.RelapseDetected()
	}
	return true, nil
}
