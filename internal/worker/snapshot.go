package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// BackupStore writes a consistent copy of the database to destPath.
type BackupStore interface {
	Backup(ctx context.Context, destPath string) error
}

// SnapshotUploader ships a finished backup file off the host.
type SnapshotUploader interface {
	Upload(ctx context.Context, day string, filePath string) error
}

// SnapshotWorker takes a daily database backup and uploads it to object
// storage. The local backup file is removed after a successful upload.
type SnapshotWorker struct {
	store    BackupStore
	uploader SnapshotUploader
	dir      string
	hourUTC  int
	metrics  Recorder
	now      func() time.Time
}

// NewSnapshotWorker creates a worker that snapshots daily at hourUTC,
// staging backup files under dir.
func NewSnapshotWorker(store BackupStore, uploader SnapshotUploader, dir string, hourUTC int, metrics Recorder) *SnapshotWorker {
	return &SnapshotWorker{
		store:    store,
		uploader: uploader,
		dir:      dir,
		hourUTC:  hourUTC,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	runLoop(ctx, "snapshot", DailyAt(w.hourUTC, 0), w.metrics, w.Snapshot)
}

// Snapshot takes one backup and uploads it.
func (w *SnapshotWorker) Snapshot(ctx context.Context) error {
	day := w.now().UTC().Format("2006-01-02")
	path := filepath.Join(w.dir, fmt.Sprintf("cadence-%s.db", day))

	if err := w.store.Backup(ctx, path); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}
	if err := w.uploader.Upload(ctx, day, path); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}
	if err := os.Remove(path); err != nil {
		slog.Warn("could not remove local backup",
			"component", "worker",
			"worker", "snapshot",
			"path", path,
			"error", err,
		)
	}

	slog.Info("database snapshot uploaded",
		"component", "worker",
		"worker", "snapshot",
		"day", day,
	)
	return nil
}
