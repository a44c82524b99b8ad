package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/cadence/internal/api"
	"github.com/hyperengineering/cadence/internal/config"
	"github.com/hyperengineering/cadence/internal/metrics"
	"github.com/hyperengineering/cadence/internal/momentum"
	"github.com/hyperengineering/cadence/internal/notify"
	"github.com/hyperengineering/cadence/internal/nudge"
	"github.com/hyperengineering/cadence/internal/schedule"
	"github.com/hyperengineering/cadence/internal/snapshot"
	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/suggest"
	"github.com/hyperengineering/cadence/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence - adaptive productivity coaching service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration (.env is optional, real env wins)
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Metrics sink
	sink := metrics.NewPrometheus()

	// 6. Suggestion provider; static fallback keeps nudges flowing without
	// an API key (dev mode)
	var suggester suggest.Suggester
	if cfg.Suggestion.APIKey != "" {
		suggester = suggest.NewOpenAI(cfg.Suggestion.APIKey, cfg.Suggestion.Model)
	} else {
		suggester = suggest.NewStatic()
	}
	slog.Info("suggester initialized", "model", suggester.ModelName())

	// 7. Notification dispatch
	registry, err := notify.NewRegistry(
		notify.NewEmailProvider(cfg.Notification.SMTP),
		notify.NewSMSProvider(cfg.Notification.SMS),
	)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(registry, db, sink,
		cfg.Notification.MaxAttempts, time.Duration(cfg.Notification.RetryBase))

	// 8. Coaching core
	engine := schedule.NewEngine(db, sink)
	detector := momentum.NewDetector(db, cfg.Worker.InactivityDays, sink)
	orchestrator := nudge.NewOrchestrator(db, suggester, dispatcher, cfg.Worker.NudgeBatchSize)

	// 9. HTTP router
	handler := api.NewHandler(db, engine, orchestrator, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler, sink.Handler())
	slog.Info("router initialized")

	// 10. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 11. Background workers
	uploader, err := snapshot.NewUploader(cfg.Snapshot)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	startWorker(ctx, &wg, "critical-mode",
		worker.NewCriticalModeWorker(db, detector, engine,
			cfg.Worker.CriticalOverdueThreshold,
			time.Duration(cfg.Worker.CriticalModeInterval), sink).Run)
	startWorker(ctx, &wg, "recovery",
		worker.NewRecoveryWorker(db, engine,
			cfg.Worker.InactivityDays,
			time.Duration(cfg.Worker.RecoveryInterval), sink).Run)
	startWorker(ctx, &wg, "timetable",
		worker.NewTimetableWorker(db, engine,
			cfg.Worker.TimetableHourUTC, sink).Run)
	startWorker(ctx, &wg, "nudge",
		worker.NewNudgeWorker(orchestrator,
			time.Duration(cfg.Worker.NudgeInterval), sink).Run)
	startWorker(ctx, &wg, "snapshot",
		worker.NewSnapshotWorker(db, uploader,
			filepath.Dir(cfg.Database.Path),
			cfg.Worker.SnapshotHourUTC, sink).Run)

	// 12. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully. Any other error indicates an actual server failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 13. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 14. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 14a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 14b. Wait for workers to complete
	wg.Wait()

	// 14c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn(ctx)
		slog.Info("worker goroutine exited", "worker", name)
	}()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cadence version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cadence", Version)
	},
}
