package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/config"
	appHTTP "github.com/cmlabs-hris/dtr-ingest/internal/handler/http"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/cron"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/database"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/sse"
	"github.com/cmlabs-hris/dtr-ingest/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/dtr-ingest/internal/service/attendance"
	batchService "github.com/cmlabs-hris/dtr-ingest/internal/service/batch"
	exportService "github.com/cmlabs-hris/dtr-ingest/internal/service/export"
	identityService "github.com/cmlabs-hris/dtr-ingest/internal/service/identity"
	mergeService "github.com/cmlabs-hris/dtr-ingest/internal/service/merge"
	periodService "github.com/cmlabs-hris/dtr-ingest/internal/service/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/service/workbook"
)

const sseBuffer = 64

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		slog.Error("Error connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	directoryRepo := postgresql.NewDirectoryRepository(db)
	mappingRepo := postgresql.NewIdentityMappingRepository(db)
	scheduleRepo := postgresql.NewScheduleRepository(db)

	sampleCap := cfg.Ingest.WarningSampleCap
	resolver := identityService.NewIdentityService(directoryRepo, mappingRepo, identityService.Config{
		ChunkSize:   cfg.Identity.ChunkSize,
		Concurrency: cfg.Identity.Concurrency,
		Timeout:     cfg.Identity.Timeout,
		SampleCap:   sampleCap,
	})
	hub := sse.NewHub(sseBuffer)

	batchSvc := batchService.NewBatchService(
		workbook.NewWorkbookParser(),
		mergeService.NewMergeService(sampleCap),
		periodService.NewPeriodFilter(),
		resolver,
		attendanceService.NewAttendanceService(scheduleRepo, sampleCap),
		exportService.NewExportService(),
		hub,
		batchService.Config{
			ParseConcurrency: cfg.Ingest.ParseConcurrency,
			MaxUploadBytes:   cfg.MaxUploadBytes(),
			EmitNormalized:   cfg.Ingest.EmitNormalized,
			SampleCap:        sampleCap,
			ExportTimeout:    cfg.Batch.ExportTimeout,
			IdleTTL:          cfg.Batch.IdleTTL,
		},
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	batchHandler := appHTTP.NewBatchHandler(batchSvc, JWTService, cfg.MaxUploadBytes())

	router := appHTTP.NewRouter(appHTTP.AppInfo{
		Name:           cfg.App.Name,
		Version:        cfg.App.Version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
	}, JWTService, batchHandler)

	scheduler := cron.NewScheduler()
	cron.NewBatchJobs(batchSvc, cfg.Batch.SweepInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
	}
}
