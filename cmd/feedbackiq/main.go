package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/app"
	"github.com/aliuyar1234/feedbackiq/internal/config"
	"github.com/aliuyar1234/feedbackiq/internal/retention"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		_ = godotenv.Load()
		os.Exit(runAdmin(os.Args[2:]))
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	scheduler, err := setupCron(cfg, application)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup scheduled jobs: %v\n", err)
		application.Close()
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			application.Close()
			os.Exit(1)
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}
}

// setupCron schedules invite retention nightly and weekly insight reports on
// Monday mornings (UTC).
func setupCron(cfg *config.Config, a *app.App) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	retentionSchedule, reportSchedule := "0 3 * * *", "0 6 * * 1"
	if cfg.IsDev() {
		retentionSchedule, reportSchedule = "*/5 * * * *", "0 * * * *"
	}

	if _, err := c.AddFunc(retentionSchedule, guarded("retention", func(ctx context.Context) {
		if err := retention.RunRetentionJob(ctx, a.DB, cfg.InviteRetentionDays); err != nil {
			log.Error().Err(err).Msg("Retention job failed")
		}
	})); err != nil {
		return nil, fmt.Errorf("failed to schedule retention job: %w", err)
	}

	if _, err := c.AddFunc(reportSchedule, guarded("weekly-reports", func(ctx context.Context) {
		n, err := a.Reporter.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Weekly report job failed")
			return
		}
		log.Info().Int("reports", n).Msg("Weekly reports generated")
	})); err != nil {
		return nil, fmt.Errorf("failed to schedule weekly reports: %w", err)
	}

	return c, nil
}

// guarded runs job with a deadline and keeps a panic from killing the
// scheduler.
func guarded(name string, job func(ctx context.Context)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("job", name).Msg("Scheduled job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		job(ctx)
	}
}
