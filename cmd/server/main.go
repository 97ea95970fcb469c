package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tunehive/pulse/internal/handler"
	"github.com/tunehive/pulse/internal/middleware"
	"github.com/tunehive/pulse/internal/notify"
	"github.com/tunehive/pulse/internal/repository"
	"github.com/tunehive/pulse/internal/scheduler"
	"github.com/tunehive/pulse/internal/service"
)

const staleRunThreshold = time.Hour

func main() {
	os.Exit(run())
}

func run() int {
	if err := Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		return 1
	}

	if config.DSN == "" {
		fmt.Fprintln(os.Stderr, "Error: database DSN is not configured (set DATABASE_DSN or -d)")
		return 1
	}

	collectAt, err := parseClock(config.CollectAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid collect-at time: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := repository.NewDBStorage(ctx, config.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer storage.Close()

	if swept, err := storage.MarkStaleRuns(ctx, staleRunThreshold); err != nil {
		log.Warn().Err(err).Msg("stale run sweep failed")
	} else if swept > 0 {
		log.Warn().Int64("count", swept).Msg("swept stale collection runs")
	}

	collector := service.NewCollector(storage, buildNotifier())
	backfiller := service.NewBackfiller(collector, 0)
	queries := service.NewQueries(storage)

	h := handler.NewHandler(queries, collector, backfiller)
	ping := handler.NewPingHandler(storage)

	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Get("/api/metrics", h.MetricsRangeHandler)
	r.Get("/api/metrics/latest", h.LatestMetricsHandler)
	r.Get("/api/metrics/activity/{days}", h.ActivityHandler)
	r.Get("/api/runs", h.RunsHandler)
	r.Post("/api/collect", h.CollectHandler)
	r.Post("/api/backfill", h.BackfillHandler)
	r.Get("/ping", ping.PingHandler)

	trigger := scheduler.NewTimerTrigger(collector, collectAt)
	trigger.Start()
	defer trigger.Stop()

	server := &http.Server{Addr: config.Address, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("address", config.Address).Msg("server is running")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return 1
	}
	return 0
}

func buildNotifier() notify.Observer {
	if config.NotifyFile == "" && config.NotifyURL == "" {
		return nil
	}

	subject := notify.NewSubject()
	if config.NotifyFile != "" {
		subject.Attach(notify.NewFileObserver(config.NotifyFile))
	}
	if config.NotifyURL != "" {
		subject.Attach(notify.NewHTTPObserver(config.NotifyURL))
	}
	return subject
}

// parseClock parses "HH:MM" into an offset from midnight UTC.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time format (want HH:MM): %w", err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
