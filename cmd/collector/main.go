package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	configpkg "github.com/tunehive/pulse/internal/config"
	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/notify"
	"github.com/tunehive/pulse/internal/repository"
	"github.com/tunehive/pulse/internal/service"
)

// staleRunThreshold is how old a run still in running status must be
// before the startup sweep fails it.
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
		fmt.Fprintln(os.Stderr, "Error: database DSN is not configured")
		printTroubleshooting()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := repository.NewDBStorage(ctx, config.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printTroubleshooting()
		return 1
	}
	defer storage.Close()

	if swept, err := storage.MarkStaleRuns(ctx, staleRunThreshold); err != nil {
		log.Warn().Err(err).Msg("stale run sweep failed")
	} else if swept > 0 {
		log.Warn().Int64("count", swept).Msg("swept stale collection runs")
	}

	collector := service.NewCollector(storage, buildNotifier())

	if config.StartDate == "" && config.EndDate == "" {
		return collectToday(ctx, collector)
	}
	return backfill(ctx, storage, collector)
}

func collectToday(ctx context.Context, collector *service.Collector) int {
	result, err := collector.Collect(ctx, time.Time{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
		printTroubleshooting()
		return 2
	}

	fmt.Printf("Collected metrics for %s\n", result.TargetDate.Format("2006-01-02"))
	fmt.Printf("  metrics written: %d\n", result.MetricsWritten)
	fmt.Printf("  elapsed:         %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("  status:          %s\n", result.Status)
	return 0
}

func backfill(ctx context.Context, storage repository.Storage, collector *service.Collector) int {
	end := model.Midnight(time.Now().UTC())
	if config.EndDate != "" {
		parsed, err := configpkg.ParseDate(config.EndDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --end-date: %v\n", err)
			return 1
		}
		end = parsed
	}

	var start time.Time
	if config.StartDate != "" {
		parsed, err := configpkg.ParseDate(config.StartDate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --start-date: %v\n", err)
			return 1
		}
		start = parsed
	} else {
		resolved, err := service.ResolveStartDate(ctx, storage, end, config.FallbackDays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve start date: %v\n", err)
			printTroubleshooting()
			return 1
		}
		start = resolved
		log.Info().Str("start", start.Format("2006-01-02")).Msg("resolved backfill start date")
	}

	backfiller := service.NewBackfiller(collector, config.ProgressEvery)
	result, err := backfiller.Backfill(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed: %v\n", err)
		if err == service.ErrInvalidRange {
			return 1
		}
		printTroubleshooting()
		return 2
	}

	fmt.Printf("Backfilled %s .. %s\n", result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))
	fmt.Printf("  dates processed: %d\n", result.DatesProcessed)
	fmt.Printf("  metrics written: %d\n", result.TotalMetrics)
	fmt.Printf("  elapsed:         %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("  status:          %s\n", result.Status)

	if result.Status == model.StatusCompletedWithErrors {
		fmt.Println("Failed dates:")
		for _, date := range result.FailedDates {
			fmt.Printf("  %s\n", date.Format("2006-01-02"))
		}
		printTroubleshooting()
		return 2
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

func printTroubleshooting() {
	fmt.Fprintln(os.Stderr, `
Troubleshooting:
  - Check that DATABASE_DSN (or -d) points at the platform database
  - Check that the database is reachable and accepts connections
  - Re-run a failed range with --start-date/--end-date; collection is
    idempotent and safe to repeat
  - Inspect the metric_collection_log table for per-run error messages`)
}
