package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/notify"
	"github.com/tunehive/pulse/internal/repository"
)

// Collector computes and writes every metric category for one date.
// Re-collecting a date recomputes the values against current source
// data and overwrites the existing rows.
type Collector struct {
	storage  repository.Storage
	notifier notify.Observer
}

// NewCollector returns a collector over the given storage. notifier
// may be nil when no run notifications are configured.
func NewCollector(storage repository.Storage, notifier notify.Observer) *Collector {
	return &Collector{storage: storage, notifier: notifier}
}

// Collect snapshots all metric categories for targetDate. A zero
// targetDate means today. Exactly one audit row reaches a terminal
// status per call, whether the run succeeds or fails.
func (c *Collector) Collect(ctx context.Context, targetDate time.Time) (model.CollectionResult, error) {
	if targetDate.IsZero() {
		targetDate = time.Now().UTC()
	}
	targetDate = model.Midnight(targetDate)

	start := time.Now()
	result := model.CollectionResult{TargetDate: targetDate, Status: model.StatusFailed}

	runID, err := c.storage.BeginRun(ctx, targetDate)
	if err != nil {
		return result, fmt.Errorf("failed to begin collection run: %w", err)
	}

	written, err := c.collectMetrics(ctx, targetDate)
	result.MetricsWritten = written
	result.Elapsed = time.Since(start)

	if err != nil {
		if failErr := c.storage.FailRun(ctx, runID, written, err.Error()); failErr != nil {
			log.Error().Err(failErr).Int64("run_id", runID).Msg("failed to record run failure")
		}
		c.emit(result, err)
		return result, err
	}

	if err := c.storage.CompleteRun(ctx, runID, written); err != nil {
		return result, fmt.Errorf("failed to complete collection run: %w", err)
	}

	result.Status = model.StatusCompleted
	log.Info().
		Str("date", targetDate.Format("2006-01-02")).
		Int("metrics", written).
		Dur("elapsed", result.Elapsed).
		Msg("collected daily metrics")
	c.emit(result, nil)
	return result, nil
}

// collectMetrics holds the per-date lock while counting and writing.
// It returns how many categories were written before any error.
func (c *Collector) collectMetrics(ctx context.Context, targetDate time.Time) (int, error) {
	if err := c.storage.TryLockDate(ctx, targetDate); err != nil {
		return 0, err
	}
	defer func() {
		if err := c.storage.UnlockDate(ctx, targetDate); err != nil {
			log.Error().Err(err).Msg("failed to release date lock")
		}
	}()

	written := 0
	for _, category := range model.Categories {
		value, err := c.countFor(ctx, category, targetDate)
		if err != nil {
			return written, fmt.Errorf("failed to count %s: %w", category, err)
		}

		rec := model.MetricRecord{
			Date:     targetDate,
			Category: category,
			Value:    value,
		}
		if err := c.storage.UpsertMetric(ctx, rec); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", category, err)
		}
		written++
	}
	return written, nil
}

func (c *Collector) countFor(ctx context.Context, category string, date time.Time) (int64, error) {
	switch category {
	case model.CategoryUsersTotal:
		return c.storage.CountUsersThrough(ctx, date)
	case model.CategoryPostsTotal:
		return c.storage.CountPostsThrough(ctx, date)
	case model.CategoryCommentsTotal:
		return c.storage.CountCommentsThrough(ctx, date)
	case model.CategoryPostsCreated:
		return c.storage.CountPostsOn(ctx, date)
	case model.CategoryCommentsCreated:
		return c.storage.CountCommentsOn(ctx, date)
	default:
		return 0, fmt.Errorf("unknown metric category %q", category)
	}
}

func (c *Collector) emit(result model.CollectionResult, err error) {
	if c.notifier == nil {
		return
	}
	event := notify.RunEvent{
		TargetDate:     result.TargetDate.Format("2006-01-02"),
		Status:         result.Status,
		MetricsWritten: result.MetricsWritten,
		ElapsedMillis:  result.Elapsed.Milliseconds(),
		Timestamp:      time.Now().Unix(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.notifier.Notify(event)
}
