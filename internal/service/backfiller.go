package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/repository"
)

var ErrInvalidRange = errors.New("start date is after end date")

// defaultProgressEvery is how many dates pass between backfill
// progress log lines.
const defaultProgressEvery = 10

// Backfiller walks an inclusive date range and runs the collector for
// each date. A failed date is recorded and skipped, never aborting the
// rest of the range.
type Backfiller struct {
	collector     *Collector
	progressEvery int
}

func NewBackfiller(collector *Collector, progressEvery int) *Backfiller {
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}
	return &Backfiller{collector: collector, progressEvery: progressEvery}
}

// Backfill collects every date from start to end inclusive. The
// returned result carries per-range totals; the error is non-nil only
// for invalid input or context cancellation, not for per-date
// collection failures.
func (b *Backfiller) Backfill(ctx context.Context, start, end time.Time) (model.BackfillResult, error) {
	start, end = model.Midnight(start), model.Midnight(end)
	result := model.BackfillResult{StartDate: start, EndDate: end, Status: model.StatusFailed}

	if start.After(end) {
		return result, ErrInvalidRange
	}

	began := time.Now()
	totalDates := int(end.Sub(start).Hours()/24) + 1

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(began)
			result.Status = model.StatusCompletedWithErrors
			return result, err
		}

		collected, err := b.collector.Collect(ctx, date)
		result.DatesProcessed++
		result.TotalMetrics += collected.MetricsWritten
		if err != nil {
			result.FailedDates = append(result.FailedDates, date)
			log.Warn().
				Err(err).
				Str("date", date.Format("2006-01-02")).
				Msg("collection failed, continuing with next date")
		}

		if result.DatesProcessed%b.progressEvery == 0 && result.DatesProcessed < totalDates {
			log.Info().
				Int("processed", result.DatesProcessed).
				Int("total", totalDates).
				Msg("backfill progress")
		}
	}

	result.Elapsed = time.Since(began)
	if len(result.FailedDates) > 0 {
		result.Status = model.StatusCompletedWithErrors
	} else {
		result.Status = model.StatusCompleted
	}

	log.Info().
		Int("dates", result.DatesProcessed).
		Int("metrics", result.TotalMetrics).
		Int("failed", len(result.FailedDates)).
		Dur("elapsed", result.Elapsed).
		Str("status", result.Status).
		Msg("backfill finished")
	return result, nil
}

// ResolveStartDate picks the backfill start when the caller did not
// supply one: the earliest source-record date, or fallbackDays before
// end when the platform has no source rows yet.
func ResolveStartDate(ctx context.Context, storage repository.Storage, end time.Time, fallbackDays int) (time.Time, error) {
	earliest, ok, err := storage.EarliestSourceDate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return model.Midnight(end).AddDate(0, 0, -fallbackDays), nil
	}
	return earliest, nil
}
