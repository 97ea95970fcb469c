package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tunehive/pulse/internal/model"
)

var (
	// ErrDateLocked is returned when another collector already holds
	// the per-date lock, i.e. a second run for the same date started
	// before the first one finished.
	ErrDateLocked = errors.New("collection already running for date")

	// ErrRunNotFound is returned when a terminal update targets a run
	// id that does not exist.
	ErrRunNotFound = errors.New("collection run not found")
)

// Storage defines the persistence surface of the metrics service:
// count queries against the platform's source tables, idempotent
// metric upserts, the run audit log, and the dashboard reads.
type Storage interface {
	// Source-table counts. Cumulative counts include every row created
	// on or before date; daily counts include only rows created on it.
	CountUsersThrough(ctx context.Context, date time.Time) (int64, error)
	CountPostsThrough(ctx context.Context, date time.Time) (int64, error)
	CountCommentsThrough(ctx context.Context, date time.Time) (int64, error)
	CountPostsOn(ctx context.Context, date time.Time) (int64, error)
	CountCommentsOn(ctx context.Context, date time.Time) (int64, error)

	// EarliestSourceDate returns the earliest created_at date across
	// the source tables. ok is false when the platform has no source
	// rows at all.
	EarliestSourceDate(ctx context.Context) (date time.Time, ok bool, err error)

	// UpsertMetric inserts the record or overwrites the value and
	// metadata of an existing (date, category) row.
	UpsertMetric(ctx context.Context, rec model.MetricRecord) error

	// TryLockDate takes the per-date collection lock. It returns
	// ErrDateLocked without blocking when the lock is already held.
	TryLockDate(ctx context.Context, date time.Time) error
	UnlockDate(ctx context.Context, date time.Time) error

	// Run audit log. BeginRun creates a row in running status;
	// CompleteRun and FailRun each perform the single terminal update.
	BeginRun(ctx context.Context, date time.Time) (int64, error)
	CompleteRun(ctx context.Context, id int64, metricsWritten int) error
	FailRun(ctx context.Context, id int64, metricsWritten int, errMsg string) error

	// MarkStaleRuns fails every run still in running status whose
	// started_at is older than the threshold, returning how many rows
	// were swept.
	MarkStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error)

	// Dashboard reads.
	MetricsRange(ctx context.Context, from, to time.Time) ([]model.MetricRecord, error)
	LatestMetrics(ctx context.Context) ([]model.MetricRecord, error)
	RecentRuns(ctx context.Context, limit int) ([]model.CollectionRun, error)
}
