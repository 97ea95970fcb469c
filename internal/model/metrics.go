package model

import "time"

const (
	// StatusRunning marks a collection run that has started but not
	// yet reached a terminal state. A run left in this status after
	// the process exits is considered stale and is swept to failed.
	StatusRunning = "running"

	// StatusCompleted marks a collection run whose every metric
	// category was computed and written.
	StatusCompleted = "completed"

	// StatusFailed marks a collection run that hit an error while
	// counting or writing. The error text is preserved on the run row.
	StatusFailed = "failed"

	// StatusCompletedWithErrors is a backfill-only status: the range
	// was fully walked but at least one date's collection failed.
	StatusCompletedWithErrors = "completed_with_errors"
)

const (
	// CategoryUsersTotal is the cumulative count of users registered
	// on or before the metric date.
	CategoryUsersTotal = "users_total"

	// CategoryPostsTotal is the cumulative count of posts created
	// on or before the metric date.
	CategoryPostsTotal = "posts_total"

	// CategoryCommentsTotal is the cumulative count of comments
	// created on or before the metric date.
	CategoryCommentsTotal = "comments_total"

	// CategoryPostsCreated is the number of posts created exactly on
	// the metric date.
	CategoryPostsCreated = "posts_created"

	// CategoryCommentsCreated is the number of comments created
	// exactly on the metric date.
	CategoryCommentsCreated = "comments_created"
)

// Categories lists every metric category the collector computes for a
// date, in write order. The collector always writes all of them, so
// metrics_written on a completed run equals len(Categories).
var Categories = []string{
	CategoryUsersTotal,
	CategoryPostsTotal,
	CategoryCommentsTotal,
	CategoryPostsCreated,
	CategoryCommentsCreated,
}

// MetricRecord is one snapshot of one named quantity on one calendar
// date. The pair (Date, Category) is unique: re-collecting a date
// overwrites the value rather than adding a second row.
//
// Date is the date the metric describes, not the time the row was
// written; WrittenAt records the write time of the latest overwrite.
type MetricRecord struct {
	// Date is the calendar date the value describes. Only the date
	// part is meaningful; the time component is always midnight UTC.
	Date time.Time `json:"date"`

	// Category identifies the quantity, e.g. "posts_created".
	// Valid values are listed in Categories.
	Category string `json:"category"`

	// Value is the counted magnitude. Zero is a valid value and is
	// written explicitly (a date with no activity still gets rows).
	Value int64 `json:"value"`

	// Metadata carries optional free-form annotations, such as the
	// source of a manual backfill. May be nil.
	Metadata map[string]string `json:"metadata,omitempty"`

	// WrittenAt is when this value was last written or overwritten.
	WrittenAt time.Time `json:"written_at"`
}

// CollectionRun is the audit record of one collector invocation.
// It is created with StatusRunning before any metric is written and
// updated exactly once to a terminal status. There is no foreign key
// to MetricRecord: the audit trail survives partial metric writes.
type CollectionRun struct {
	ID          int64      `json:"id"`
	TargetDate  time.Time  `json:"target_date"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Status is running, completed or failed. Exactly one terminal
	// transition happens per run.
	Status string `json:"status"`

	// MetricsWritten is how many categories were upserted before the
	// run reached its terminal status.
	MetricsWritten int `json:"metrics_written"`

	// ErrorMessage holds the failure text for failed runs, empty
	// otherwise.
	ErrorMessage string `json:"error_message,omitempty"`
}

// CollectionResult summarizes one Collect call for its caller.
type CollectionResult struct {
	TargetDate     time.Time     `json:"target_date"`
	MetricsWritten int           `json:"metrics_written"`
	Elapsed        time.Duration `json:"elapsed_ms"`
	Status         string        `json:"status"`
}

// BackfillResult summarizes a whole backfill range.
type BackfillResult struct {
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	DatesProcessed int           `json:"dates_processed"`
	TotalMetrics   int           `json:"total_metrics"`
	FailedDates    []time.Time   `json:"failed_dates,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ms"`
	Status         string        `json:"status"`
}

// ActivityPoint is one day of the activity series served to
// dashboards. Dates with no collected rows are zero-filled.
type ActivityPoint struct {
	Date            time.Time `json:"date"`
	PostsCreated    int64     `json:"posts_created"`
	CommentsCreated int64     `json:"comments_created"`
}

// Midnight truncates t to its UTC calendar date. All date keys in the
// store are normalized through this before compare or write.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
