package service

import (
	"context"
	"errors"
	"time"

	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/repository"
)

var ErrInvalidDays = errors.New("days must be positive")

// Queries is the read-only surface consumed by dashboards.
type Queries struct {
	storage repository.Storage
}

func NewQueries(storage repository.Storage) *Queries {
	return &Queries{storage: storage}
}

func (q *Queries) Range(ctx context.Context, from, to time.Time) ([]model.MetricRecord, error) {
	if model.Midnight(from).After(model.Midnight(to)) {
		return nil, ErrInvalidRange
	}
	return q.storage.MetricsRange(ctx, from, to)
}

func (q *Queries) Latest(ctx context.Context) ([]model.MetricRecord, error) {
	return q.storage.LatestMetrics(ctx)
}

func (q *Queries) Runs(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	if limit <= 0 {
		limit = 30
	}
	return q.storage.RecentRuns(ctx, limit)
}

// Activity reshapes the daily-category rows of the last days dates
// (ending today) into a per-day series. Dates with no collected rows
// appear as zeros so charts stay contiguous.
func (q *Queries) Activity(ctx context.Context, days int) ([]model.ActivityPoint, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}

	end := model.Midnight(time.Now().UTC())
	start := end.AddDate(0, 0, -(days - 1))

	records, err := q.storage.MetricsRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*model.ActivityPoint, days)
	series := make([]model.ActivityPoint, 0, days)
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		series = append(series, model.ActivityPoint{Date: date})
		byDate[date.Format("2006-01-02")] = &series[len(series)-1]
	}

	for _, rec := range records {
		point, ok := byDate[rec.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		switch rec.Category {
		case model.CategoryPostsCreated:
			point.PostsCreated = rec.Value
		case model.CategoryCommentsCreated:
			point.CommentsCreated = rec.Value
		}
	}

	return series, nil
}
