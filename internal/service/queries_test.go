package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tunehive/pulse/internal/model"
	"github.com/tunehive/pulse/internal/repository"
)

func TestRangeSortedByDateAndCategory(t *testing.T) {
	storage := repository.NewMemStorage()
	ctx := context.Background()

	seed := []model.MetricRecord{
		{Date: date(2024, 1, 2), Category: model.CategoryUsersTotal, Value: 5},
		{Date: date(2024, 1, 1), Category: model.CategoryUsersTotal, Value: 3},
		{Date: date(2024, 1, 1), Category: model.CategoryPostsTotal, Value: 1},
		{Date: date(2024, 1, 5), Category: model.CategoryUsersTotal, Value: 7},
	}
	for _, rec := range seed {
		if err := storage.UpsertMetric(ctx, rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	queries := NewQueries(storage)
	records, err := queries.Range(ctx, date(2024, 1, 1), date(2024, 1, 2))
	if err != nil {
		t.Fatalf("Range returned error: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if cur.Date.Before(prev.Date) {
			t.Errorf("records out of date order at %d", i)
		}
		if cur.Date.Equal(prev.Date) && cur.Category < prev.Category {
			t.Errorf("records out of category order at %d", i)
		}
	}
}

func TestRangeInvalid(t *testing.T) {
	queries := NewQueries(repository.NewMemStorage())
	_, err := queries.Range(context.Background(), date(2024, 2, 2), date(2024, 2, 1))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestLatestPicksNewestPerCategory(t *testing.T) {
	storage := repository.NewMemStorage()
	ctx := context.Background()

	seed := []model.MetricRecord{
		{Date: date(2024, 1, 1), Category: model.CategoryUsersTotal, Value: 3},
		{Date: date(2024, 1, 9), Category: model.CategoryUsersTotal, Value: 9},
		{Date: date(2024, 1, 5), Category: model.CategoryPostsTotal, Value: 2},
	}
	for _, rec := range seed {
		if err := storage.UpsertMetric(ctx, rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	queries := NewQueries(storage)
	records, err := queries.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Category == model.CategoryUsersTotal && rec.Value != 9 {
			t.Errorf("users_total: expected latest value 9, got %d", rec.Value)
		}
	}
}

func TestActivityZeroFills(t *testing.T) {
	storage := repository.NewMemStorage()
	ctx := context.Background()

	yesterday := model.Midnight(time.Now().UTC()).AddDate(0, 0, -1)
	seed := []model.MetricRecord{
		{Date: yesterday, Category: model.CategoryPostsCreated, Value: 4},
		{Date: yesterday, Category: model.CategoryCommentsCreated, Value: 7},
	}
	for _, rec := range seed {
		if err := storage.UpsertMetric(ctx, rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	queries := NewQueries(storage)
	series, err := queries.Activity(ctx, 7)
	if err != nil {
		t.Fatalf("Activity returned error: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("expected 7 points, got %d", len(series))
	}

	var seen bool
	for _, point := range series {
		if point.Date.Equal(yesterday) {
			seen = true
			if point.PostsCreated != 4 || point.CommentsCreated != 7 {
				t.Errorf("yesterday: expected 4/7, got %d/%d", point.PostsCreated, point.CommentsCreated)
			}
		} else if point.PostsCreated != 0 || point.CommentsCreated != 0 {
			t.Errorf("%s: expected zero-filled point", point.Date.Format("2006-01-02"))
		}
	}
	if !seen {
		t.Error("yesterday missing from series")
	}
}

func TestActivityInvalidDays(t *testing.T) {
	queries := NewQueries(repository.NewMemStorage())
	if _, err := queries.Activity(context.Background(), 0); !errors.Is(err, ErrInvalidDays) {
		t.Fatalf("expected ErrInvalidDays, got %v", err)
	}
}
