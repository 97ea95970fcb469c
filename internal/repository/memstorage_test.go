package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tunehive/pulse/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMemStorageCounts(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()

	s.AddUser(day(2024, 1, 1).Add(5 * time.Hour))
	s.AddUser(day(2024, 1, 3))
	s.AddPost(day(2024, 1, 2))
	s.AddPost(day(2024, 1, 2).Add(23*time.Hour + 59*time.Minute))
	s.AddComment(day(2024, 1, 4))

	tests := []struct {
		name  string
		count func() (int64, error)
		want  int64
	}{
		{"users through jan 2", func() (int64, error) { return s.CountUsersThrough(ctx, day(2024, 1, 2)) }, 1},
		{"users through jan 3", func() (int64, error) { return s.CountUsersThrough(ctx, day(2024, 1, 3)) }, 2},
		{"posts through jan 1", func() (int64, error) { return s.CountPostsThrough(ctx, day(2024, 1, 1)) }, 0},
		{"posts on jan 2", func() (int64, error) { return s.CountPostsOn(ctx, day(2024, 1, 2)) }, 2},
		{"comments on jan 2", func() (int64, error) { return s.CountCommentsOn(ctx, day(2024, 1, 2)) }, 0},
		{"comments through jan 9", func() (int64, error) { return s.CountCommentsThrough(ctx, day(2024, 1, 9)) }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.count()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestMemStorageUpsertOverwrites(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()

	rec := model.MetricRecord{Date: day(2024, 2, 1), Category: model.CategoryPostsCreated, Value: 3}
	if err := s.UpsertMetric(ctx, rec); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	rec.Value = 8
	if err := s.UpsertMetric(ctx, rec); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	metrics := s.MetricsForDate(day(2024, 2, 1))
	if len(metrics) != 1 {
		t.Fatalf("expected 1 row after overwrite, got %d", len(metrics))
	}
	if got := metrics[model.CategoryPostsCreated].Value; got != 8 {
		t.Errorf("expected overwritten value 8, got %d", got)
	}
}

func TestMemStorageDateLock(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()

	if err := s.TryLockDate(ctx, day(2024, 3, 1)); err != nil {
		t.Fatalf("first lock failed: %v", err)
	}
	if err := s.TryLockDate(ctx, day(2024, 3, 1)); !errors.Is(err, ErrDateLocked) {
		t.Fatalf("expected ErrDateLocked, got %v", err)
	}
	// A different date is independent.
	if err := s.TryLockDate(ctx, day(2024, 3, 2)); err != nil {
		t.Fatalf("lock on other date failed: %v", err)
	}
	if err := s.UnlockDate(ctx, day(2024, 3, 1)); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if err := s.TryLockDate(ctx, day(2024, 3, 1)); err != nil {
		t.Fatalf("relock after unlock failed: %v", err)
	}
}

func TestMemStorageRunLifecycle(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()

	id, err := s.BeginRun(ctx, day(2024, 4, 1))
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := s.CompleteRun(ctx, id, 5); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	// A second terminal transition must not find a running row.
	if err := s.FailRun(ctx, id, 5, "late failure"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on double transition, got %v", err)
	}

	runs := s.RunsForDate(day(2024, 4, 1))
	if len(runs) != 1 || runs[0].Status != model.StatusCompleted || runs[0].MetricsWritten != 5 {
		t.Fatalf("unexpected run state: %+v", runs)
	}
}

func TestMemStorageMarkStaleRuns(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()

	id, err := s.BeginRun(ctx, day(2024, 5, 1))
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	// Fresh running rows are left alone.
	swept, err := s.MarkStaleRuns(ctx, time.Hour)
	if err != nil {
		t.Fatalf("MarkStaleRuns failed: %v", err)
	}
	if swept != 0 {
		t.Errorf("expected 0 swept, got %d", swept)
	}

	swept, err = s.MarkStaleRuns(ctx, 0)
	if err != nil {
		t.Fatalf("MarkStaleRuns failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected 1 swept, got %d", swept)
	}

	if err := s.CompleteRun(ctx, id, 5); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected swept run to be terminal, got %v", err)
	}
}

// Benchmarks
func BenchmarkMemStorageUpsertMetric(b *testing.B) {
	s := NewMemStorage()
	ctx := context.Background()
	rec := model.MetricRecord{Date: day(2024, 1, 1), Category: model.CategoryUsersTotal}

	b.ResetTimer()
	for i := range b.N {
		rec.Value = int64(i)
		s.UpsertMetric(ctx, rec)
	}
}

func BenchmarkMemStorageCountThrough(b *testing.B) {
	s := NewMemStorage()
	ctx := context.Background()

	// Pre-populate with 1000 users across 100 days
	for i := range 1000 {
		s.AddUser(day(2024, 1, 1).AddDate(0, 0, i%100))
	}

	b.ResetTimer()
	for b.Loop() {
		s.CountUsersThrough(ctx, day(2024, 2, 15))
	}
}
