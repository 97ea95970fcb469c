package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tunehive/pulse/internal/model"
)

// MemStorage is an in-memory Storage used by unit tests and local
// runs without a database. Source rows are seeded directly; count
// errors can be injected per date to exercise failure paths.
type MemStorage struct {
	mu sync.RWMutex

	users    []time.Time
	posts    []time.Time
	comments []time.Time

	metrics map[string]map[string]model.MetricRecord
	runs    []model.CollectionRun
	nextID  int64

	locks map[string]bool

	countErrs map[string]error
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		metrics:   make(map[string]map[string]model.MetricRecord),
		locks:     make(map[string]bool),
		countErrs: make(map[string]error),
		nextID:    1,
	}
}

func dateKey(date time.Time) string {
	return model.Midnight(date).Format("2006-01-02")
}

// AddUser seeds one user source row with the given creation time.
func (s *MemStorage) AddUser(createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, createdAt.UTC())
}

// AddPost seeds one post source row with the given creation time.
func (s *MemStorage) AddPost(createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, createdAt.UTC())
}

// AddComment seeds one comment source row with the given creation time.
func (s *MemStorage) AddComment(createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, createdAt.UTC())
}

// FailCountsOn makes every count query for the given date return err,
// simulating a per-date database failure.
func (s *MemStorage) FailCountsOn(date time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countErrs[dateKey(date)] = err
}

func (s *MemStorage) countThrough(rows []time.Time, date time.Time) int64 {
	limit := model.Midnight(date)
	var count int64
	for _, t := range rows {
		if !model.Midnight(t).After(limit) {
			count++
		}
	}
	return count
}

func (s *MemStorage) countOn(rows []time.Time, date time.Time) int64 {
	day := model.Midnight(date)
	var count int64
	for _, t := range rows {
		if model.Midnight(t).Equal(day) {
			count++
		}
	}
	return count
}

func (s *MemStorage) count(ctx context.Context, date time.Time, fn func() int64) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.countErrs[dateKey(date)]; err != nil {
		return 0, err
	}
	return fn(), nil
}

func (s *MemStorage) CountUsersThrough(ctx context.Context, date time.Time) (int64, error) {
	return s.count(ctx, date, func() int64 { return s.countThrough(s.users, date) })
}

func (s *MemStorage) CountPostsThrough(ctx context.Context, date time.Time) (int64, error) {
	return s.count(ctx, date, func() int64 { return s.countThrough(s.posts, date) })
}

func (s *MemStorage) CountCommentsThrough(ctx context.Context, date time.Time) (int64, error) {
	return s.count(ctx, date, func() int64 { return s.countThrough(s.comments, date) })
}

func (s *MemStorage) CountPostsOn(ctx context.Context, date time.Time) (int64, error) {
	return s.count(ctx, date, func() int64 { return s.countOn(s.posts, date) })
}

func (s *MemStorage) CountCommentsOn(ctx context.Context, date time.Time) (int64, error) {
	return s.count(ctx, date, func() int64 { return s.countOn(s.comments, date) })
}

func (s *MemStorage) EarliestSourceDate(ctx context.Context) (time.Time, bool, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, false, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	for _, rows := range [][]time.Time{s.users, s.posts, s.comments} {
		for _, t := range rows {
			day := model.Midnight(t)
			if earliest.IsZero() || day.Before(earliest) {
				earliest = day
			}
		}
	}
	if earliest.IsZero() {
		return time.Time{}, false, nil
	}
	return earliest, true, nil
}

func (s *MemStorage) UpsertMetric(ctx context.Context, rec model.MetricRecord) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dateKey(rec.Date)
	if s.metrics[key] == nil {
		s.metrics[key] = make(map[string]model.MetricRecord)
	}
	rec.Date = model.Midnight(rec.Date)
	rec.WrittenAt = time.Now().UTC()
	s.metrics[key][rec.Category] = rec
	return nil
}

func (s *MemStorage) TryLockDate(ctx context.Context, date time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dateKey(date)
	if s.locks[key] {
		return ErrDateLocked
	}
	s.locks[key] = true
	return nil
}

func (s *MemStorage) UnlockDate(ctx context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, dateKey(date))
	return nil
}

func (s *MemStorage) BeginRun(ctx context.Context, date time.Time) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	run := model.CollectionRun{
		ID:         s.nextID,
		TargetDate: model.Midnight(date),
		StartedAt:  time.Now().UTC(),
		Status:     model.StatusRunning,
	}
	s.nextID++
	s.runs = append(s.runs, run)
	return run.ID, nil
}

func (s *MemStorage) finishRun(id int64, status string, metricsWritten int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.runs {
		if s.runs[i].ID == id && s.runs[i].Status == model.StatusRunning {
			now := time.Now().UTC()
			s.runs[i].Status = status
			s.runs[i].MetricsWritten = metricsWritten
			s.runs[i].ErrorMessage = errMsg
			s.runs[i].CompletedAt = &now
			return nil
		}
	}
	return ErrRunNotFound
}

func (s *MemStorage) CompleteRun(ctx context.Context, id int64, metricsWritten int) error {
	return s.finishRun(id, model.StatusCompleted, metricsWritten, "")
}

func (s *MemStorage) FailRun(ctx context.Context, id int64, metricsWritten int, errMsg string) error {
	return s.finishRun(id, model.StatusFailed, metricsWritten, errMsg)
}

func (s *MemStorage) MarkStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var swept int64
	for i := range s.runs {
		if s.runs[i].Status == model.StatusRunning && s.runs[i].StartedAt.Before(cutoff) {
			now := time.Now().UTC()
			s.runs[i].Status = model.StatusFailed
			s.runs[i].ErrorMessage = "interrupted: run never reached a terminal status"
			s.runs[i].CompletedAt = &now
			swept++
		}
	}
	return swept, nil
}

func (s *MemStorage) MetricsRange(ctx context.Context, from, to time.Time) ([]model.MetricRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := model.Midnight(from), model.Midnight(to)
	var records []model.MetricRecord
	for _, byCategory := range s.metrics {
		for _, rec := range byCategory {
			if !rec.Date.Before(start) && !rec.Date.After(end) {
				records = append(records, rec)
			}
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Category < records[j].Category
	})
	return records, nil
}

func (s *MemStorage) LatestMetrics(ctx context.Context) ([]model.MetricRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]model.MetricRecord)
	for _, byCategory := range s.metrics {
		for category, rec := range byCategory {
			if cur, ok := latest[category]; !ok || rec.Date.After(cur.Date) {
				latest[category] = rec
			}
		}
	}

	records := make([]model.MetricRecord, 0, len(latest))
	for _, rec := range latest {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Category < records[j].Category })
	return records, nil
}

func (s *MemStorage) RecentRuns(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.CollectionRun, len(s.runs))
	copy(runs, s.runs)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// RunsForDate returns every audit row recorded for the given date,
// oldest first. Test helper.
func (s *MemStorage) RunsForDate(date time.Time) []model.CollectionRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := model.Midnight(date)
	var runs []model.CollectionRun
	for _, run := range s.runs {
		if run.TargetDate.Equal(day) {
			runs = append(runs, run)
		}
	}
	return runs
}

// MetricsForDate returns the metric rows stored for one date keyed by
// category. Test helper.
func (s *MemStorage) MetricsForDate(date time.Time) map[string]model.MetricRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.MetricRecord)
	for category, rec := range s.metrics[dateKey(date)] {
		out[category] = rec
	}
	return out
}
