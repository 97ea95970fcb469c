package repository

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tunehive/pulse/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// lockClassMetrics is the advisory-lock classid shared by every
// per-date collection lock. The objid is the target date in days
// since the Unix epoch, so each calendar date gets its own lock.
const lockClassMetrics = 7853

type DBStorage struct {
	pool *pgxpool.Pool

	// Advisory locks are session-scoped, so the connection that took a
	// date lock is pinned until the lock is released.
	lockMu    sync.Mutex
	lockConns map[int32]*pgxpool.Conn
}

func NewDBStorage(ctx context.Context, dsn string) (*DBStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DBStorage{pool: pool, lockConns: make(map[int32]*pgxpool.Conn)}

	if err := db.runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func (d *DBStorage) runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	switch err {
	case nil:
		log.Info().Msg("database migrations completed")
	case migrate.ErrNoChange:
		log.Info().Msg("database is up to date")
	default:
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (d *DBStorage) countThrough(ctx context.Context, table string, date time.Time) (int64, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE created_at::date <= $1`, table)

	var count int64
	err := withRetry(ctx, func(ctx context.Context) error {
		return d.pool.QueryRow(ctx, query, model.Midnight(date)).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s through %s: %w", table, date.Format("2006-01-02"), err)
	}
	return count, nil
}

func (d *DBStorage) countOn(ctx context.Context, table string, date time.Time) (int64, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE created_at::date = $1`, table)

	var count int64
	err := withRetry(ctx, func(ctx context.Context) error {
		return d.pool.QueryRow(ctx, query, model.Midnight(date)).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s on %s: %w", table, date.Format("2006-01-02"), err)
	}
	return count, nil
}

func (d *DBStorage) CountUsersThrough(ctx context.Context, date time.Time) (int64, error) {
	return d.countThrough(ctx, "users", date)
}

func (d *DBStorage) CountPostsThrough(ctx context.Context, date time.Time) (int64, error) {
	return d.countThrough(ctx, "posts", date)
}

func (d *DBStorage) CountCommentsThrough(ctx context.Context, date time.Time) (int64, error) {
	return d.countThrough(ctx, "comments", date)
}

func (d *DBStorage) CountPostsOn(ctx context.Context, date time.Time) (int64, error) {
	return d.countOn(ctx, "posts", date)
}

func (d *DBStorage) CountCommentsOn(ctx context.Context, date time.Time) (int64, error) {
	return d.countOn(ctx, "comments", date)
}

func (d *DBStorage) EarliestSourceDate(ctx context.Context) (time.Time, bool, error) {
	query := `
		SELECT min(d) FROM (
			SELECT min(created_at)::date AS d FROM users
			UNION ALL
			SELECT min(created_at)::date FROM posts
			UNION ALL
			SELECT min(created_at)::date FROM comments
		) src
	`

	var earliest *time.Time
	err := withRetry(ctx, func(ctx context.Context) error {
		return d.pool.QueryRow(ctx, query).Scan(&earliest)
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to find earliest source date: %w", err)
	}
	if earliest == nil {
		return time.Time{}, false, nil
	}
	return model.Midnight(*earliest), true, nil
}

func (d *DBStorage) UpsertMetric(ctx context.Context, rec model.MetricRecord) error {
	query := `
		INSERT INTO daily_metrics (metric_date, category, value, metadata, written_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (metric_date, category)
		DO UPDATE SET value = EXCLUDED.value, metadata = EXCLUDED.metadata, written_at = now()
	`

	var metadata []byte
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metric metadata: %w", err)
		}
		metadata = data
	}

	err := withRetry(ctx, func(ctx context.Context) error {
		_, err := d.pool.Exec(ctx, query, model.Midnight(rec.Date), rec.Category, rec.Value, metadata)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert metric %s: %w", rec.Category, err)
	}
	return nil
}

func (d *DBStorage) TryLockDate(ctx context.Context, date time.Time) error {
	objID := int32(model.Midnight(date).Unix() / 86400)

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for date lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1, $2)`, lockClassMetrics, objID).Scan(&locked); err != nil {
		conn.Release()
		return fmt.Errorf("failed to acquire date lock: %w", err)
	}
	if !locked {
		conn.Release()
		return ErrDateLocked
	}

	d.lockMu.Lock()
	d.lockConns[objID] = conn
	d.lockMu.Unlock()
	return nil
}

func (d *DBStorage) UnlockDate(ctx context.Context, date time.Time) error {
	objID := int32(model.Midnight(date).Unix() / 86400)

	d.lockMu.Lock()
	conn, ok := d.lockConns[objID]
	delete(d.lockConns, objID)
	d.lockMu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Release()

	var unlocked bool
	if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1, $2)`, lockClassMetrics, objID).Scan(&unlocked); err != nil {
		return fmt.Errorf("failed to release date lock: %w", err)
	}
	return nil
}

func (d *DBStorage) BeginRun(ctx context.Context, date time.Time) (int64, error) {
	query := `
		INSERT INTO metric_collection_log (target_date, started_at, status, metrics_written)
		VALUES ($1, now(), $2, 0)
		RETURNING id
	`

	var id int64
	err := withRetry(ctx, func(ctx context.Context) error {
		return d.pool.QueryRow(ctx, query, model.Midnight(date), model.StatusRunning).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to begin collection run: %w", err)
	}
	return id, nil
}

func (d *DBStorage) CompleteRun(ctx context.Context, id int64, metricsWritten int) error {
	query := `
		UPDATE metric_collection_log
		SET status = $2, metrics_written = $3, completed_at = now()
		WHERE id = $1 AND status = $4
	`

	tag, err := d.pool.Exec(ctx, query, id, model.StatusCompleted, metricsWritten, model.StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to complete collection run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (d *DBStorage) FailRun(ctx context.Context, id int64, metricsWritten int, errMsg string) error {
	query := `
		UPDATE metric_collection_log
		SET status = $2, metrics_written = $3, error_message = $4, completed_at = now()
		WHERE id = $1 AND status = $5
	`

	tag, err := d.pool.Exec(ctx, query, id, model.StatusFailed, metricsWritten, errMsg, model.StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark collection run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (d *DBStorage) MarkStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE metric_collection_log
		SET status = $1, error_message = $2, completed_at = now()
		WHERE status = $3 AND started_at < $4
	`

	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := d.pool.Exec(ctx, query,
		model.StatusFailed, "interrupted: run never reached a terminal status", model.StatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (d *DBStorage) MetricsRange(ctx context.Context, from, to time.Time) ([]model.MetricRecord, error) {
	query := `
		SELECT metric_date, category, value, metadata, written_at
		FROM daily_metrics
		WHERE metric_date BETWEEN $1 AND $2
		ORDER BY metric_date, category
	`

	rows, err := d.pool.Query(ctx, query, model.Midnight(from), model.Midnight(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics range: %w", err)
	}
	defer rows.Close()

	return scanMetricRows(rows)
}

func (d *DBStorage) LatestMetrics(ctx context.Context) ([]model.MetricRecord, error) {
	query := `
		SELECT DISTINCT ON (category) metric_date, category, value, metadata, written_at
		FROM daily_metrics
		ORDER BY category, metric_date DESC
	`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}
	defer rows.Close()

	return scanMetricRows(rows)
}

func (d *DBStorage) RecentRuns(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	query := `
		SELECT id, target_date, started_at, completed_at, status, metrics_written, coalesce(error_message, '')
		FROM metric_collection_log
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := d.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection runs: %w", err)
	}
	defer rows.Close()

	var runs []model.CollectionRun
	for rows.Next() {
		var run model.CollectionRun
		if err := rows.Scan(&run.ID, &run.TargetDate, &run.StartedAt, &run.CompletedAt,
			&run.Status, &run.MetricsWritten, &run.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan collection run: %w", err)
		}
		run.TargetDate = model.Midnight(run.TargetDate)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (d *DBStorage) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *DBStorage) Close() {
	d.lockMu.Lock()
	for objID, conn := range d.lockConns {
		conn.Release()
		delete(d.lockConns, objID)
	}
	d.lockMu.Unlock()
	d.pool.Close()
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMetricRows(rows pgRows) ([]model.MetricRecord, error) {
	var records []model.MetricRecord
	for rows.Next() {
		var rec model.MetricRecord
		var metadata []byte
		if err := rows.Scan(&rec.Date, &rec.Category, &rec.Value, &metadata, &rec.WrittenAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric record: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metric metadata: %w", err)
			}
		}
		rec.Date = model.Midnight(rec.Date)
		records = append(records, rec)
	}
	return records, rows.Err()
}
