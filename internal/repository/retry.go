package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// retryIntervals is the backoff ladder for transient database errors.
var retryIntervals = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// isRetryable reports whether err is a connection-class Postgres
// error worth retrying. Constraint violations and query errors are
// deterministic and are surfaced immediately.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	return false
}

// withRetry runs op, retrying retryable failures at each interval of
// the ladder. The last error is returned when all attempts fail.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !isRetryable(err) {
		return err
	}

	for _, interval := range retryIntervals {
		select {
		case <-time.After(interval):
			err = op(ctx)
			if err == nil || !isRetryable(err) {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
