package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by mutations that target a missing record.
// Single-record reads return nil, nil instead.
var ErrNotFound = errors.New("record not found")

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	maxTxAttempts          = 5
)

// isRetryable reports whether err is a transaction conflict worth retrying.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
