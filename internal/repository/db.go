// Package repository implements Postgres persistence with pgx.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgAdminShutdown        = "57P01"
	pgCannotConnectNow     = "57P03"
	pgUniqueViolation      = "23505"
)

// IsTransientDBError reports serialization failures, deadlocks and lost
// connections, which are safe to retry as a whole transaction.
func IsTransientDBError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgAdminShutdown, pgCannotConnectNow:
			return true
		}
		// Class 08: connection exception.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// DefaultDBRetryPolicy retries transient database errors a few times with a
// short backoff.
func DefaultDBRetryPolicy() retry.Policy {
	return retry.Policy{
		Name:        "postgres",
		MaxAttempts: 4,
		Backoff:     retry.Exponential(50*time.Millisecond, time.Second, 2),
		Retryable:   IsTransientDBError,
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
