package database

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// connection-class SQLSTATEs (08xxx) plus the admin shutdown family (57P0x).
var connectionSQLStates = map[string]bool{
	"08000": true,
	"08003": true,
	"08006": true,
	"08001": true,
	"08004": true,
	"57P01": true,
	"57P02": true,
	"57P03": true,
}

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
	"failed to connect",
	"conn closed",
	"closed pool",
}

// IsConnectionError reports whether err means the database could not be
// reached, as opposed to a statement or constraint failure. Callers map these
// to a retriable 503.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return connectionSQLStates[pgErr.Code]
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	if msg == "EOF" || strings.HasSuffix(msg, ": EOF") {
		return true
	}
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// UniqueViolation returns the violated constraint name and true when err is a
// unique_violation (SQLSTATE 23505).
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolationCode {
			return pgErr.ConstraintName, true
		}
		return "", false
	}
	if err != nil && strings.Contains(err.Error(), uniqueViolationCode) {
		return "", true
	}
	return "", false
}

// IsUniqueViolation reports whether err is a unique_violation.
func IsUniqueViolation(err error) bool {
	_, ok := UniqueViolation(err)
	return ok
}
