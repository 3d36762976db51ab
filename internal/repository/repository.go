// Package repository persists marketplace records with sqlx. Queries are
// written with ? placeholders and rebound for the connected driver.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStaleState means the request changed status between read and write.
	ErrStaleState = errors.New("request state changed concurrently")
	ErrDuplicate  = errors.New("record already exists")
)

// timeLayout is fixed width so stored timestamps sort as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts rows written without trailing fraction zeros.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func now() string {
	return formatTime(time.Now())
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func rollback(tx *sqlx.Tx) {
	_ = tx.Rollback()
}
