package store

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cesargomez89/odyvault/internal/domain"
)

var (
	ErrNotReady       = errors.New("database not ready: migrations have not completed")
	ErrAcquireTimeout = errors.New("timed out waiting for database connection")
	ErrClosed         = errors.New("database is closed")

	ErrUnexpectedSchema  = errors.New("database has application tables but no migration history")
	ErrSchemaTooNew      = errors.New("database schema is newer than this build supports")
	ErrInvalidMigrations = errors.New("invalid migration list")
)

// DBError wraps a storage engine failure with the operation that caused it.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// wrapErr tags err with op unless it is nil or already a caller-facing error.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) || domain.IsValidation(err) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return &DBError{Op: op, Err: err}
}

// IsConstraint reports whether err comes from a violated SQLite constraint.
func IsConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// MigrationError names the migration and statement that failed.
type MigrationError struct {
	Version     int
	Description string
	Statement   string
	Err         error
}

func (e *MigrationError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("migration %d (%s): %v", e.Version, e.Description, e.Err)
	}
	return fmt.Sprintf("migration %d (%s) failed at %q: %v", e.Version, e.Description, truncate(e.Statement, 96), e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
