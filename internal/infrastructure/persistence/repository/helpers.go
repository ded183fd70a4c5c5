package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/mattn/go-sqlite3"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func idPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	id := ni.Int64
	return &id
}

// notFound wraps sql.ErrNoRows into the domain error, passing other errors through.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, domainwf.ErrNotFound)
	}
	return err
}

// isForeignKeyViolation reports whether err is a sqlite foreign key failure.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func requireAffected(result sql.Result, what string, id interface{}) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, domainwf.ErrNotFound)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domainwf.ErrNotFound)
}
