package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ConstraintKind names the class of integrity rule that rejected a write.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintViolation is returned when the database rejects a write on an
// integrity constraint. Services decide what it means for their operation.
type ConstraintViolation struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s constraint %q violated: %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s constraint violated: %v", e.Kind, e.Err)
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

// IsConstraintViolation reports whether err wraps a violation of the given kind.
func IsConstraintViolation(err error, kind ConstraintKind) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv) && cv.Kind == kind
}

// classify turns driver-level integrity errors into *ConstraintViolation and
// returns every other error unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintViolation{Kind: ConstraintUnique, Constraint: pgErr.ConstraintName, Err: err}
		case "23503":
			return &ConstraintViolation{Kind: ConstraintForeignKey, Constraint: pgErr.ConstraintName, Err: err}
		case "23502":
			return &ConstraintViolation{Kind: ConstraintNotNull, Constraint: pgErr.ColumnName, Err: err}
		}
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ConstraintViolation{Kind: ConstraintUnique, Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &ConstraintViolation{Kind: ConstraintForeignKey, Err: err}
	}

	// SQLite reports constraints only through the message text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &ConstraintViolation{Kind: ConstraintUnique, Constraint: sqliteConstraintTarget(msg), Err: err}
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &ConstraintViolation{Kind: ConstraintForeignKey, Err: err}
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return &ConstraintViolation{Kind: ConstraintNotNull, Constraint: sqliteConstraintTarget(msg), Err: err}
	}

	return err
}

// sqliteConstraintTarget extracts "likes.user_id, likes.thread_id" from
// "UNIQUE constraint failed: likes.user_id, likes.thread_id".
func sqliteConstraintTarget(msg string) string {
	_, target, found := strings.Cut(msg, "constraint failed:")
	if !found {
		return ""
	}
	return strings.TrimSpace(target)
}
