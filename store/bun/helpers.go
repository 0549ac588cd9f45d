package bunstore

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
// Item ids are globally unique, so this surfaces as ErrItemAlreadyExists.
const uniqueViolation = "23505"

// isNoRows reports whether err means the queried item does not exist.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey reports whether err is a unique constraint violation.
func isDuplicateKey(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
