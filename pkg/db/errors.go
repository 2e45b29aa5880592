package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation on
// the named constraint. Postgres errors carry the violated constraint, so
// they are matched on it exactly; a prefix also matches because the carts
// identity uses a pair of indexes sharing one. The message fallback only
// covers sqlite in tests, whose errors name columns rather than the index.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || strings.HasPrefix(pgErr.ConstraintName, constraintName)
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
