package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes postgres reports for duplicate keys and numeric overflow
const (
	uniqueViolation        = "23505"
	numericValueOutOfRange = "22003"
)

func isUniqueViolation(err error) bool {
	return hasSQLState(err, uniqueViolation)
}

// isOutOfRange reports a value that does not fit its column, such as a
// quantity sum beyond INTEGER or a price beyond DECIMAL(10,2)
func isOutOfRange(err error) bool {
	return hasSQLState(err, numericValueOutOfRange)
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
