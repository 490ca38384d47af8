package bundb

import (
	"errors"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"
)

// processPostgresError replaces a postgres unique-violation with our
// own sentinel, leaving everything else untouched.
func processPostgresError(err error) db.Error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	// https://www.postgresql.org/docs/current/errcodes-appendix.html
	switch pgErr.Code {
	case "23505": // unique_violation
		return db.ErrAlreadyExists
	default:
		return err
	}
}

// processSQLiteError replaces a sqlite unique/primary-key constraint
// violation with our own sentinel.
func processSQLiteError(err error) db.Error {
	var sqliteErr *sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.ExtendedCode() {
	case sqlite3.CONSTRAINT_UNIQUE, sqlite3.CONSTRAINT_PRIMARYKEY:
		return db.ErrAlreadyExists
	default:
		return err
	}
}
