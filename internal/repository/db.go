// Package repository implements the store interfaces against PostgreSQL.
//
// All counter and ledger mutations are single-statement conditional writes
// so they stay correct under concurrent request handlers.
package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Open connects to PostgreSQL using the pgx stdlib driver.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// uniqueViolation is the PostgreSQL error code for unique constraint conflicts.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint conflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
