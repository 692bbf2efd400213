package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Open opens the store database on the given driver and verifies
// the connection. Postgres gets a real connection pool; the embedded
// sqlite driver serializes writers, so it runs a single connection.
func Open(driver, dsn string) (*sql.DB, error) {
	d, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %s: %w", driver, err)
	}

	if driver == "sqlite" {
		d.SetMaxOpenConns(1)
	} else {
		d.SetMaxOpenConns(10)
		d.SetMaxIdleConns(5)
		d.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := d.Ping(); err != nil {
		return nil, fmt.Errorf("open database: verify %s connection: %w", driver, err)
	}

	return d, nil
}
