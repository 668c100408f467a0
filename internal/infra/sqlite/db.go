// Package sqlite provides persistent storage for the credit ledger using
// modernc.org/sqlite (pure Go, no CGO).
//
// Every ledger operation runs inside a single transaction: the transfer row
// and all balance-projection deltas commit or roll back together. Balance
// decrements are guarded in SQL ("set x = x - ? where x >= ?") so the
// insufficient-balance check and the mutation are one atomic statement —
// there is no check-then-act window in application code.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/favorbank/favorbank/internal/domain"
)

// DB wraps the SQLite connection and exposes ledger storage operations.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at the given path and runs migrations.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dsn = "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY between our own goroutines and keeps :memory: coherent.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// migrate applies all schema statements. Each statement is idempotent.
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w\n%s", err, stmt)
		}
	}
	return nil
}

// InTx runs fn inside a transaction. If fn returns an error the transaction
// is rolled back and the error returned; otherwise the transaction commits.
// SQLite lock contention surfaces as domain.ErrConflict.
func (db *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return mapSQLiteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// mapSQLiteErr translates driver-level contention errors into the domain
// taxonomy so callers can retry without inspecting driver strings.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInsufficientBalance) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidAmount) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}
