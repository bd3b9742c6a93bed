package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"ExpenseCertify/internal/logger"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition is returned for a status change the state machine
	// rejects.
	ErrInvalidTransition = errors.New("invalid status transition")
)

//go:embed schema.sql
var schema string

// Store persists runs and their artifacts in Postgres through database/sql.
// Large row sets go through the optional BulkWriter.
type Store struct {
	db   *sql.DB
	bulk BulkWriter
}

// New creates a Store. bulk may be nil, in which case every write uses
// row-by-row inserts inside a transaction.
func New(db *sql.DB, bulk BulkWriter) *Store {
	return &Store{db: db, bulk: bulk}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the schema when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Component("store").Info("schema ready")
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
