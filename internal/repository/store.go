// Package repository implements the engine's Store on MySQL.  All
// timestamps are stored and compared in UTC.  The per-event
// serialization the engine relies on is realized with an exclusive
// row lock on the event inside WithEventTx: concurrent transactions
// touching the same event queue up on that lock, while transactions
// for different events run in parallel.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-ticket-reservation/internal/engine"
)

// Store provides data access for events, tickets, waiting-list
// entries and payment accounts, and implements engine.Store.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the provided database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle, mainly for schema migration at
// boot.
func (s *Store) DB() *sql.DB { return s.db }

type txKey struct{}

// WithEventTx begins a transaction, locks the event's row FOR UPDATE
// and runs fn with the transaction carried in the context.  Every
// Store method invoked with that context joins the transaction.
// Nested calls for the same context reuse the outer transaction.
// Returns engine.ErrEventNotFound when the event does not exist.
func (s *Store) WithEventTx(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ? FOR UPDATE`, eventID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.ErrEventNotFound
		}
		return fmt.Errorf("lock event %s: %w", eventID, err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction carried by ctx when present, otherwise
// the pooled handle.
func (s *Store) q(ctx context.Context) runner {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// isDuplicateKey reports whether err is a MySQL unique-key violation.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
