package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations repositories need. Both a
// dedicated connection and an open transaction satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Scope represents a database scope for a single request. It holds a
// dedicated connection for the lifetime of the request and, when a
// transaction is open, routes all queries through it.
type Scope struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

// AcquireScope gets a dedicated connection from the pool for a request.
// The caller must call Release when done.
func (db *DB) AcquireScope(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Scope{conn: conn}, nil
}

// Querier returns the active transaction if one is open, otherwise the
// scope's dedicated connection.
func (s *Scope) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// NewDetachedScope returns a scope with no underlying connection. Queries
// cannot run through it and WithTx executes fn directly. Intended for tests
// that stub the repository layer.
func NewDetachedScope() *Scope {
	return &Scope{}
}

// WithTx runs fn inside a transaction on the scope's connection. While fn
// runs, Querier routes through the transaction, so repository calls made
// with the same context participate in it. Nested calls are not supported.
func (s *Scope) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx != nil {
		return fmt.Errorf("transaction already open on scope")
	}
	if s.conn == nil {
		return fn(ctx)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	defer func() { s.tx = nil }()

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Release returns the scope's connection to the pool.
func (s *Scope) Release() {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}
