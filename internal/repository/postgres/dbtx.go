package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DBTX is a common interface for *sqlx.DB and *sqlx.Tx
// This allows repositories to work with both regular connections and transactions
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	// sqlx extended methods
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type txKey struct{}

// Atomic runs a function inside a database transaction carried on the
// context, so ledger and contract writes issued by one lifecycle operation
// commit or roll back together.
type Atomic struct {
	db *sqlx.DB
}

// NewAtomic creates a transaction runner over the given database
func NewAtomic(db *sqlx.DB) *Atomic {
	return &Atomic{db: db}
}

// InTx begins a transaction, attaches it to the context and runs fn.
// Nested calls reuse the outer transaction.
func (a *Atomic) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func txFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// querier resolves the transaction on ctx, falling back to the base handle
func querier(ctx context.Context, db DBTX) DBTX {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}
