package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"optionvault/internal/domain/ledger"
	"optionvault/internal/metrics"
	"optionvault/pkg/errors"
)

// Compile-time check
var _ ledger.Ledger = (*LedgerRepository)(nil)

// LedgerRepository implements the balance ledger on a postgres table.
// Each Transfer debits with a guarded update so a balance can never go
// negative, and credits with an upsert; run inside Atomic.InTx both legs
// commit or roll back together.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Transfer moves amount of asset between accounts. Escrow accounts may
// only be debited under the escrow authority; other accounts only by
// themselves.
func (r *LedgerRepository) Transfer(ctx context.Context, from, to ledger.Account, asset ledger.Asset, amount uint64, authorizedBy ledger.Account) error {
	err := r.transfer(ctx, from, to, asset, amount, authorizedBy)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LedgerTransfers.WithLabelValues(status).Inc()
	return err
}

func (r *LedgerRepository) transfer(ctx context.Context, from, to ledger.Account, asset ledger.Asset, amount uint64, authorizedBy ledger.Account) error {
	if ledger.IsEscrow(from) {
		if authorizedBy != ledger.EscrowAuthority {
			return errors.ErrUnauthorized
		}
	} else if authorizedBy != from {
		return errors.ErrUnauthorized
	}

	if amount == 0 {
		return nil
	}

	if err := r.debit(ctx, from, asset, amount); err != nil {
		return err
	}
	return r.credit(ctx, to, asset, amount)
}

// Mint credits newly created units of asset to an account
func (r *LedgerRepository) Mint(ctx context.Context, asset ledger.Asset, to ledger.Account, amount uint64) error {
	return r.credit(ctx, to, asset, amount)
}

// Burn destroys units of asset held by an account
func (r *LedgerRepository) Burn(ctx context.Context, asset ledger.Asset, from ledger.Account, amount uint64) error {
	return r.debit(ctx, from, asset, amount)
}

// Balance reports current holdings; unknown accounts hold zero
func (r *LedgerRepository) Balance(ctx context.Context, account ledger.Account, asset ledger.Asset) (uint64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM balances WHERE account = $1 AND asset = $2`

	var bal uint64
	if err := querier(ctx, r.db).GetContext(ctx, &bal, query, account, asset); err != nil {
		return 0, err
	}
	return bal, nil
}

// debit subtracts amount only if the balance covers it
func (r *LedgerRepository) debit(ctx context.Context, account ledger.Account, asset ledger.Asset, amount uint64) error {
	query := `
		UPDATE balances
		SET amount = amount - $3
		WHERE account = $1 AND asset = $2 AND amount >= $3`

	res, err := querier(ctx, r.db).ExecContext(ctx, query, account, asset, amount)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrInsufficientFunds
	}
	return nil
}

func (r *LedgerRepository) credit(ctx context.Context, account ledger.Account, asset ledger.Asset, amount uint64) error {
	query := `
		INSERT INTO balances (account, asset, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, asset)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount`

	_, err := querier(ctx, r.db).ExecContext(ctx, query, account, asset, amount)
	return err
}
