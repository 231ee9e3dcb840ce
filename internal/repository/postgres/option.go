package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"optionvault/internal/domain/option"
	"optionvault/pkg/errors"
)

// Compile-time check
var _ option.Repository = (*OptionRepository)(nil)

// OptionRepository implements option.Repository using sqlx
type OptionRepository struct {
	db *sqlx.DB
}

// NewOptionRepository creates a new contract repository
func NewOptionRepository(db *sqlx.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

const contractColumns = `
	id, type, style, strike_price, expiration,
	underlying_asset, strike_asset,
	amount_underlying, remaining_underlying,
	writer, status, created_at, updated_at`

// Create inserts a new contract record
func (r *OptionRepository) Create(ctx context.Context, c *option.Contract) error {
	query := `
		INSERT INTO option_contracts (` + contractColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.Type, c.Style, c.StrikePrice, c.Expiration,
		c.UnderlyingAsset, c.StrikeAsset,
		c.AmountUnderlying, c.RemainingUnderlying,
		c.Writer, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetByID retrieves a contract by ID. Inside a transaction the row is
// locked so concurrent lifecycle operations on one contract serialize at
// the database as well.
func (r *OptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*option.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM option_contracts WHERE id = $1`
	if txFrom(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var c option.Contract
	err := querier(ctx, r.db).GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update persists the mutable settlement state of a contract
func (r *OptionRepository) Update(ctx context.Context, c *option.Contract) error {
	query := `
		UPDATE option_contracts
		SET remaining_underlying = $2, status = $3, updated_at = $4
		WHERE id = $1`

	res, err := querier(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.RemainingUnderlying, c.Status, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ListExpired returns contracts past expiration still awaiting expiry
// processing, oldest expiration first.
func (r *OptionRepository) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*option.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM option_contracts
		WHERE expiration <= $1 AND status IN ('active', 'settled')
		ORDER BY expiration ASC
		LIMIT $2`

	var contracts []*option.Contract
	if err := querier(ctx, r.db).SelectContext(ctx, &contracts, query, asOf, limit); err != nil {
		return nil, err
	}
	return contracts, nil
}
