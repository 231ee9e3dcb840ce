package option

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for contract record access
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	Update(ctx context.Context, c *Contract) error

	// ListExpired returns contracts past expiration that still need expiry
	// processing (status active or settled).
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*Contract, error)
}

// Atomic runs fn as a single all-or-nothing unit. Repository and ledger
// calls made with the ctx passed to fn commit together or not at all.
type Atomic interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
