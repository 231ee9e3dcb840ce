package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"optionvault/internal/domain/ledger"
	"optionvault/internal/domain/option"
	"optionvault/pkg/errors"
)

type balanceKey struct {
	account ledger.Account
	asset   ledger.Asset
}

type txMarker struct{}

// Store is an in-memory ledger and contract store with all-or-nothing
// transaction semantics. Used by unit tests and local runs; the postgres
// repositories are the production backend.
type Store struct {
	mu        sync.Mutex
	balances  map[balanceKey]uint64
	contracts map[uuid.UUID]*option.Contract
}

// Compile-time checks
var (
	_ option.Repository = (*Store)(nil)
	_ option.Atomic     = (*Store)(nil)
	_ ledger.Ledger     = (*Store)(nil)
)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		balances:  make(map[balanceKey]uint64),
		contracts: make(map[uuid.UUID]*option.Contract),
	}
}

// InTx runs fn atomically: on error every balance and contract mutation
// made inside fn is rolled back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balSnap := make(map[balanceKey]uint64, len(s.balances))
	for k, v := range s.balances {
		balSnap[k] = v
	}
	conSnap := make(map[uuid.UUID]*option.Contract, len(s.contracts))
	for id, c := range s.contracts {
		conSnap[id] = c
	}

	err := fn(context.WithValue(ctx, txMarker{}, true))
	if err != nil {
		s.balances = balSnap
		s.contracts = conSnap
	}
	return err
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

// run executes op under the store lock unless already inside a transaction,
// which holds the lock for its whole extent.
func (s *Store) run(ctx context.Context, op func() error) error {
	if inTx(ctx) {
		return op()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return op()
}

// Ledger implementation

// Transfer moves amount between accounts. Escrow accounts may only be
// debited under the escrow authority; every other account only by itself.
func (s *Store) Transfer(ctx context.Context, from, to ledger.Account, asset ledger.Asset, amount uint64, authorizedBy ledger.Account) error {
	return s.run(ctx, func() error {
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

		fromKey := balanceKey{from, asset}
		if s.balances[fromKey] < amount {
			return errors.ErrInsufficientFunds
		}
		s.balances[fromKey] -= amount
		s.balances[balanceKey{to, asset}] += amount
		return nil
	})
}

// Mint credits newly created units to an account
func (s *Store) Mint(ctx context.Context, asset ledger.Asset, to ledger.Account, amount uint64) error {
	return s.run(ctx, func() error {
		s.balances[balanceKey{to, asset}] += amount
		return nil
	})
}

// Burn destroys units held by an account
func (s *Store) Burn(ctx context.Context, asset ledger.Asset, from ledger.Account, amount uint64) error {
	return s.run(ctx, func() error {
		key := balanceKey{from, asset}
		if s.balances[key] < amount {
			return errors.ErrInsufficientFunds
		}
		s.balances[key] -= amount
		return nil
	})
}

// Balance reports current holdings; unknown accounts hold zero
func (s *Store) Balance(ctx context.Context, account ledger.Account, asset ledger.Asset) (uint64, error) {
	var bal uint64
	err := s.run(ctx, func() error {
		bal = s.balances[balanceKey{account, asset}]
		return nil
	})
	return bal, err
}

// Repository implementation

// Create stores a new contract record
func (s *Store) Create(ctx context.Context, c *option.Contract) error {
	return s.run(ctx, func() error {
		if _, ok := s.contracts[c.ID]; ok {
			return errors.ErrAlreadyExists
		}
		cp := *c
		s.contracts[c.ID] = &cp
		return nil
	})
}

// GetByID returns a copy of the contract record
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*option.Contract, error) {
	var out *option.Contract
	err := s.run(ctx, func() error {
		c, ok := s.contracts[id]
		if !ok {
			return errors.ErrNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces the stored contract record
func (s *Store) Update(ctx context.Context, c *option.Contract) error {
	return s.run(ctx, func() error {
		if _, ok := s.contracts[c.ID]; !ok {
			return errors.ErrNotFound
		}
		cp := *c
		s.contracts[c.ID] = &cp
		return nil
	})
}

// ListExpired returns contracts past expiration still awaiting expiry
// processing, oldest expiration first.
func (s *Store) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*option.Contract, error) {
	var out []*option.Contract
	err := s.run(ctx, func() error {
		for _, c := range s.contracts {
			if c.Status != option.StatusActive && c.Status != option.StatusSettled {
				continue
			}
			if c.Expiration.After(asOf) {
				continue
			}
			cp := *c
			out = append(out, &cp)
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].Expiration.Before(out[j].Expiration)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
