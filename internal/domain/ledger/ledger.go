package ledger

import (
	"context"
	"strings"
)

// Account identifies a balance-holding account on the ledger.
type Account string

// EscrowAuthority is the sole account entitled to debit escrow accounts.
// It is held by the option lifecycle engine, never by callers.
const EscrowAuthority Account = "authority:escrow"

const escrowPrefix = "escrow:"

// IsEscrow reports whether an account is an engine-owned escrow account
func IsEscrow(a Account) bool {
	return strings.HasPrefix(string(a), escrowPrefix)
}

// String returns string representation
func (a Account) String() string {
	return string(a)
}

// Asset identifies a fungible asset type tracked by the ledger.
type Asset string

// String returns string representation
func (a Asset) String() string {
	return string(a)
}

// Ledger abstracts atomic balance moves between accounts. Implementations
// must apply each call atomically and be immediately consistent; failed
// calls must leave balances untouched.
type Ledger interface {
	// Transfer moves amount of asset from one account to another.
	// authorizedBy must be entitled to debit the source account.
	// Returns ErrInsufficientFunds or ErrUnauthorized on precondition failure.
	Transfer(ctx context.Context, from, to Account, asset Asset, amount uint64, authorizedBy Account) error

	// Mint credits newly created units of asset to an account.
	Mint(ctx context.Context, asset Asset, to Account, amount uint64) error

	// Burn destroys units of asset held by an account.
	Burn(ctx context.Context, asset Asset, from Account, amount uint64) error

	// Balance reports the current holdings of an account in asset.
	Balance(ctx context.Context, account Account, asset Asset) (uint64, error)
}
