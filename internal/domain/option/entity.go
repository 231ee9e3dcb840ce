package option

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/google/uuid"

	"optionvault/internal/domain/ledger"
)

// Type defines call or put
type Type string

const (
	TypeCall Type = "call"
	TypePut  Type = "put"
)

// Valid checks if the option type is valid
func (t Type) Valid() bool {
	return t == TypeCall || t == TypePut
}

// String returns string representation
func (t Type) String() string {
	return string(t)
}

// Style defines when the option may be exercised
type Style string

const (
	StyleAmerican Style = "american"
	StyleEuropean Style = "european"
)

// Valid checks if the exercise style is valid
func (s Style) Valid() bool {
	return s == StyleAmerican || s == StyleEuropean
}

// String returns string representation
func (s Style) String() string {
	return string(s)
}

// Status defines the contract lifecycle status
type Status string

const (
	StatusActive    Status = "active"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid checks if the status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSettled, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further settlement activity is possible
func (s Status) IsTerminal() bool {
	return s == StatusSettled || s == StatusCancelled || s == StatusExpired
}

// Contract represents a single tokenized options contract. Ownership is not
// a field here: whoever holds the representative token on the ledger owns
// the option.
type Contract struct {
	ID uuid.UUID `db:"id"`

	// Terms
	Type        Type      `db:"type"`
	Style       Style     `db:"style"`
	StrikePrice uint64    `db:"strike_price"` // strike asset per full notional, base units
	Expiration  time.Time `db:"expiration"`

	// Assets
	UnderlyingAsset ledger.Asset `db:"underlying_asset"`
	StrikeAsset     ledger.Asset `db:"strike_asset"`

	// Notional
	AmountUnderlying    uint64 `db:"amount_underlying"`    // original minted notional
	RemainingUnderlying uint64 `db:"remaining_underlying"` // not yet settled, never increases

	Writer ledger.Account `db:"writer"` // original minter, receives residual escrow
	Status Status         `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Settled returns true once the full notional has been exercised
func (c *Contract) Settled() bool {
	return c.RemainingUnderlying == 0
}

// ExpiredAt returns true if the contract has reached its expiration
func (c *Contract) ExpiredAt(now time.Time) bool {
	return !now.Before(c.Expiration)
}

// TokenAsset is the ledger asset for the representative token. Exactly one
// unit exists per contract while the option is tradeable.
func (c *Contract) TokenAsset() ledger.Asset {
	return ledger.Asset(fmt.Sprintf("option:%s", c.ID))
}

// EscrowUnderlyingAccount holds the escrowed underlying leg for this contract
func (c *Contract) EscrowUnderlyingAccount() ledger.Account {
	return ledger.Account(fmt.Sprintf("escrow:underlying:%s", c.ID))
}

// EscrowStrikeAccount holds the escrowed strike-asset leg for this contract
func (c *Contract) EscrowStrikeAccount() ledger.Account {
	return ledger.Account(fmt.Sprintf("escrow:strike:%s", c.ID))
}

// ProportionalStrike computes the strike-asset amount due for exercising
// `amount` units of notional. The denominator is the remaining notional
// before the decrement, so each partial exercise prices against what is
// left, not against the original total. Integer division truncates.
// Amounts beyond the remaining notional price at 0; such an exercise is
// rejected before any settlement math applies.
func (c *Contract) ProportionalStrike(amount uint64) uint64 {
	if c.RemainingUnderlying == 0 || amount > c.RemainingUnderlying {
		return 0
	}
	// 128-bit intermediate so strike*amount cannot overflow. The quotient
	// fits in 64 bits because amount never exceeds the denominator.
	hi, lo := bits.Mul64(c.StrikePrice, amount)
	q, _ := bits.Div64(hi, lo, c.RemainingUnderlying)
	return q
}

// StrikeEscrowLiability is the strike-asset amount a put escrows at mint.
// Each partial exercise prices against the shrinking remaining notional and
// can owe up to the full strike price, so the escrow holds one strike price
// per unit of notional; the unspent remainder returns to the writer when
// the contract is cancelled or expired. ok is false when the product
// overflows uint64.
func (c *Contract) StrikeEscrowLiability() (liability uint64, ok bool) {
	hi, lo := bits.Mul64(c.StrikePrice, c.AmountUnderlying)
	return lo, hi == 0
}
