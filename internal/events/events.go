package events

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle event payloads published to the options event stream. Consumers
// subscribe read-only; delivery is fire-and-forget.

// Minted is emitted when a new contract is written and its escrow funded
type Minted struct {
	ContractID       uuid.UUID `json:"contract_id"`
	Minter           string    `json:"minter"`
	OptionType       string    `json:"option_type"`
	StrikePrice      uint64    `json:"strike_price"`
	Expiration       time.Time `json:"expiration"`
	AmountUnderlying uint64    `json:"amount_underlying"`
}

// Transferred is emitted when the representative token changes hands
type Transferred struct {
	ContractID uuid.UUID `json:"contract_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Amount     uint64    `json:"amount"`
}

// Exercised is emitted on each full or partial exercise
type Exercised struct {
	ContractID  uuid.UUID `json:"contract_id"`
	Exerciser   string    `json:"exerciser"`
	OptionType  string    `json:"option_type"`
	StrikePrice uint64    `json:"strike_price"`
	Expiration  time.Time `json:"expiration"`
}

// Cancelled is emitted when the writer cancels before full settlement
type Cancelled struct {
	ContractID     uuid.UUID `json:"contract_id"`
	Creator        string    `json:"creator"`
	OptionType     string    `json:"option_type"`
	AmountReturned uint64    `json:"amount_returned"`
}

// Expired is emitted when escrow is swept back to the writer at expiry
type Expired struct {
	ContractID  uuid.UUID `json:"contract_id"`
	OptionType  string    `json:"option_type"`
	StrikePrice uint64    `json:"strike_price"`
	Expiration  time.Time `json:"expiration"`
}
