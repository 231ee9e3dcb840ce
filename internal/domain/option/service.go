package option

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"optionvault/internal/domain/ledger"
	"optionvault/internal/events"
	"optionvault/internal/metrics"
	"optionvault/pkg/errors"
	"optionvault/pkg/logger"
)

// Publisher emits lifecycle events. Emission is fire-and-forget: failures
// are logged and never roll back a committed operation.
type Publisher interface {
	PublishMinted(ctx context.Context, e events.Minted) error
	PublishTransferred(ctx context.Context, e events.Transferred) error
	PublishExercised(ctx context.Context, e events.Exercised) error
	PublishCancelled(ctx context.Context, e events.Cancelled) error
	PublishExpired(ctx context.Context, e events.Expired) error
}

// Config contains engine settings
type Config struct {
	// EuropeanGrace is the window after expiration during which a
	// european-style option may still be exercised.
	EuropeanGrace time.Duration

	// MintFee is a flat fee charged on mint when non-zero, unrelated to
	// notional. Paid in FeeAsset to FeeRecipient.
	MintFee      uint64
	FeeAsset     ledger.Asset
	FeeRecipient ledger.Account
}

// Service is the option lifecycle engine. It owns all invariant checks and
// settlement arithmetic; escrow accounts are only ever debited through it,
// under the ledger's escrow authority.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	atomic Atomic
	events Publisher
	clock  Clock
	cfg    Config
	log    *logger.Logger

	// Serializes operations per contract so concurrent exercises observe a
	// consistent remaining notional. Operations on different contracts do
	// not contend. Entries are dropped once a contract reaches a terminal
	// status.
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewService constructs the lifecycle engine
func NewService(repo Repository, led ledger.Ledger, atomic Atomic, pub Publisher, clock Clock, cfg Config) *Service {
	if clock == nil {
		clock = RealClock()
	}
	return &Service{
		repo:   repo,
		ledger: led,
		atomic: atomic,
		events: pub,
		clock:  clock,
		cfg:    cfg,
		log:    logger.Get().With("component", "option_engine"),
	}
}

// MintParams describes a contract to be written
type MintParams struct {
	Type             Type
	Style            Style
	StrikePrice      uint64
	Expiration       time.Time
	AmountUnderlying uint64
	UnderlyingAsset  ledger.Asset
	StrikeAsset      ledger.Asset
	Writer           ledger.Account
	// Recipient receives the representative token. Defaults to the writer.
	Recipient ledger.Account
}

// TransferParams moves the representative token between holders
type TransferParams struct {
	ContractID uuid.UUID
	From       ledger.Account
	To         ledger.Account
}

// Mint writes a new contract: funds its escrow from the writer, mints one
// unit of the representative token and charges the optional flat fee.
// An already-past expiration is accepted; such a contract can only be
// expired or cancelled.
func (s *Service) Mint(ctx context.Context, p MintParams) (*Contract, error) {
	start := time.Now()

	c, err := s.mint(ctx, p)
	s.observe("mint", start, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "minted", s.events.PublishMinted(ctx, events.Minted{
		ContractID:       c.ID,
		Minter:           c.Writer.String(),
		OptionType:       c.Type.String(),
		StrikePrice:      c.StrikePrice,
		Expiration:       c.Expiration,
		AmountUnderlying: c.AmountUnderlying,
	}))

	s.log.Infow("contract minted",
		"contract_id", c.ID,
		"type", c.Type,
		"style", c.Style,
		"strike", c.StrikePrice,
		"amount", c.AmountUnderlying,
		"writer", c.Writer,
	)
	return c, nil
}

func (s *Service) mint(ctx context.Context, p MintParams) (*Contract, error) {
	if !p.Type.Valid() {
		return nil, errors.ErrInvalidOptionType
	}
	if !p.Style.Valid() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "exercise style")
	}
	if p.AmountUnderlying == 0 {
		return nil, errors.ErrInvalidAmount
	}
	if p.Writer == "" || p.UnderlyingAsset == "" || p.StrikeAsset == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "writer and assets are required")
	}

	recipient := p.Recipient
	if recipient == "" {
		recipient = p.Writer
	}

	now := s.clock.Now()
	c := &Contract{
		ID:                  uuid.New(),
		Type:                p.Type,
		Style:               p.Style,
		StrikePrice:         p.StrikePrice,
		Expiration:          p.Expiration,
		UnderlyingAsset:     p.UnderlyingAsset,
		StrikeAsset:         p.StrikeAsset,
		AmountUnderlying:    p.AmountUnderlying,
		RemainingUnderlying: p.AmountUnderlying,
		Writer:              p.Writer,
		Status:              StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := s.atomic.InTx(ctx, func(ctx context.Context) error {
		// Escrow the leg the contract may have to pay out: the underlying
		// for a call, the worst-case strike liability for a put.
		switch c.Type {
		case TypeCall:
			if err := s.ledger.Transfer(ctx, c.Writer, c.EscrowUnderlyingAccount(), c.UnderlyingAsset, c.AmountUnderlying, c.Writer); err != nil {
				return errors.Wrap(err, "escrow underlying")
			}
		case TypePut:
			liability, ok := c.StrikeEscrowLiability()
			if !ok {
				return errors.Wrap(errors.ErrInvalidInput, "strike liability overflows")
			}
			if err := s.ledger.Transfer(ctx, c.Writer, c.EscrowStrikeAccount(), c.StrikeAsset, liability, c.Writer); err != nil {
				return errors.Wrap(err, "escrow strike liability")
			}
		}

		if err := s.ledger.Mint(ctx, c.TokenAsset(), recipient, 1); err != nil {
			return errors.Wrap(err, "mint representative token")
		}

		if s.cfg.MintFee > 0 && s.cfg.FeeRecipient != "" {
			if err := s.ledger.Transfer(ctx, c.Writer, s.cfg.FeeRecipient, s.cfg.FeeAsset, s.cfg.MintFee, c.Writer); err != nil {
				return errors.Wrap(err, "mint fee")
			}
		}

		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Transfer moves the representative token to a new holder. Trading stops at
// expiration regardless of exercise style.
func (s *Service) Transfer(ctx context.Context, p TransferParams) error {
	start := time.Now()
	err := s.transfer(ctx, p)
	s.observe("transfer", start, err)
	if err != nil {
		return err
	}

	s.publish(ctx, "transferred", s.events.PublishTransferred(ctx, events.Transferred{
		ContractID: p.ContractID,
		From:       p.From.String(),
		To:         p.To.String(),
		Amount:     1,
	}))
	return nil
}

func (s *Service) transfer(ctx context.Context, p TransferParams) error {
	mu := s.lock(p.ContractID)
	defer mu.Unlock()

	return s.atomic.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, p.ContractID)
		if err != nil {
			return err
		}
		if err := statusGate(c); err != nil {
			return err
		}
		if c.ExpiredAt(s.clock.Now()) {
			return errors.ErrOptionExpired
		}
		// The record itself is read-only here; the ledger enforces that the
		// source holder authorizes the move and actually holds the token.
		return s.ledger.Transfer(ctx, p.From, p.To, c.TokenAsset(), 1, p.From)
	})
}

// Exercise settles `amount` units of notional for the current token holder.
// A partial exercise leaves the contract active; exercising the final unit
// settles the contract and burns the representative token.
func (s *Service) Exercise(ctx context.Context, contractID uuid.UUID, amount uint64, exerciser ledger.Account) (*Contract, error) {
	start := time.Now()
	c, err := s.exercise(ctx, contractID, amount, exerciser)
	s.observe("exercise", start, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "exercised", s.events.PublishExercised(ctx, events.Exercised{
		ContractID:  c.ID,
		Exerciser:   exerciser.String(),
		OptionType:  c.Type.String(),
		StrikePrice: c.StrikePrice,
		Expiration:  c.Expiration,
	}))

	s.log.Infow("contract exercised",
		"contract_id", c.ID,
		"amount", amount,
		"remaining", c.RemainingUnderlying,
		"settled", c.Settled(),
	)
	return c, nil
}

func (s *Service) exercise(ctx context.Context, contractID uuid.UUID, amount uint64, exerciser ledger.Account) (*Contract, error) {
	mu := s.lock(contractID)
	defer mu.Unlock()

	var out *Contract
	err := s.atomic.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		now := s.clock.Now()

		if err := statusGate(c); err != nil {
			return err
		}
		if !now.Before(s.settlementDeadline(c)) {
			return errors.ErrOptionExpired
		}
		if c.Settled() {
			return errors.ErrOptionAlreadyExercised
		}
		if amount == 0 || amount > c.RemainingUnderlying {
			return errors.ErrInvalidAmount
		}
		// European options settle only at or after expiration.
		if c.Style == StyleEuropean && now.Before(c.Expiration) {
			return errors.ErrEarlyExerciseNotAllowed
		}

		// Only the holder of the representative token may exercise.
		bal, err := s.ledger.Balance(ctx, exerciser, c.TokenAsset())
		if err != nil {
			return err
		}
		if bal == 0 {
			return errors.ErrUnauthorized
		}

		strikeDue := c.ProportionalStrike(amount)

		switch c.Type {
		case TypeCall:
			// Holder buys the underlying at the strike.
			if err := s.ledger.Transfer(ctx, exerciser, c.EscrowStrikeAccount(), c.StrikeAsset, strikeDue, exerciser); err != nil {
				return errors.Wrap(err, "pay strike")
			}
			if err := s.ledger.Transfer(ctx, c.EscrowUnderlyingAccount(), exerciser, c.UnderlyingAsset, amount, ledger.EscrowAuthority); err != nil {
				return errors.Wrap(err, "release underlying")
			}
		case TypePut:
			// Holder sells the underlying at the strike.
			if err := s.ledger.Transfer(ctx, exerciser, c.EscrowUnderlyingAccount(), c.UnderlyingAsset, amount, exerciser); err != nil {
				return errors.Wrap(err, "deliver underlying")
			}
			if err := s.ledger.Transfer(ctx, c.EscrowStrikeAccount(), exerciser, c.StrikeAsset, strikeDue, ledger.EscrowAuthority); err != nil {
				return errors.Wrap(err, "release strike")
			}
		}

		c.RemainingUnderlying -= amount
		if c.RemainingUnderlying == 0 {
			c.Status = StatusSettled
			if err := s.ledger.Burn(ctx, c.TokenAsset(), exerciser, 1); err != nil {
				return errors.Wrap(err, "burn representative token")
			}
		}
		c.UpdatedAt = now

		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.forget(contractID, out)
	return out, nil
}

// Cancel voids an unsettled contract and sweeps both escrow legs back to
// the writer. Only the writer may cancel; the cancelled status is terminal,
// so a second cancel, exercise or expiry is rejected. The representative
// token is left outstanding but permanently inert.
func (s *Service) Cancel(ctx context.Context, contractID uuid.UUID, actor ledger.Account) (*Contract, error) {
	start := time.Now()
	c, returned, err := s.cancel(ctx, contractID, actor)
	s.observe("cancel", start, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "cancelled", s.events.PublishCancelled(ctx, events.Cancelled{
		ContractID:     c.ID,
		Creator:        c.Writer.String(),
		OptionType:     c.Type.String(),
		AmountReturned: returned,
	}))

	s.log.Infow("contract cancelled", "contract_id", c.ID, "returned", returned)
	return c, nil
}

func (s *Service) cancel(ctx context.Context, contractID uuid.UUID, actor ledger.Account) (*Contract, uint64, error) {
	mu := s.lock(contractID)
	defer mu.Unlock()

	var (
		out      *Contract
		returned uint64
	)
	err := s.atomic.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		if err := statusGate(c); err != nil {
			return err
		}
		if c.Settled() {
			return errors.ErrOptionAlreadyExercised
		}
		if actor != c.Writer {
			return errors.ErrUnauthorized
		}

		returned, err = s.sweepEscrow(ctx, c)
		if err != nil {
			return err
		}

		c.Status = StatusCancelled
		c.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	s.forget(contractID, out)
	return out, returned, nil
}

// Expire sweeps residual escrow back to the writer once the settlement
// window has closed. Anyone may trigger it; the proceeds always go to the
// writer. Works on both unsettled and fully settled contracts, since
// settled escrow still holds the writer's proceeds.
func (s *Service) Expire(ctx context.Context, contractID uuid.UUID) (*Contract, error) {
	start := time.Now()
	c, err := s.expire(ctx, contractID)
	s.observe("expire", start, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "expired", s.events.PublishExpired(ctx, events.Expired{
		ContractID:  c.ID,
		OptionType:  c.Type.String(),
		StrikePrice: c.StrikePrice,
		Expiration:  c.Expiration,
	}))

	s.log.Infow("contract expired", "contract_id", c.ID)
	return c, nil
}

func (s *Service) expire(ctx context.Context, contractID uuid.UUID) (*Contract, error) {
	mu := s.lock(contractID)
	defer mu.Unlock()

	var out *Contract
	err := s.atomic.InTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		if err := statusGate(c); err != nil {
			return err
		}
		// European holders keep their exercise window after expiration, so
		// expiry processing waits until that window closes.
		if s.clock.Now().Before(s.settlementDeadline(c)) {
			return errors.ErrOptionNotExpired
		}

		if _, err := s.sweepEscrow(ctx, c); err != nil {
			return err
		}

		c.Status = StatusExpired
		c.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.forget(contractID, out)
	return out, nil
}

// Get returns a contract record by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Contract, error) {
	return s.repo.GetByID(ctx, id)
}

// sweepEscrow returns both escrow legs to the writer and reports the amount
// returned on the leg the writer originally funded.
func (s *Service) sweepEscrow(ctx context.Context, c *Contract) (uint64, error) {
	under, err := s.ledger.Balance(ctx, c.EscrowUnderlyingAccount(), c.UnderlyingAsset)
	if err != nil {
		return 0, err
	}
	if under > 0 {
		if err := s.ledger.Transfer(ctx, c.EscrowUnderlyingAccount(), c.Writer, c.UnderlyingAsset, under, ledger.EscrowAuthority); err != nil {
			return 0, errors.Wrap(err, "return underlying")
		}
	}

	strike, err := s.ledger.Balance(ctx, c.EscrowStrikeAccount(), c.StrikeAsset)
	if err != nil {
		return 0, err
	}
	if strike > 0 {
		if err := s.ledger.Transfer(ctx, c.EscrowStrikeAccount(), c.Writer, c.StrikeAsset, strike, ledger.EscrowAuthority); err != nil {
			return 0, errors.Wrap(err, "return strike funds")
		}
	}

	if c.Type == TypePut {
		return strike, nil
	}
	return under, nil
}

// settlementDeadline is the instant after which no exercise can succeed:
// expiration for american options, expiration plus the grace window for
// european options.
func (s *Service) settlementDeadline(c *Contract) time.Time {
	if c.Style == StyleEuropean {
		return c.Expiration.Add(s.cfg.EuropeanGrace)
	}
	return c.Expiration
}

// statusGate rejects operations on contracts in a terminal administrative
// state. Settled contracts pass; callers decide how to treat settlement.
func statusGate(c *Contract) error {
	switch c.Status {
	case StatusCancelled:
		return errors.ErrOptionCancelled
	case StatusExpired:
		return errors.ErrOptionExpired
	}
	return nil
}

func (s *Service) lock(id uuid.UUID) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// forget drops a contract's mutex once it has reached a terminal status.
// Called with the mutex still held; a later operation on the same contract
// allocates a fresh mutex and fails the status gate.
func (s *Service) forget(id uuid.UUID, c *Contract) {
	if c != nil && c.Status.IsTerminal() {
		s.locks.Delete(id)
	}
}

func (s *Service) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.OptionOperations.WithLabelValues(op, status).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *Service) publish(ctx context.Context, event string, err error) {
	if err != nil {
		s.log.Warnw("failed to publish event", "event", event, "error", err)
	}
}
