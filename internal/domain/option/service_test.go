package option_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionvault/internal/domain/ledger"
	"optionvault/internal/domain/option"
	"optionvault/internal/events"
	"optionvault/internal/repository/memory"
	"optionvault/pkg/errors"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store  *memory.Store
	sink   *events.Capture
	clock  *testClock
	engine *option.Service
	expiry time.Time
}

func newFixture(t *testing.T, cfg option.Config) *fixture {
	t.Helper()

	store := memory.NewStore()
	sink := events.NewCapture()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if cfg.EuropeanGrace == 0 {
		cfg.EuropeanGrace = 24 * time.Hour
	}

	return &fixture{
		store:  store,
		sink:   sink,
		clock:  clock,
		engine: option.NewService(store, store, store, sink, clock, cfg),
		expiry: clock.Now().Add(30 * 24 * time.Hour),
	}
}

func (f *fixture) fund(t *testing.T, account ledger.Account, asset ledger.Asset, amount uint64) {
	t.Helper()
	require.NoError(t, f.store.Mint(context.Background(), asset, account, amount))
}

func (f *fixture) balance(t *testing.T, account ledger.Account, asset ledger.Asset) uint64 {
	t.Helper()
	bal, err := f.store.Balance(context.Background(), account, asset)
	require.NoError(t, err)
	return bal
}

// mintCall writes a call on 10 ATOM struck at 100 USDC, token to bob.
func (f *fixture) mintCall(t *testing.T, style option.Style) *option.Contract {
	t.Helper()

	f.fund(t, "alice", "ATOM", 10)
	c, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypeCall,
		Style:            style,
		StrikePrice:      100,
		Expiration:       f.expiry,
		AmountUnderlying: 10,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
		Recipient:        "bob",
	})
	require.NoError(t, err)
	return c
}

// mintPut writes a put on 10 ATOM struck at 100 USDC, token to bob. The
// writer is funded for the full strike liability of 1000 USDC.
func (f *fixture) mintPut(t *testing.T, style option.Style) *option.Contract {
	t.Helper()

	f.fund(t, "alice", "USDC", 1000)
	c, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypePut,
		Style:            style,
		StrikePrice:      100,
		Expiration:       f.expiry,
		AmountUnderlying: 10,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
		Recipient:        "bob",
	})
	require.NoError(t, err)
	return c
}

func TestMintCall(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	assert.Equal(t, option.StatusActive, c.Status)
	assert.Equal(t, uint64(10), c.RemainingUnderlying)

	// Underlying moved into escrow, token minted to the recipient.
	assert.Equal(t, uint64(0), f.balance(t, "alice", "ATOM"))
	assert.Equal(t, uint64(10), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))
	assert.Equal(t, uint64(1), f.balance(t, "bob", c.TokenAsset()))

	got, err := f.engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	require.Len(t, f.sink.Minted, 1)
	assert.Equal(t, c.ID, f.sink.Minted[0].ContractID)
	assert.Equal(t, "alice", f.sink.Minted[0].Minter)
}

func TestMintPutEscrowsStrikeLiability(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintPut(t, option.StyleAmerican)

	// One strike price per unit of notional, so any sequence of partial
	// exercises stays funded.
	assert.Equal(t, uint64(0), f.balance(t, "alice", "USDC"))
	assert.Equal(t, uint64(1000), f.balance(t, c.EscrowStrikeAccount(), "USDC"))
	assert.Equal(t, uint64(0), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))
}

func TestMintPutStrikeLiabilityOverflow(t *testing.T) {
	f := newFixture(t, option.Config{})

	_, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypePut,
		Style:            option.StyleAmerican,
		StrikePrice:      1 << 40,
		Expiration:       f.expiry,
		AmountUnderlying: 1 << 40,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
	})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestMintDefaultsRecipientToWriter(t *testing.T) {
	f := newFixture(t, option.Config{})
	f.fund(t, "alice", "ATOM", 10)

	c, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypeCall,
		Style:            option.StyleAmerican,
		StrikePrice:      100,
		Expiration:       f.expiry,
		AmountUnderlying: 10,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.balance(t, "alice", c.TokenAsset()))
}

func TestMintValidation(t *testing.T) {
	f := newFixture(t, option.Config{})

	base := option.MintParams{
		Type:             option.TypeCall,
		Style:            option.StyleAmerican,
		StrikePrice:      100,
		Expiration:       f.expiry,
		AmountUnderlying: 10,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
	}

	tests := []struct {
		name   string
		mutate func(*option.MintParams)
		want   error
	}{
		{"bad type", func(p *option.MintParams) { p.Type = "straddle" }, errors.ErrInvalidOptionType},
		{"bad style", func(p *option.MintParams) { p.Style = "bermudan" }, errors.ErrInvalidInput},
		{"zero amount", func(p *option.MintParams) { p.AmountUnderlying = 0 }, errors.ErrInvalidAmount},
		{"missing writer", func(p *option.MintParams) { p.Writer = "" }, errors.ErrInvalidInput},
		{"missing underlying asset", func(p *option.MintParams) { p.UnderlyingAsset = "" }, errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := f.engine.Mint(context.Background(), p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMintInsufficientFundsRollsBack(t *testing.T) {
	f := newFixture(t, option.Config{})
	f.fund(t, "alice", "ATOM", 5)

	_, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypeCall,
		Style:            option.StyleAmerican,
		StrikePrice:      100,
		Expiration:       f.expiry,
		AmountUnderlying: 10,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
	})
	require.ErrorIs(t, err, errors.ErrInsufficientFunds)

	assert.Equal(t, uint64(5), f.balance(t, "alice", "ATOM"))
	assert.Empty(t, f.sink.Minted)
}

func TestMintChargesFee(t *testing.T) {
	f := newFixture(t, option.Config{
		MintFee:      3,
		FeeAsset:     "USDC",
		FeeRecipient: "treasury",
	})
	f.fund(t, "alice", "USDC", 10)
	f.mintCall(t, option.StyleAmerican)

	assert.Equal(t, uint64(3), f.balance(t, "treasury", "USDC"))
	assert.Equal(t, uint64(7), f.balance(t, "alice", "USDC"))
}

func TestMintFeeUnfundedRollsBackEscrow(t *testing.T) {
	f := newFixture(t, option.Config{
		MintFee:      3,
		FeeAsset:     "USDC",
		FeeRecipient: "treasury",
	})
	f.fund(t, "alice", "ATOM", 10)

	_, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypeCall,
		Style:            option.StyleAmerican,
		StrikePrice:      100,
		Expiration:       f.expiry,
		AmountUnderlying: 10,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
	})
	require.ErrorIs(t, err, errors.ErrInsufficientFunds)

	// The escrow leg from earlier in the transaction was rolled back too.
	assert.Equal(t, uint64(10), f.balance(t, "alice", "ATOM"))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	require.NoError(t, f.engine.Transfer(context.Background(), option.TransferParams{
		ContractID: c.ID,
		From:       "bob",
		To:         "carol",
	}))

	assert.Equal(t, uint64(0), f.balance(t, "bob", c.TokenAsset()))
	assert.Equal(t, uint64(1), f.balance(t, "carol", c.TokenAsset()))
	require.Len(t, f.sink.Transferred, 1)
}

func TestTransferByNonHolder(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	err := f.engine.Transfer(context.Background(), option.TransferParams{
		ContractID: c.ID,
		From:       "mallory",
		To:         "carol",
	})
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assert.Equal(t, uint64(1), f.balance(t, "bob", c.TokenAsset()))
}

func TestTransferAfterExpiration(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	f.clock.Set(f.expiry)
	err := f.engine.Transfer(context.Background(), option.TransferParams{
		ContractID: c.ID,
		From:       "bob",
		To:         "carol",
	})
	assert.ErrorIs(t, err, errors.ErrOptionExpired)
}

func TestExerciseCallPartialThenFull(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	// First tranche: 4 of 10 units at strike 100 costs 100*4/10 = 40.
	got, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got.RemainingUnderlying)
	assert.Equal(t, option.StatusActive, got.Status)

	assert.Equal(t, uint64(4), f.balance(t, "bob", "ATOM"))
	assert.Equal(t, uint64(160), f.balance(t, "bob", "USDC"))
	assert.Equal(t, uint64(40), f.balance(t, c.EscrowStrikeAccount(), "USDC"))

	// Second tranche prices against the reduced remaining: 100*6/6 = 100.
	got, err = f.engine.Exercise(context.Background(), c.ID, 6, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.RemainingUnderlying)
	assert.Equal(t, option.StatusSettled, got.Status)
	assert.True(t, got.Settled())

	assert.Equal(t, uint64(10), f.balance(t, "bob", "ATOM"))
	assert.Equal(t, uint64(60), f.balance(t, "bob", "USDC"))
	assert.Equal(t, uint64(140), f.balance(t, c.EscrowStrikeAccount(), "USDC"))
	assert.Equal(t, uint64(0), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))

	// Settlement burns the representative token.
	assert.Equal(t, uint64(0), f.balance(t, "bob", c.TokenAsset()))

	require.Len(t, f.sink.Exercised, 2)
}

func TestExercisePut(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintPut(t, option.StyleAmerican)
	f.fund(t, "bob", "ATOM", 10)

	got, err := f.engine.Exercise(context.Background(), c.ID, 10, "bob")
	require.NoError(t, err)
	assert.True(t, got.Settled())

	// Holder delivered the underlying and received the full strike amount;
	// the unspent liability stays in escrow for the writer.
	assert.Equal(t, uint64(0), f.balance(t, "bob", "ATOM"))
	assert.Equal(t, uint64(100), f.balance(t, "bob", "USDC"))
	assert.Equal(t, uint64(10), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))
	assert.Equal(t, uint64(900), f.balance(t, c.EscrowStrikeAccount(), "USDC"))
}

func TestExercisePutPartialThenFull(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintPut(t, option.StyleAmerican)
	f.fund(t, "bob", "ATOM", 10)

	got, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	require.NoError(t, err)
	assert.False(t, got.Settled())
	assert.Equal(t, uint64(6), got.RemainingUnderlying)
	assert.Equal(t, uint64(40), f.balance(t, "bob", "USDC"))

	// The second tranche prices against the remaining 6 and pays the full
	// strike again; the escrow funded at mint covers it.
	got, err = f.engine.Exercise(context.Background(), c.ID, 6, "bob")
	require.NoError(t, err)
	assert.True(t, got.Settled())
	assert.Equal(t, uint64(0), got.RemainingUnderlying)

	assert.Equal(t, uint64(140), f.balance(t, "bob", "USDC"))
	assert.Equal(t, uint64(0), f.balance(t, "bob", "ATOM"))
	assert.Equal(t, uint64(860), f.balance(t, c.EscrowStrikeAccount(), "USDC"))
	assert.Equal(t, uint64(10), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))
	assert.Equal(t, uint64(0), f.balance(t, "bob", c.TokenAsset()))

	// Expiry sweeps the delivered underlying and the unspent liability back
	// to the writer.
	f.clock.Set(f.expiry)
	_, err = f.engine.Expire(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), f.balance(t, "alice", "ATOM"))
	assert.Equal(t, uint64(860), f.balance(t, "alice", "USDC"))
}

func TestExerciseInvalidAmount(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	for _, amount := range []uint64{0, 11} {
		_, err := f.engine.Exercise(context.Background(), c.ID, amount, "bob")
		assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	}

	got, err := f.engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.RemainingUnderlying)
	assert.Equal(t, uint64(200), f.balance(t, "bob", "USDC"))
}

func TestExerciseByNonHolder(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "mallory", "USDC", 200)

	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "mallory")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestExerciseAfterTransfer(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	require.NoError(t, f.engine.Transfer(context.Background(), option.TransferParams{
		ContractID: c.ID,
		From:       "bob",
		To:         "carol",
	}))

	// The previous holder can no longer exercise, the new one can.
	f.fund(t, "bob", "USDC", 200)
	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	f.fund(t, "carol", "USDC", 200)
	_, err = f.engine.Exercise(context.Background(), c.ID, 4, "carol")
	assert.NoError(t, err)
}

func TestExerciseAmericanAfterExpiration(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	f.clock.Set(f.expiry)
	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	assert.ErrorIs(t, err, errors.ErrOptionExpired)
}

func TestExerciseEuropeanWindow(t *testing.T) {
	f := newFixture(t, option.Config{EuropeanGrace: 24 * time.Hour})
	c := f.mintCall(t, option.StyleEuropean)
	f.fund(t, "bob", "USDC", 200)

	// Before expiration: no early exercise.
	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	assert.ErrorIs(t, err, errors.ErrEarlyExerciseNotAllowed)

	// Inside the settlement window after expiration.
	f.clock.Set(f.expiry.Add(time.Hour))
	_, err = f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	assert.NoError(t, err)

	// After the window closes.
	f.clock.Set(f.expiry.Add(25 * time.Hour))
	_, err = f.engine.Exercise(context.Background(), c.ID, 2, "bob")
	assert.ErrorIs(t, err, errors.ErrOptionExpired)
}

func TestExerciseUnfundedStrikeRollsBack(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 10)

	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	require.ErrorIs(t, err, errors.ErrInsufficientFunds)

	got, err := f.engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.RemainingUnderlying)
	assert.Equal(t, uint64(10), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))
	assert.Equal(t, uint64(10), f.balance(t, "bob", "USDC"))
}

func TestCancelReturnsEscrowToWriter(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	got, err := f.engine.Cancel(context.Background(), c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, option.StatusCancelled, got.Status)

	assert.Equal(t, uint64(10), f.balance(t, "alice", "ATOM"))
	assert.Equal(t, uint64(0), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))

	require.Len(t, f.sink.Cancelled, 1)
	assert.Equal(t, uint64(10), f.sink.Cancelled[0].AmountReturned)
}

func TestCancelPartiallyExercised(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	require.NoError(t, err)

	_, err = f.engine.Cancel(context.Background(), c.ID, "alice")
	require.NoError(t, err)

	// Writer receives the unexercised underlying plus the strike paid so far.
	assert.Equal(t, uint64(6), f.balance(t, "alice", "ATOM"))
	assert.Equal(t, uint64(40), f.balance(t, "alice", "USDC"))
}

func TestCancelByNonWriter(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	_, err := f.engine.Cancel(context.Background(), c.ID, "bob")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestCancelTwice(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	_, err := f.engine.Cancel(context.Background(), c.ID, "alice")
	require.NoError(t, err)

	_, err = f.engine.Cancel(context.Background(), c.ID, "alice")
	assert.ErrorIs(t, err, errors.ErrOptionCancelled)
}

func TestCancelSettledContract(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	_, err := f.engine.Exercise(context.Background(), c.ID, 10, "bob")
	require.NoError(t, err)

	_, err = f.engine.Cancel(context.Background(), c.ID, "alice")
	assert.ErrorIs(t, err, errors.ErrOptionAlreadyExercised)
}

func TestCancelLeavesTokenInert(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	_, err := f.engine.Cancel(context.Background(), c.ID, "alice")
	require.NoError(t, err)

	// The token still exists but can no longer move or exercise.
	assert.Equal(t, uint64(1), f.balance(t, "bob", c.TokenAsset()))

	err = f.engine.Transfer(context.Background(), option.TransferParams{
		ContractID: c.ID,
		From:       "bob",
		To:         "carol",
	})
	assert.ErrorIs(t, err, errors.ErrOptionCancelled)

	f.fund(t, "bob", "USDC", 200)
	_, err = f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	assert.ErrorIs(t, err, errors.ErrOptionCancelled)
}

func TestExpireBeforeDeadline(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)

	_, err := f.engine.Expire(context.Background(), c.ID)
	assert.ErrorIs(t, err, errors.ErrOptionNotExpired)
}

func TestExpireSweepsEscrow(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	_, err := f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	require.NoError(t, err)

	f.clock.Set(f.expiry)
	got, err := f.engine.Expire(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, option.StatusExpired, got.Status)

	assert.Equal(t, uint64(6), f.balance(t, "alice", "ATOM"))
	assert.Equal(t, uint64(40), f.balance(t, "alice", "USDC"))
	require.Len(t, f.sink.Expired, 1)
}

func TestExpireEuropeanWaitsForGrace(t *testing.T) {
	f := newFixture(t, option.Config{EuropeanGrace: 24 * time.Hour})
	c := f.mintCall(t, option.StyleEuropean)

	f.clock.Set(f.expiry.Add(time.Hour))
	_, err := f.engine.Expire(context.Background(), c.ID)
	assert.ErrorIs(t, err, errors.ErrOptionNotExpired)

	f.clock.Set(f.expiry.Add(24 * time.Hour))
	_, err = f.engine.Expire(context.Background(), c.ID)
	assert.NoError(t, err)
}

func TestExpireSettledContractReturnsProceeds(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	_, err := f.engine.Exercise(context.Background(), c.ID, 10, "bob")
	require.NoError(t, err)

	f.clock.Set(f.expiry)
	_, err = f.engine.Expire(context.Background(), c.ID)
	require.NoError(t, err)

	// The strike the holder paid in reaches the writer.
	assert.Equal(t, uint64(100), f.balance(t, "alice", "USDC"))
}

func TestExerciseAfterExpireProcessed(t *testing.T) {
	f := newFixture(t, option.Config{})
	c := f.mintCall(t, option.StyleAmerican)
	f.fund(t, "bob", "USDC", 200)

	f.clock.Set(f.expiry)
	_, err := f.engine.Expire(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.engine.Exercise(context.Background(), c.ID, 4, "bob")
	assert.ErrorIs(t, err, errors.ErrOptionExpired)
}

func TestGetUnknownContract(t *testing.T) {
	f := newFixture(t, option.Config{})

	_, err := f.engine.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestConcurrentPartialExercises(t *testing.T) {
	f := newFixture(t, option.Config{})

	f.fund(t, "alice", "ATOM", 100)
	c, err := f.engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypeCall,
		Style:            option.StyleAmerican,
		StrikePrice:      1000,
		Expiration:       f.expiry,
		AmountUnderlying: 100,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
		Recipient:        "bob",
	})
	require.NoError(t, err)
	f.fund(t, "bob", "USDC", 1_000_000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.Exercise(context.Background(), c.ID, 5, "bob")
		}()
	}
	wg.Wait()

	got, err := f.engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.RemainingUnderlying)
	assert.Equal(t, option.StatusSettled, got.Status)

	// All escrowed underlying reached the holder, token burned exactly once.
	assert.Equal(t, uint64(100), f.balance(t, "bob", "ATOM"))
	assert.Equal(t, uint64(0), f.balance(t, "bob", c.TokenAsset()))
	assert.Equal(t, uint64(0), f.balance(t, c.EscrowUnderlyingAccount(), "ATOM"))
}
