package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionvault/internal/domain/option"
	"optionvault/internal/events"
	"optionvault/internal/repository/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakeLocker struct {
	acquired bool
	released bool
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.acquired, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	l.released = true
	return nil
}

func mintContract(t *testing.T, store *memory.Store, engine *option.Service, style option.Style, expiration time.Time) *option.Contract {
	t.Helper()

	require.NoError(t, store.Mint(context.Background(), "ATOM", "alice", 100))
	c, err := engine.Mint(context.Background(), option.MintParams{
		Type:             option.TypeCall,
		Style:            style,
		StrikePrice:      1000,
		Expiration:       expiration,
		AmountUnderlying: 100,
		UnderlyingAsset:  "ATOM",
		StrikeAsset:      "USDC",
		Writer:           "alice",
	})
	require.NoError(t, err)
	return c
}

func TestExpiryWorkerSweepsAmerican(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	engine := option.NewService(store, store, store, events.NewCapture(), fixedClock{now: now}, option.Config{
		EuropeanGrace: 24 * time.Hour,
	})

	c := mintContract(t, store, engine, option.StyleAmerican, now.Add(-time.Hour))

	worker := NewExpiryWorker(engine, store, nil, time.Minute, 100, 1000, true)
	require.NoError(t, worker.Run(context.Background()))

	got, err := engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, option.StatusExpired, got.Status)

	bal, err := store.Balance(context.Background(), "alice", "ATOM")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	stats := worker.Stats()
	assert.EqualValues(t, 1, stats.Runs)
	assert.EqualValues(t, 0, stats.Errors)
}

func TestExpiryWorkerLeavesEuropeanInGrace(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	engine := option.NewService(store, store, store, events.NewCapture(), fixedClock{now: now}, option.Config{
		EuropeanGrace: 24 * time.Hour,
	})

	c := mintContract(t, store, engine, option.StyleEuropean, now.Add(-time.Hour))

	worker := NewExpiryWorker(engine, store, nil, time.Minute, 100, 1000, true)
	require.NoError(t, worker.Run(context.Background()))

	got, err := engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, option.StatusActive, got.Status)
}

func TestExpiryWorkerSweepsEuropeanAfterGrace(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	engine := option.NewService(store, store, store, events.NewCapture(), fixedClock{now: now}, option.Config{
		EuropeanGrace: 24 * time.Hour,
	})

	c := mintContract(t, store, engine, option.StyleEuropean, now.Add(-48*time.Hour))

	worker := NewExpiryWorker(engine, store, nil, time.Minute, 100, 1000, true)
	require.NoError(t, worker.Run(context.Background()))

	got, err := engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, option.StatusExpired, got.Status)
}

func TestExpiryWorkerSkipsWhenLockHeld(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	engine := option.NewService(store, store, store, events.NewCapture(), fixedClock{now: now}, option.Config{})

	c := mintContract(t, store, engine, option.StyleAmerican, now.Add(-time.Hour))

	locker := &fakeLocker{acquired: false}
	worker := NewExpiryWorker(engine, store, locker, time.Minute, 100, 1000, true)
	require.NoError(t, worker.Run(context.Background()))

	got, err := engine.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, option.StatusActive, got.Status)
	assert.False(t, locker.released)
}

func TestExpiryWorkerReleasesLock(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()
	engine := option.NewService(store, store, store, events.NewCapture(), fixedClock{now: now}, option.Config{})

	locker := &fakeLocker{acquired: true}
	worker := NewExpiryWorker(engine, store, locker, time.Minute, 100, 1000, true)
	require.NoError(t, worker.Run(context.Background()))

	assert.True(t, locker.released)
}
