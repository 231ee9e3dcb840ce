package workers

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"optionvault/internal/domain/option"
	"optionvault/internal/metrics"
	"optionvault/pkg/errors"
)

const expiryLockKey = "expiry_sweep"

// Locker provides a distributed lock so only one instance sweeps at a time
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// ExpiryWorker sweeps contracts whose expiration has passed: residual escrow
// goes back to the writer and the contract is marked expired. European
// contracts inside their post-expiration exercise window are left alone and
// picked up on a later pass.
type ExpiryWorker struct {
	*BaseWorker

	engine    *option.Service
	repo      option.Repository
	locker    Locker // optional, may be nil for single-instance deployments
	batchSize int
	limiter   *rate.Limiter
}

// NewExpiryWorker creates the expiry sweep worker
func NewExpiryWorker(engine *option.Service, repo option.Repository, locker Locker, interval time.Duration, batchSize int, sweepsPerSecond float64, enabled bool) *ExpiryWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	if sweepsPerSecond <= 0 {
		sweepsPerSecond = 25
	}
	return &ExpiryWorker{
		BaseWorker: NewBaseWorker("expiry_sweep", interval, enabled),
		engine:     engine,
		repo:       repo,
		locker:     locker,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(rate.Limit(sweepsPerSecond), 1),
	}
}

// Run performs one sweep pass
func (w *ExpiryWorker) Run(ctx context.Context) error {
	start := time.Now()

	if w.locker != nil {
		acquired, err := w.locker.AcquireLock(ctx, expiryLockKey, w.Interval())
		if err != nil {
			w.RecordError(err)
			return errors.Wrap(err, "failed to acquire expiry sweep lock")
		}
		if !acquired {
			w.Log().Debug("Expiry sweep lock held elsewhere, skipping pass")
			return nil
		}
		defer func() {
			if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), expiryLockKey); err != nil {
				w.Log().Warnw("failed to release expiry sweep lock", "error", err)
			}
		}()
	}

	swept, err := w.sweep(ctx)
	if err != nil {
		w.RecordError(err)
		return err
	}

	w.RecordRun()
	if swept > 0 {
		w.Log().Infow("expiry sweep completed", "swept", swept, "duration", time.Since(start))
	}
	return nil
}

func (w *ExpiryWorker) sweep(ctx context.Context) (int, error) {
	candidates, err := w.repo.ListExpired(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list expired contracts")
	}

	swept := 0
	for _, c := range candidates {
		if err := w.limiter.Wait(ctx); err != nil {
			return swept, err
		}

		_, err := w.engine.Expire(ctx, c.ID)
		switch {
		case err == nil:
			swept++
			metrics.ExpiredContractsSwept.Inc()
		case errors.Is(err, errors.ErrOptionNotExpired):
			// European contract still inside its exercise window.
		case errors.Is(err, errors.ErrOptionExpired), errors.Is(err, errors.ErrOptionCancelled):
			// Already terminal, raced with another actor.
		default:
			w.Log().Errorw("failed to expire contract", "contract_id", c.ID, "error", err)
		}
	}
	return swept, nil
}
