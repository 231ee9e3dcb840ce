package workers

import (
	"context"
	"sync"
	"time"

	"optionvault/pkg/logger"
)

// Worker is a background task the scheduler runs on a fixed interval
type Worker interface {
	// Name identifies the worker in logs and metrics
	Name() string

	// Run performs one iteration of work and returns. The scheduler calls
	// it repeatedly, pausing Interval() between iterations.
	Run(ctx context.Context) error

	// Interval returns the pause between iterations
	Interval() time.Duration

	// Enabled reports whether the scheduler should run this worker
	Enabled() bool
}

// RunStats is a snapshot of a worker's run accounting
type RunStats struct {
	LastRun   time.Time
	LastError error
	Runs      int64
	Errors    int64
}

// BaseWorker carries the name, interval and run accounting shared by every
// worker. Concrete workers embed it and implement Run.
type BaseWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	log      *logger.Logger

	statsMu   sync.RWMutex
	lastRun   time.Time
	lastError error
	runs      int64
	errors    int64
}

// NewBaseWorker creates a base worker. The enabled flag is fixed for the
// worker's lifetime.
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

// Name returns the worker name
func (w *BaseWorker) Name() string {
	return w.name
}

// Interval returns the run interval
func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

// Enabled returns whether the worker is enabled
func (w *BaseWorker) Enabled() bool {
	return w.enabled
}

// Log returns the logger
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Stats returns a snapshot of the run accounting
func (w *BaseWorker) Stats() RunStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	return RunStats{
		LastRun:   w.lastRun,
		LastError: w.lastError,
		Runs:      w.runs,
		Errors:    w.errors,
	}
}

// RecordRun records a successful iteration and clears the last error
func (w *BaseWorker) RecordRun() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.lastRun = time.Now()
	w.runs++
	w.lastError = nil
}

// RecordError records a failed iteration
func (w *BaseWorker) RecordError(err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.lastRun = time.Now()
	w.runs++
	w.errors++
	w.lastError = err
}
