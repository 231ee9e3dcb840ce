package events

import (
	"context"
	"sync"
)

// Capture records published events in memory. Used by tests and as a
// publisher when no broker is configured.
type Capture struct {
	mu          sync.Mutex
	Minted      []Minted
	Transferred []Transferred
	Exercised   []Exercised
	Cancelled   []Cancelled
	Expired     []Expired
}

// NewCapture creates an empty capture sink
func NewCapture() *Capture {
	return &Capture{}
}

// PublishMinted records a minted event
func (c *Capture) PublishMinted(_ context.Context, e Minted) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Minted = append(c.Minted, e)
	return nil
}

// PublishTransferred records a transferred event
func (c *Capture) PublishTransferred(_ context.Context, e Transferred) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transferred = append(c.Transferred, e)
	return nil
}

// PublishExercised records an exercised event
func (c *Capture) PublishExercised(_ context.Context, e Exercised) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Exercised = append(c.Exercised, e)
	return nil
}

// PublishCancelled records a cancelled event
func (c *Capture) PublishCancelled(_ context.Context, e Cancelled) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = append(c.Cancelled, e)
	return nil
}

// PublishExpired records an expired event
func (c *Capture) PublishExpired(_ context.Context, e Expired) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Expired = append(c.Expired, e)
	return nil
}
