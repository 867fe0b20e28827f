package tag

import (
	"context"
	"time"

	"taglink/engine"
	"taglink/status"
)

// DefaultPollInterval is how often Wait polls when no interval is given.
const DefaultPollInterval = 10 * time.Millisecond

// With creates a tag, waits for creation to finish, runs fn and destroys
// the tag on every exit path, panics included. ctx bounds the creation
// wait; timeout, when positive, bounds it too.
func With(ctx context.Context, eng engine.Engine, attributes string, timeout time.Duration, fn func(*Tag) error) error {
	t, err := Create(eng, attributes, 0)
	if err != nil {
		return err
	}
	defer t.Destroy()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	st, err := t.Wait(ctx, DefaultPollInterval)
	if err != nil {
		t.Abort()
		return status.Err("create", status.ErrTimeout)
	}
	if err := status.Err("create", st); err != nil {
		return err
	}
	return fn(t)
}

// Locked runs fn with the tag's engine mutex held.
func (t *Tag) Locked(fn func() error) error {
	if err := status.Err("lock", t.Lock()); err != nil {
		return err
	}
	defer t.Unlock()
	return fn()
}
