package tag

import (
	"context"
	"sync"
	"time"

	"taglink/status"
)

// Wait polls Status until it leaves PENDING or ctx is done. On
// cancellation it returns PENDING and ctx.Err(); the operation keeps
// running in the engine and the caller decides whether to Abort.
func (t *Tag) Wait(ctx context.Context, interval time.Duration) (status.Status, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if st := t.Status(); !st.IsPending() {
		return st, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return status.Pending, ctx.Err()
		case <-ticker.C:
			if st := t.Status(); !st.IsPending() {
				return st, nil
			}
		}
	}
}

// Op is a read or write started without waiting. It completes when the
// tag status leaves PENDING.
type Op struct {
	name string
	done chan struct{}

	mu     sync.Mutex
	status status.Status
}

func newOp(name string) *Op {
	return &Op{name: name, done: make(chan struct{}), status: status.Pending}
}

func (o *Op) finish(st status.Status) {
	o.mu.Lock()
	o.status = st
	o.mu.Unlock()
	close(o.done)
}

// Done is closed when the operation has finished.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Status returns PENDING until the operation finishes, then its final status.
func (o *Op) Status() status.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Err returns the final status as an error, nil for OK or while pending.
func (o *Op) Err() error {
	st := o.Status()
	if st.IsPending() {
		return nil
	}
	return status.Err(o.name, st)
}

// Wait blocks until the operation finishes and returns its status.
func (o *Op) Wait() status.Status {
	<-o.done
	return o.Status()
}

// ReadAsync starts a read and polls for its completion in the background.
// Cancelling ctx aborts the read and the Op finishes with ERR_ABORT.
func (t *Tag) ReadAsync(ctx context.Context, interval time.Duration) *Op {
	return t.async(ctx, "read", t.Read, interval)
}

// WriteAsync starts a write and polls for its completion in the background.
// Cancelling ctx aborts the write and the Op finishes with ERR_ABORT.
func (t *Tag) WriteAsync(ctx context.Context, interval time.Duration) *Op {
	return t.async(ctx, "write", t.Write, interval)
}

func (t *Tag) async(ctx context.Context, name string, start func(time.Duration) status.Status, interval time.Duration) *Op {
	op := newOp(name)
	rc := start(0)
	if !rc.IsPending() {
		op.finish(rc)
		return op
	}

	go func() {
		st, err := t.Wait(ctx, interval)
		if err != nil {
			t.Abort()
			st = status.ErrAbort
		}
		op.finish(st)
	}()
	return op
}
