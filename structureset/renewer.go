package structureset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jathurchan/proknow/clock"
	"github.com/jathurchan/proknow/logger"
	"github.com/jathurchan/proknow/types"
)

// DefaultRenewalBuffer is how long before expiry a lock is renewed.
const DefaultRenewalBuffer = 30 * time.Second

// Renewer keeps a draft lock alive in the background. Each tick issues one
// renewal and re-arms the timer from the TTL of the lock the server returned.
//
// A renewal failure does not stop the renewer: it is logged, counted and kept
// in Err, and the next tick tries again. Callers learn that the lock is gone
// from the error of their next mutation.
type Renewer struct {
	handle Renewable
	buffer time.Duration

	clock  clock.Clock
	logger logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc // nil while not running
	done   chan struct{}      // closed when the current run exits
	err    error              // last renewal failure, cleared by a success

	renewals atomic.Int64
	failures atomic.Int64
}

// RenewerOption configures a Renewer.
type RenewerOption func(*Renewer)

// WithRenewerClock provides a custom clock, primarily for tests.
func WithRenewerClock(c clock.Clock) RenewerOption {
	return func(r *Renewer) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithRenewerLogger sets the logger.
func WithRenewerLogger(l logger.Logger) RenewerOption {
	return func(r *Renewer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenewer creates a renewer for handle. buffer is the safety margin kept
// before expiry; a buffer at or above the TTL renews back to back.
func NewRenewer(handle Renewable, buffer time.Duration, opts ...RenewerOption) (*Renewer, error) {
	if handle == nil {
		return nil, errors.New("lock handle cannot be nil")
	}
	if buffer < 0 {
		return nil, fmt.Errorf("renewal buffer must not be negative, got %v", buffer)
	}

	r := &Renewer{
		handle: handle,
		buffer: buffer,
		clock:  clock.New(),
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("renewer")
	return r, nil
}

// Start begins renewing in a background goroutine. Calling Start while
// running is a no-op; a stopped renewer may be started again. If a previous
// run is still finishing a renewal, the new run waits for it to exit so only
// one loop ever renews the lock.
func (r *Renewer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	prev, done := r.done, make(chan struct{})
	r.cancel = cancel
	r.done = done

	go func() {
		if prev != nil {
			select {
			case <-prev:
			case <-runCtx.Done():
				close(done)
				return
			}
		}
		r.run(runCtx, done)
	}()
}

// Stop cancels the timer and waits for an in-flight renewal to finish.
// It is idempotent and safe to call on a renewer that was never started.
// It only fails if ctx expires before the renewal goroutine exits.
func (r *Renewer) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for lock renewer to stop: %w", ctx.Err())
	}
}

// Running reports whether the renewal loop is active.
func (r *Renewer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Err returns the most recent renewal failure, or nil if the last renewal succeeded.
func (r *Renewer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Renewals returns the number of successful renewals.
func (r *Renewer) Renewals() int64 {
	return r.renewals.Load()
}

// Failures returns the number of failed renewals.
func (r *Renewer) Failures() int64 {
	return r.failures.Load()
}

func (r *Renewer) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// period returns how long to wait before renewing lock.
func (r *Renewer) period(lock *types.Lock) time.Duration {
	if lock == nil {
		return 0
	}
	return max(0, lock.TTL()-r.buffer)
}

// run is the renewal loop.
func (r *Renewer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := r.clock.NewTimer(r.period(r.handle.Current()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			// Stop may have won the race with the timer.
			if ctx.Err() != nil {
				return
			}

			// The request is not cancelled by Stop, so the stored lock always
			// matches what the server last issued.
			lock, err := r.handle.Renew(context.WithoutCancel(ctx))
			if err != nil {
				r.failures.Add(1)
				r.setErr(err)
				r.logger.Warnw("Draft lock renewal failed", "error", err)
				if errors.Is(err, ErrLockReleased) {
					return
				}
				timer.Reset(r.period(r.handle.Current()))
				continue
			}

			r.renewals.Add(1)
			r.setErr(nil)
			r.logger.Debugw("Draft lock renewed", "expires_at", lock.ExpiresAt, "ttl", lock.TTL())
			timer.Reset(r.period(lock))
		}
	}
}
