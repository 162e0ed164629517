package structureset

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/types"
)

// Renewable is what the Renewer drives: something holding a lock that can be
// exchanged for a fresh one.
type Renewable interface {
	// Current returns the lock currently held, or nil once released.
	Current() *types.Lock

	// Renew exchanges the current lock for a fresh one and stores it.
	Renew(ctx context.Context) (*types.Lock, error)
}

// LockHandle holds the draft lock of one structure set. The current lock is
// stored atomically: the renewer replaces it while mutations read it.
type LockHandle struct {
	requestor client.Requestor
	route     string // .../structuresets/{id}/draft/lock

	current  atomic.Pointer[types.Lock]
	released atomic.Bool
}

// acquireLock creates the server-side draft lock of a structure set.
func acquireLock(ctx context.Context, requestor client.Requestor, workspaceID, structureSetID string) (*LockHandle, error) {
	h := &LockHandle{
		requestor: requestor,
		route:     structureSetRoute(workspaceID, structureSetID) + "/draft/lock",
	}

	var lock types.Lock
	if err := requestor.Put(ctx, h.route, nil, &lock); err != nil {
		return nil, err
	}
	if lock.ID == "" {
		return nil, errors.New("server returned a draft lock without an id")
	}
	h.current.Store(&lock)
	return h, nil
}

// Current returns a snapshot of the held lock, or nil once released.
func (h *LockHandle) Current() *types.Lock {
	if h.released.Load() {
		return nil
	}
	lock := h.current.Load()
	if lock == nil {
		return nil
	}
	snapshot := *lock
	return &snapshot
}

// ID returns the latest lock token. It may change after every renewal.
func (h *LockHandle) ID() string {
	if lock := h.current.Load(); lock != nil {
		return lock.ID
	}
	return ""
}

// header attaches the latest lock token to a request.
func (h *LockHandle) header() client.RequestOption {
	return client.WithLock(h.ID())
}

// Renew issues a single renewal for the current lock and stores the
// server's replacement.
func (h *LockHandle) Renew(ctx context.Context) (*types.Lock, error) {
	if h.released.Load() {
		return nil, ErrLockReleased
	}

	var renewed types.Lock
	route := h.route + "/" + url.PathEscape(h.ID())
	if err := h.requestor.Put(ctx, route, nil, &renewed, client.WithoutRetry()); err != nil {
		return nil, fmt.Errorf("failed to renew draft lock: %w", err)
	}
	if renewed.ID == "" {
		return nil, errors.New("server returned a renewed lock without an id")
	}

	h.current.Store(&renewed)
	return h.Current(), nil
}

// Release frees the lock server-side. Releasing twice is a no-op.
func (h *LockHandle) Release(ctx context.Context) error {
	if h.released.Load() {
		return nil
	}
	route := h.route + "/" + url.PathEscape(h.ID())
	if err := h.requestor.Delete(ctx, route); err != nil {
		return fmt.Errorf("failed to release draft lock: %w", err)
	}
	h.released.Store(true)
	return nil
}

// markReleased records that the server dropped the lock (approve or discard).
func (h *LockHandle) markReleased() {
	h.released.Store(true)
}
