// Package structureset implements the structure set draft lifecycle: acquiring
// the server-side edit lock, keeping it alive in the background, mutating ROIs
// under it, approving or discarding the draft, and managing version history.
package structureset

import (
	"context"
	"fmt"
	"time"

	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/clock"
	"github.com/jathurchan/proknow/logger"
	"github.com/jathurchan/proknow/types"
	"github.com/spf13/afero"
)

const (
	// DefaultDownloadDelay is the pause between export readiness checks.
	DefaultDownloadDelay = 200 * time.Millisecond

	// DefaultDownloadRetries is how many readiness checks are made before giving up.
	DefaultDownloadRetries = 150
)

// StructureSets is the entry point for structure set operations.
type StructureSets struct {
	requestor client.Requestor
	logger    logger.Logger
	clock     clock.Clock
	fs        afero.Fs

	renewalBuffer   time.Duration
	downloadDelay   time.Duration
	downloadRetries int
}

// Option configures StructureSets.
type Option func(*StructureSets)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *StructureSets) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock driving lock renewal and download polling.
func WithClock(c clock.Clock) Option {
	return func(s *StructureSets) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFs sets the filesystem downloads are written to.
func WithFs(fs afero.Fs) Option {
	return func(s *StructureSets) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithRenewalBuffer sets the default margin kept before lock expiry.
func WithRenewalBuffer(d time.Duration) Option {
	return func(s *StructureSets) {
		if d >= 0 {
			s.renewalBuffer = d
		}
	}
}

// WithDownloadPolling sets the delay between readiness checks and how many are made.
func WithDownloadPolling(delay time.Duration, retries int) Option {
	return func(s *StructureSets) {
		if delay >= 0 {
			s.downloadDelay = delay
		}
		if retries > 0 {
			s.downloadRetries = retries
		}
	}
}

// New creates the structure set service.
func New(requestor client.Requestor, opts ...Option) *StructureSets {
	s := &StructureSets{
		requestor:       requestor,
		logger:          logger.NewNoOpLogger(),
		clock:           clock.New(),
		fs:              afero.NewOsFs(),
		renewalBuffer:   DefaultRenewalBuffer,
		downloadDelay:   DefaultDownloadDelay,
		downloadRetries: DefaultDownloadRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("structureset")
	return s
}

// Get returns the current approved version of a structure set.
func (s *StructureSets) Get(ctx context.Context, workspaceID, structureSetID string) (*Item, error) {
	var resp itemResponse
	if err := s.requestor.Get(ctx, structureSetRoute(workspaceID, structureSetID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get structure set %s: %w", structureSetID, err)
	}
	return s.newItem(workspaceID, &resp), nil
}

// DraftOption configures a single draft session.
type DraftOption func(*draftOptions)

type draftOptions struct {
	renewalBuffer time.Duration
}

// WithLockRenewalBuffer overrides the renewal margin for one draft.
func WithLockRenewalBuffer(d time.Duration) DraftOption {
	return func(o *draftOptions) {
		if d >= 0 {
			o.renewalBuffer = d
		}
	}
}

// AcquireDraft locks a structure set for editing and starts renewing the
// lock. A structure set locked by another session fails with an error
// matching client.ErrConflict; an unknown one with client.ErrNotFound.
// The returned draft must be closed.
func (s *StructureSets) AcquireDraft(ctx context.Context, workspaceID, structureSetID string, opts ...DraftOption) (*Draft, error) {
	o := &draftOptions{renewalBuffer: s.renewalBuffer}
	for _, opt := range opts {
		opt(o)
	}
	log := s.logger.WithStructureSet(structureSetID)

	handle, err := acquireLock(ctx, s.requestor, workspaceID, structureSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock structure set %s: %w", structureSetID, err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := handle.Release(releaseCtx); err != nil {
			log.Warnw("Failed to release draft lock after acquisition failure", "error", err)
		}
	}

	var resp itemResponse
	if err := s.requestor.Get(ctx, versionRoute(workspaceID, structureSetID, types.DraftToken), &resp); err != nil {
		release()
		return nil, fmt.Errorf("failed to get draft of structure set %s: %w", structureSetID, err)
	}

	renewer, err := NewRenewer(handle, o.renewalBuffer, WithRenewerClock(s.clock), WithRenewerLogger(log))
	if err != nil {
		release()
		return nil, err
	}

	d := &Draft{
		service:        s,
		workspaceID:    workspaceID,
		structureSetID: structureSetID,
		handle:         handle,
		renewer:        renewer,
		logger:         log,
		renewCtx:       context.WithoutCancel(ctx),
		state:          types.DraftOpen,
	}
	d.item = s.newItem(workspaceID, &resp)
	d.item.draft = d

	renewer.Start(d.renewCtx)
	log.Infow("Draft acquired", "lock_ttl", handle.Current().TTL())
	return d, nil
}
