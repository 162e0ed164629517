package structureset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jathurchan/proknow/logger"
	"github.com/jathurchan/proknow/types"
)

const (
	// releaseTimeout bounds the best-effort discard issued by Close.
	releaseTimeout = 10 * time.Second

	// stopTimeout bounds how long Approve and Discard wait for an in-flight renewal.
	stopTimeout = 30 * time.Second
)

// Draft is an editable, lock-protected working copy of a structure set.
// Every mutation carries the latest lock token. A Draft must be closed on
// every exit path: Close stops the renewer and, unless the draft was
// approved, discards it so the server-side lock is freed.
type Draft struct {
	service        *StructureSets
	workspaceID    string
	structureSetID string

	handle  *LockHandle
	renewer *Renewer
	item    *Item
	logger  logger.Logger

	// renewCtx outlives the acquiring request; the renewer runs until Close.
	renewCtx context.Context

	mu     sync.Mutex
	state  types.DraftState
	closed bool
}

// ApproveOptions annotates the version created by Approve.
type ApproveOptions struct {
	Label   *string `json:"label,omitempty"`
	Message *string `json:"message,omitempty"`
}

type roiCreate struct {
	Name  string        `json:"name"`
	Color types.Color   `json:"color"`
	Type  types.ROIType `json:"type"`
}

// Item returns the working copy. Its ROIs are editable while the draft is open.
func (d *Draft) Item() *Item {
	return d.item
}

// ROIs returns the ROIs currently in the draft.
func (d *Draft) ROIs() []*ROI {
	return d.item.ROIs
}

// FindROI returns the draft ROI with the given name, ignoring case, or nil.
func (d *Draft) FindROI(name string) *ROI {
	return d.item.FindROI(name)
}

// State returns the lifecycle state of the draft.
func (d *Draft) State() types.DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Lock returns a snapshot of the lock currently held, or nil once released.
func (d *Draft) Lock() *types.Lock {
	return d.handle.Current()
}

// Renewer exposes the background lock renewer, mainly for diagnostics.
func (d *Draft) Renewer() *Renewer {
	return d.renewer
}

// Versions returns the version history of the structure set. Getting the
// draft token through it returns this draft's working copy.
func (d *Draft) Versions() *Versions {
	return d.item.Versions()
}

func (d *Draft) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != types.DraftOpen || d.closed {
		return ErrDraftClosed
	}
	return nil
}

func (d *Draft) transition(to types.DraftState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.CanTransitionTo(to) {
		d.logger.Debugw("Draft state changed", "from", d.state.String(), "to", to.String())
		d.state = to
	}
}

// CreateROI adds an ROI with empty geometry to the draft.
func (d *Draft) CreateROI(ctx context.Context, name string, color types.Color, roiType types.ROIType) (*ROI, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if !roiType.IsValid() {
		return nil, fmt.Errorf("%w: unknown ROI type %q", ErrInvalidOperation, roiType)
	}

	var resp tagResponse
	route := structureSetRoute(d.workspaceID, d.structureSetID) + "/draft/rois"
	body := roiCreate{Name: name, Color: color, Type: roiType}
	if err := d.service.requestor.Post(ctx, route, body, &resp, d.handle.header()); err != nil {
		return nil, fmt.Errorf("failed to create ROI %q: %w", name, err)
	}

	roi := &ROI{
		ID:    resp.ID,
		Name:  name,
		Color: color,
		Type:  roiType,
		Tag:   resp.Tag,
		item:  d.item,
	}
	d.item.ROIs = append(d.item.ROIs, roi)
	return roi, nil
}

// Approve commits the draft as a new version and returns it. The renewer is
// stopped first; if the server rejects the approval the draft stays open and
// renewal resumes, so the caller may retry or Close.
func (d *Draft) Approve(ctx context.Context, opts ApproveOptions) (*Item, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if err := d.stopRenewer(ctx); err != nil {
		return nil, err
	}

	var resp itemResponse
	route := structureSetRoute(d.workspaceID, d.structureSetID) + "/approve"
	if err := d.service.requestor.Post(ctx, route, opts, &resp, d.handle.header()); err != nil {
		d.renewer.Start(d.renewCtx)
		return nil, fmt.Errorf("failed to approve draft: %w", err)
	}

	d.handle.markReleased()
	d.transition(types.DraftCommitted)
	d.logger.Infow("Draft approved", "version", resp.Version)
	return d.service.newItem(d.workspaceID, &resp), nil
}

// Discard abandons the draft without creating a version and frees the lock.
// On failure the draft stays open and renewal resumes.
func (d *Draft) Discard(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := d.stopRenewer(ctx); err != nil {
		return err
	}

	if err := d.discard(ctx); err != nil {
		d.renewer.Start(d.renewCtx)
		return err
	}
	return nil
}

func (d *Draft) discard(ctx context.Context) error {
	route := structureSetRoute(d.workspaceID, d.structureSetID) + "/draft"
	if err := d.service.requestor.Delete(ctx, route, d.handle.header()); err != nil {
		return fmt.Errorf("failed to discard draft: %w", err)
	}

	d.handle.markReleased()
	d.transition(types.DraftDiscarded)
	d.logger.Infow("Draft discarded")
	return nil
}

func (d *Draft) stopRenewer(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	return d.renewer.Stop(stopCtx)
}

// Close stops the renewer and discards the draft unless it was approved or
// discarded already. It is safe to call more than once. If the discard
// fails, releasing the lock is attempted as a last resort.
func (d *Draft) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	open := d.state == types.DraftOpen
	d.mu.Unlock()

	var result *multierror.Error
	if err := d.stopRenewer(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if open {
		// Not cancelled with ctx, so a failing caller still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		if err := d.discard(releaseCtx); err != nil {
			result = multierror.Append(result, err)
			if releaseErr := d.handle.Release(releaseCtx); releaseErr != nil {
				d.logger.Warnw("Best-effort draft lock release failed", "error", releaseErr)
			}
			d.transition(types.DraftDiscarded)
		}
	}

	return result.ErrorOrNil()
}
