package structureset

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/jathurchan/proknow/types"
)

// ROI is a region of interest within one version of a structure set.
type ROI struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Color     types.Color   `json:"color"`
	Type      types.ROIType `json:"type"`
	Algorithm string        `json:"algorithm,omitempty"`

	// Tag identifies the current geometry. It changes whenever the geometry is replaced.
	Tag string `json:"tag"`

	item *Item
}

type roiUpdate struct {
	Name  string        `json:"name"`
	Color types.Color   `json:"color"`
	Type  types.ROIType `json:"type"`
}

type tagResponse struct {
	ID  string `json:"id,omitempty"`
	Tag string `json:"tag"`
}

// IsEditable reports whether the ROI belongs to an open draft.
func (r *ROI) IsEditable() bool {
	return r.item != nil && r.item.draft != nil && r.item.draft.State() == types.DraftOpen
}

// Item returns the structure set version this ROI belongs to.
func (r *ROI) Item() *Item {
	return r.item
}

// Save pushes the name, color and type of the ROI to the draft.
func (r *ROI) Save(ctx context.Context) error {
	if !r.IsEditable() {
		return ErrNotEditable
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: unknown ROI type %q", ErrInvalidOperation, r.Type)
	}

	d := r.item.draft
	body := roiUpdate{Name: r.Name, Color: r.Color, Type: r.Type}
	if err := d.service.requestor.Put(ctx, draftROIRoute(d.workspaceID, d.structureSetID, r.ID), body, nil, d.handle.header()); err != nil {
		return fmt.Errorf("failed to save ROI %q: %w", r.Name, err)
	}
	return nil
}

// Delete removes the ROI from the draft.
func (r *ROI) Delete(ctx context.Context) error {
	if !r.IsEditable() {
		return ErrNotEditable
	}

	d := r.item.draft
	if err := d.service.requestor.Delete(ctx, draftROIRoute(d.workspaceID, d.structureSetID, r.ID), d.handle.header()); err != nil {
		return fmt.Errorf("failed to delete ROI %q: %w", r.Name, err)
	}

	r.item.ROIs = slices.DeleteFunc(r.item.ROIs, func(other *ROI) bool { return other.ID == r.ID })
	r.item = nil
	return nil
}

// GetData fetches the contours and points of the ROI.
func (r *ROI) GetData(ctx context.Context) (*types.ROIData, error) {
	if r.item == nil {
		return nil, fmt.Errorf("%w: ROI %q is detached", ErrInvalidOperation, r.Name)
	}

	route := fmt.Sprintf("%s/rois/%s/data/%s",
		structureSetRoute(r.item.WorkspaceID, r.item.ID), url.PathEscape(r.ID), url.PathEscape(r.Tag))

	var data types.ROIData
	if err := r.item.service.requestor.Get(ctx, route, &data); err != nil {
		return nil, fmt.Errorf("failed to get data for ROI %q: %w", r.Name, err)
	}
	return &data, nil
}

// SaveData replaces the geometry of the ROI. There is no undo; the previous
// geometry is only reachable through an earlier version.
func (r *ROI) SaveData(ctx context.Context, data *types.ROIData) error {
	if !r.IsEditable() {
		return ErrNotEditable
	}
	if data == nil {
		data = &types.ROIData{}
	}

	d := r.item.draft
	var resp tagResponse
	route := draftROIRoute(d.workspaceID, d.structureSetID, r.ID) + "/data"
	if err := d.service.requestor.Put(ctx, route, data, &resp, d.handle.header()); err != nil {
		return fmt.Errorf("failed to save data for ROI %q: %w", r.Name, err)
	}

	r.Tag = resp.Tag
	return nil
}
