package structureset

import (
	"context"
	"fmt"
	"strings"

	"github.com/jathurchan/proknow/types"
)

// Item is a snapshot of a structure set at one version.
type Item struct {
	ID                  string
	WorkspaceID         string
	PatientID           string
	Name                string
	UID                 string
	Modality            string
	FrameOfReferenceUID string
	VersionID           string
	Status              types.VersionStatus
	ROIs                []*ROI

	service *StructureSets
	draft   *Draft // set for the working copy of an open draft
}

// itemResponse is the wire shape of a structure set version.
type itemResponse struct {
	ID                  string `json:"id"`
	PatientID           string `json:"patient"`
	Name                string `json:"name"`
	UID                 string `json:"uid"`
	Modality            string `json:"modality"`
	FrameOfReferenceUID string `json:"frame_of_reference"`
	Version             string `json:"version"`
	Status              string `json:"status"`
	ROIs                []*ROI `json:"rois"`
}

func (s *StructureSets) newItem(workspaceID string, resp *itemResponse) *Item {
	item := &Item{
		ID:          resp.ID,
		WorkspaceID: workspaceID,
		service:     s,
	}
	item.apply(resp)
	return item
}

// apply replaces the item contents, keeping ROIs bound to the item.
func (i *Item) apply(resp *itemResponse) {
	i.PatientID = resp.PatientID
	i.Name = resp.Name
	i.UID = resp.UID
	i.Modality = resp.Modality
	i.FrameOfReferenceUID = resp.FrameOfReferenceUID
	i.VersionID = resp.Version
	i.Status = types.ParseVersionStatus(resp.Status)

	i.ROIs = make([]*ROI, 0, len(resp.ROIs))
	for _, roi := range resp.ROIs {
		if roi == nil {
			continue
		}
		roi.item = i
		i.ROIs = append(i.ROIs, roi)
	}
}

// IsDraft reports whether this item is the working copy of a draft.
func (i *Item) IsDraft() bool {
	return i.Status.IsDraft()
}

// Refresh reloads the item from the version it was fetched at. The working
// copy of an approved or discarded draft reloads the current version instead
// and is no longer bound to the draft.
func (i *Item) Refresh(ctx context.Context) error {
	closed := i.draft != nil && i.draft.State() != types.DraftOpen

	var route string
	switch {
	case i.draft != nil && !closed:
		route = versionRoute(i.WorkspaceID, i.ID, types.DraftToken)
	case closed, i.VersionID == "":
		route = structureSetRoute(i.WorkspaceID, i.ID)
	default:
		route = versionRoute(i.WorkspaceID, i.ID, i.VersionID)
	}

	var resp itemResponse
	if err := i.service.requestor.Get(ctx, route, &resp); err != nil {
		return fmt.Errorf("failed to refresh structure set %s: %w", i.ID, err)
	}
	if closed {
		i.draft = nil
	}
	i.apply(&resp)
	return nil
}

// FindROI returns the first ROI whose name matches, ignoring case, or nil.
func (i *Item) FindROI(name string) *ROI {
	for _, roi := range i.ROIs {
		if strings.EqualFold(roi.Name, name) {
			return roi
		}
	}
	return nil
}

// Versions returns the version history of the structure set.
func (i *Item) Versions() *Versions {
	v := i.service.Versions(i.WorkspaceID, i.ID)
	v.draft = i.draft
	return v
}

// Draft acquires a draft of the structure set. The caller must Close it.
func (i *Item) Draft(ctx context.Context, opts ...DraftOption) (*Draft, error) {
	return i.service.AcquireDraft(ctx, i.WorkspaceID, i.ID, opts...)
}
