package structureset

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/types"
	"github.com/spf13/afero"
)

// readyStatus is the export status reported once a version can be downloaded.
const readyStatus = "ready"

// VersionInfo is the metadata shared by every version.
type VersionInfo struct {
	ID        string              `json:"version"`
	Status    types.VersionStatus `json:"status"`
	Label     *string             `json:"label,omitempty"`
	Message   *string             `json:"message,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Version is either a *DraftVersion or a *CommittedVersion. Only committed
// versions can be reverted to, deleted, downloaded or relabelled, so those
// methods exist on *CommittedVersion alone.
type Version interface {
	Info() VersionInfo
	Get(ctx context.Context) (*Item, error)
	isVersion()
}

// DraftVersion is the open draft as listed in the version history.
type DraftVersion struct {
	VersionInfo
	versions *Versions
}

func (v *DraftVersion) Info() VersionInfo { return v.VersionInfo }
func (*DraftVersion) isVersion()          {}

// Get returns the draft working copy.
func (v *DraftVersion) Get(ctx context.Context) (*Item, error) {
	return v.versions.Get(ctx, types.DraftToken)
}

// CommittedVersion is an approved or archived version.
type CommittedVersion struct {
	VersionInfo
	versions *Versions
}

func (v *CommittedVersion) Info() VersionInfo { return v.VersionInfo }
func (*CommittedVersion) isVersion()          {}

// Get returns the structure set as of this version.
func (v *CommittedVersion) Get(ctx context.Context) (*Item, error) {
	return v.versions.Get(ctx, v.ID)
}

// Revert makes this version current again.
func (v *CommittedVersion) Revert(ctx context.Context) (*Item, error) {
	return v.versions.Revert(ctx, v.ID)
}

// Delete removes this version from the history.
func (v *CommittedVersion) Delete(ctx context.Context) error {
	return v.versions.Delete(ctx, v.ID)
}

// Save pushes the Label and Message fields, replacing both on the server.
func (v *CommittedVersion) Save(ctx context.Context) error {
	return v.versions.Save(ctx, v.ID, v.Label, v.Message)
}

// Download writes the DICOM RT structure set of this version to path.
func (v *CommittedVersion) Download(ctx context.Context, path string) (string, error) {
	return v.versions.Download(ctx, v.ID, path)
}

// Versions manages the version history of one structure set.
type Versions struct {
	service        *StructureSets
	workspaceID    string
	structureSetID string

	// draft is set when reached through an open draft.
	draft *Draft

	// draftIDs holds version ids a Query reported as drafts.
	draftIDs sync.Map
}

// Versions returns the version history of a structure set.
func (s *StructureSets) Versions(workspaceID, structureSetID string) *Versions {
	return &Versions{
		service:        s,
		workspaceID:    workspaceID,
		structureSetID: structureSetID,
	}
}

// isDraft reports, without a network call, whether versionID denotes a draft.
func (v *Versions) isDraft(versionID string) bool {
	if versionID == types.DraftToken {
		return true
	}
	_, ok := v.draftIDs.Load(versionID)
	return ok
}

// Query lists every version in server order, including the open draft.
func (v *Versions) Query(ctx context.Context) ([]Version, error) {
	var infos []VersionInfo
	route := structureSetRoute(v.workspaceID, v.structureSetID) + "/versions"
	if err := v.service.requestor.Get(ctx, route, &infos); err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}

	versions := make([]Version, 0, len(infos))
	for _, info := range infos {
		info.Status = types.ParseVersionStatus(string(info.Status))
		if info.Status.IsDraft() {
			v.draftIDs.Store(info.ID, struct{}{})
			versions = append(versions, &DraftVersion{VersionInfo: info, versions: v})
			continue
		}
		versions = append(versions, &CommittedVersion{VersionInfo: info, versions: v})
	}
	return versions, nil
}

// Get returns the structure set as of versionID. The draft token returns the
// open draft; through a Draft it returns that draft's working copy.
func (v *Versions) Get(ctx context.Context, versionID string) (*Item, error) {
	if v.isDraft(versionID) && v.draft != nil && v.draft.State() == types.DraftOpen {
		if err := v.draft.item.Refresh(ctx); err != nil {
			return nil, err
		}
		return v.draft.item, nil
	}

	var resp itemResponse
	if err := v.service.requestor.Get(ctx, versionRoute(v.workspaceID, v.structureSetID, versionID), &resp); err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", versionID, err)
	}
	return v.service.newItem(v.workspaceID, &resp), nil
}

// Revert makes a committed version current and returns the result.
func (v *Versions) Revert(ctx context.Context, versionID string) (*Item, error) {
	if v.isDraft(versionID) {
		return nil, draftVersionError("revert to")
	}

	var resp itemResponse
	route := structureSetRoute(v.workspaceID, v.structureSetID) + "/approve/" + url.PathEscape(versionID)
	if err := v.service.requestor.Post(ctx, route, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to revert to version %s: %w", versionID, err)
	}
	return v.service.newItem(v.workspaceID, &resp), nil
}

// Delete removes a committed version.
func (v *Versions) Delete(ctx context.Context, versionID string) error {
	if v.isDraft(versionID) {
		return draftVersionError("delete")
	}
	if err := v.service.requestor.Delete(ctx, versionRoute(v.workspaceID, v.structureSetID, versionID)); err != nil {
		return fmt.Errorf("failed to delete version %s: %w", versionID, err)
	}
	return nil
}

// Save replaces the label and message of a committed version. Both fields
// are sent; nil clears a field on the server.
func (v *Versions) Save(ctx context.Context, versionID string, label, message *string) error {
	if v.isDraft(versionID) {
		return draftVersionError("save")
	}

	body := struct {
		Label   *string `json:"label"`
		Message *string `json:"message"`
	}{label, message}
	if err := v.service.requestor.Put(ctx, versionRoute(v.workspaceID, v.structureSetID, versionID), body, nil); err != nil {
		return fmt.Errorf("failed to save version %s: %w", versionID, err)
	}
	return nil
}

// Download waits for the DICOM export of a committed version and streams it
// to path. When path is an existing directory the file is named
// RS.<versionID>.dcm inside it; missing parent directories are created.
// It returns the path written.
func (v *Versions) Download(ctx context.Context, versionID, path string) (string, error) {
	if v.isDraft(versionID) {
		return "", draftVersionError("download")
	}

	if err := v.waitReady(ctx, versionID); err != nil {
		return "", err
	}

	fs := v.service.fs
	target, err := resolveDownloadPath(fs, versionID, path)
	if err != nil {
		return "", err
	}

	f, err := fs.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}

	route := versionRoute(v.workspaceID, v.structureSetID, versionID) + "/dicom"
	n, err := v.service.requestor.Stream(ctx, route, f)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = fs.Remove(target)
		return "", fmt.Errorf("failed to download version %s: %w", versionID, err)
	}

	v.service.logger.Infow("Structure set version downloaded", "version", versionID, "path", target, "bytes", n)
	return target, nil
}

var errNotReady = errors.New("version export not ready")

// waitReady polls the export status with a fixed delay until it is ready or
// the retry budget is spent.
func (v *Versions) waitReady(ctx context.Context, versionID string) error {
	route := versionRoute(v.workspaceID, v.structureSetID, versionID) + "/status"
	checks := max(1, v.service.downloadRetries)

	poll := func() error {
		var status struct {
			Status string `json:"status"`
		}
		if err := v.service.requestor.Get(ctx, route, &status); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to get status of version %s: %w", versionID, err))
		}
		if status.Status != readyStatus {
			return errNotReady
		}
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(v.service.downloadDelay), uint64(checks-1)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(poll, b, nil, client.NewBackoffTimer(v.service.clock))
	if errors.Is(err, errNotReady) {
		return fmt.Errorf("%w: version %s not ready after %d checks", ErrDownloadTimeout, versionID, checks)
	}
	return err
}

func resolveDownloadPath(fs afero.Fs, versionID, path string) (string, error) {
	if path == "" {
		path = "."
	}

	info, err := fs.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(path, "RS."+versionID+".dcm"), nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to inspect %s: %w", path, err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return path, nil
}
