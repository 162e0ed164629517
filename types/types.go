// Package types holds the wire-level types shared by the ProKnow services:
// draft locks, ROI classification, version status, colors and geometry.
package types

import "time"

// DraftToken is the version identifier the API uses for the open draft of a structure set.
const DraftToken = "draft"

// Lock is a server-granted exclusive edit lock on a structure set draft.
// The server is authoritative on expiry; a structure set has at most one active lock.
type Lock struct {
	// ID is the opaque lock token sent back in the ProKnow-Lock header.
	// It may change on every renewal.
	ID string `json:"id"`

	// CreatedAt is when the server issued this lock (or its latest renewal).
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the server will drop the lock unless renewed.
	ExpiresAt time.Time `json:"expires_at"`

	// TTLMilliseconds is the lifetime granted by the server, in milliseconds.
	TTLMilliseconds int64 `json:"expires_in"`
}

// TTL returns the lock lifetime as a duration.
func (l *Lock) TTL() time.Duration {
	return time.Duration(l.TTLMilliseconds) * time.Millisecond
}

// VersionStatus is the server-reported status of a structure set version.
type VersionStatus string

const (
	// StatusDraft marks the open, editable draft.
	StatusDraft VersionStatus = "draft"

	// StatusApproved marks the current committed version.
	StatusApproved VersionStatus = "approved"

	// StatusArchived marks a committed version that is no longer current.
	StatusArchived VersionStatus = "archived"
)

// ROIType is the DICOM RT ROI interpreted type of a region of interest.
type ROIType string

const (
	ROIExternal        ROIType = "EXTERNAL"
	ROIPTV             ROIType = "PTV"
	ROICTV             ROIType = "CTV"
	ROIGTV             ROIType = "GTV"
	ROITreatedVolume   ROIType = "TREATED_VOLUME"
	ROIIrradVolume     ROIType = "IRRAD_VOLUME"
	ROIBolus           ROIType = "BOLUS"
	ROIAvoidance       ROIType = "AVOIDANCE"
	ROIOrgan           ROIType = "ORGAN"
	ROIMarker          ROIType = "MARKER"
	ROIRegistration    ROIType = "REGISTRATION"
	ROIIsocenter       ROIType = "ISOCENTER"
	ROIContrastAgent   ROIType = "CONTRAST_AGENT"
	ROICavity          ROIType = "CAVITY"
	ROIBrachyChannel   ROIType = "BRACHY_CHANNEL"
	ROIBrachyAccessory ROIType = "BRACHY_ACCESSORY"
	ROIBrachySrcApp    ROIType = "BRACHY_SRC_APP"
	ROIBrachyChnlShld  ROIType = "BRACHY_CHNL_SHLD"
	ROISupport         ROIType = "SUPPORT"
	ROIFixation        ROIType = "FIXATION"
	ROIDoseRegion      ROIType = "DOSE_REGION"
	ROIControl         ROIType = "CONTROL"
)

// DraftState is the lifecycle state of a draft session.
type DraftState int

const (
	// DraftNone is the state before a draft has been acquired.
	DraftNone DraftState = iota

	// DraftOpen is an acquired, lock-protected draft accepting ROI mutations.
	DraftOpen

	// DraftCommitted is terminal: the draft was approved into a new version.
	DraftCommitted

	// DraftDiscarded is terminal: the draft was abandoned without a new version.
	DraftDiscarded
)
