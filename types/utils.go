package types

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

var roiTypes = []ROIType{
	ROIExternal, ROIPTV, ROICTV, ROIGTV, ROITreatedVolume, ROIIrradVolume, ROIBolus,
	ROIAvoidance, ROIOrgan, ROIMarker, ROIRegistration, ROIIsocenter, ROIContrastAgent,
	ROICavity, ROIBrachyChannel, ROIBrachyAccessory, ROIBrachySrcApp, ROIBrachyChnlShld,
	ROISupport, ROIFixation, ROIDoseRegion, ROIControl,
}

// ParseROIType normalizes s (e.g. "organ", " Ptv ") and reports whether it names a known type.
func ParseROIType(s string) (ROIType, bool) {
	t := ROIType(upper.String(strings.TrimSpace(s)))
	return t, t.IsValid()
}

// IsValid checks if the type is one of the DICOM RT ROI interpreted types.
func (t ROIType) IsValid() bool {
	return slices.Contains(roiTypes, t)
}

// ParseVersionStatus normalizes a status string reported by the server.
func ParseVersionStatus(s string) VersionStatus {
	return VersionStatus(lower.String(strings.TrimSpace(s)))
}

// IsDraft reports whether the status marks the open draft.
func (s VersionStatus) IsDraft() bool {
	return s == StatusDraft
}

// String helps with making draft states readable in logs and errors.
func (s DraftState) String() string {
	switch s {
	case DraftNone:
		return "NoDraft"
	case DraftOpen:
		return "DraftOpen"
	case DraftCommitted:
		return "Committed"
	case DraftDiscarded:
		return "Discarded"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s DraftState) IsTerminal() bool {
	return s == DraftCommitted || s == DraftDiscarded
}

// draftTransitions maps the valid draft lifecycle transitions.
var draftTransitions = map[DraftState][]DraftState{
	DraftNone: {DraftOpen},
	DraftOpen: {DraftOpen, DraftCommitted, DraftDiscarded},
}

// CanTransitionTo checks if a transition from the current state to the target state is valid.
func (s DraftState) CanTransitionTo(target DraftState) bool {
	validTargets, exists := draftTransitions[s]
	if !exists {
		return false
	}

	return slices.Contains(validTargets, target)
}
