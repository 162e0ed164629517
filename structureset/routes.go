package structureset

import (
	"fmt"
	"net/url"
)

func structureSetRoute(workspaceID, structureSetID string) string {
	return fmt.Sprintf("/workspaces/%s/structuresets/%s", url.PathEscape(workspaceID), url.PathEscape(structureSetID))
}

func versionRoute(workspaceID, structureSetID, versionID string) string {
	return structureSetRoute(workspaceID, structureSetID) + "/versions/" + url.PathEscape(versionID)
}

func draftROIRoute(workspaceID, structureSetID, roiID string) string {
	return structureSetRoute(workspaceID, structureSetID) + "/draft/rois/" + url.PathEscape(roiID)
}
