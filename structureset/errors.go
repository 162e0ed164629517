package structureset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation is returned, without contacting the server, for
	// operations that can never succeed in the current state.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotEditable is returned when mutating an ROI that does not belong to an open draft.
	ErrNotEditable = fmt.Errorf("%w: item is not editable", ErrInvalidOperation)

	// ErrDraftClosed is returned when using a draft after it was approved, discarded or closed.
	ErrDraftClosed = fmt.Errorf("%w: draft is closed", ErrInvalidOperation)

	// ErrDraftVersion is returned for delete, download, revert and save on the draft version.
	ErrDraftVersion = fmt.Errorf("%w: not permitted on the draft version", ErrInvalidOperation)

	// ErrLockReleased is returned when renewing a lock that was released or consumed.
	ErrLockReleased = errors.New("draft lock released")

	// ErrDownloadTimeout is returned when a version export is not ready within the retry budget.
	ErrDownloadTimeout = errors.New("timed out waiting for version export")
)

func draftVersionError(op string) error {
	return fmt.Errorf("cannot %s: %w", op, ErrDraftVersion)
}
