package structureset

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// WithDraft acquires a draft, runs fn with it and closes it on every exit
// path, panics included. A draft fn did not approve is discarded. Errors from
// fn and from closing are combined.
func WithDraft(ctx context.Context, s *StructureSets, workspaceID, structureSetID string, fn func(context.Context, *Draft) error, opts ...DraftOption) (err error) {
	draft, err := s.AcquireDraft(ctx, workspaceID, structureSetID, opts...)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := draft.Close(context.WithoutCancel(ctx)); closeErr != nil {
			if err == nil {
				err = closeErr
			} else {
				err = multierror.Append(err, closeErr)
			}
		}
	}()

	return fn(ctx, draft)
}
