package driven

import (
	"context"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// CheckStore defines the driven port for check persistence.
// Uses full replacement strategy: all checks of a patch set are replaced atomically.
type CheckStore interface {
	// ReplaceChecksForPatchSet deletes all existing checks of the patch set
	// and inserts the provided checks in one transaction.
	ReplaceChecksForPatchSet(ctx context.Context, repository string, patchSet model.PatchSetID, checks []model.Check) error
	// GetChecksForPatchSet returns all checks of the patch set, ordered by checker UUID.
	GetChecksForPatchSet(ctx context.Context, repository string, patchSet model.PatchSetID) ([]model.Check, error)
}
