package driven

import (
	"context"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// CheckSource defines the driven port for reading changes and their checks
// from the code-review host.
type CheckSource interface {
	// FetchOpenChanges returns the open changes of a repository. PatchSet and
	// CombinedState are left zero; the caller tracks them.
	FetchOpenChanges(ctx context.Context, repoFullName string) ([]model.Change, error)
	// FetchChecks returns the checks reported for the change's head SHA, keyed
	// to its current patch set.
	FetchChecks(ctx context.Context, change model.Change) ([]model.CheckerCheck, error)
}
