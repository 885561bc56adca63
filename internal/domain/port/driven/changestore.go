package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// ErrChangeNotFound indicates the requested change is not tracked.
var ErrChangeNotFound = errors.New("change not found")

// ChangeStore defines the driven port for tracked change persistence.
type ChangeStore interface {
	// Upsert inserts or replaces the change identified by (Repository, ChangeID).
	Upsert(ctx context.Context, change model.Change) error
	// Get returns the change, or nil, nil when it is not tracked.
	Get(ctx context.Context, repository string, changeID int) (*model.Change, error)
	// ListByRepository returns all tracked changes of a repository ordered by change ID.
	ListByRepository(ctx context.Context, repository string) ([]model.Change, error)
	// Delete removes the change and its checks. Returns ErrChangeNotFound if absent.
	Delete(ctx context.Context, repository string, changeID int) error
}
