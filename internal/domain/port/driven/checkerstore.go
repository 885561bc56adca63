package driven

import (
	"context"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// CheckerStore defines the driven port for checker metadata persistence.
type CheckerStore interface {
	// Upsert inserts or replaces the checker identified by (Repository, UUID).
	Upsert(ctx context.Context, checker model.Checker) error
	// Get returns nil, nil when the checker is unknown.
	Get(ctx context.Context, repository string, uuid model.CheckerUUID) (*model.Checker, error)
	// ListByRepository returns the checkers of a repository ordered by UUID.
	ListByRepository(ctx context.Context, repository string) ([]model.Checker, error)
}
