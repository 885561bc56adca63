// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository is not on the watch list.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates the repository is already watched.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// RepoStore defines the driven port for the repository watch list.
// Add returns ErrRepoAlreadyExists if the repository already exists.
// Remove returns ErrRepoNotFound if the repository does not exist.
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) error
	Remove(ctx context.Context, fullName string) error
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
}
