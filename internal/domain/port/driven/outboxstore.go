package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// ErrOutboxEmailNotFound indicates no outgoing email has the requested ID.
var ErrOutboxEmailNotFound = errors.New("outgoing email not found")

// OutboxStore defines the driven port for composed emails awaiting delivery.
type OutboxStore interface {
	Enqueue(ctx context.Context, email model.OutgoingEmail) error
	// Get returns ErrOutboxEmailNotFound when id is unknown.
	Get(ctx context.Context, id string) (*model.OutgoingEmail, error)
	// ListPending returns pending emails oldest first, at most limit entries.
	ListPending(ctx context.Context, limit int) ([]model.OutgoingEmail, error)
	// MarkSent returns ErrOutboxEmailNotFound when id is unknown.
	MarkSent(ctx context.Context, id string) error
}
