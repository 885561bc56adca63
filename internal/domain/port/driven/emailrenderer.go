package driven

import (
	"context"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// EmailRenderer turns named template fields into an email subject and bodies.
type EmailRenderer interface {
	Render(ctx context.Context, change model.Change, fields *model.FieldMap) (model.RenderedEmail, error)
}
