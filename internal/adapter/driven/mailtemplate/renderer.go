// Package mailtemplate renders notification template fields into email
// subjects and bodies: plain text via text/template, HTML via a templ
// component.
package mailtemplate

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

var _ driven.EmailRenderer = (*Renderer)(nil)

// Renderer implements driven.EmailRenderer.
type Renderer struct {
	useHTML bool
}

// NewRenderer creates a Renderer. With useHTML unset, rendered emails carry
// a text body only.
func NewRenderer(useHTML bool) *Renderer {
	return &Renderer{useHTML: useHTML}
}

// Render produces the subject and bodies for a combined check state update.
func (r *Renderer) Render(ctx context.Context, change model.Change, fields *model.FieldMap) (model.RenderedEmail, error) {
	v := newEmailView(change, fields)

	text, err := renderText(v)
	if err != nil {
		return model.RenderedEmail{}, fmt.Errorf("render %s: %w", textTemplateName, err)
	}

	email := model.RenderedEmail{
		Subject: subject(v),
		Text:    text,
	}

	if r.useHTML {
		email.HTML, err = renderHTML(ctx, v)
		if err != nil {
			return model.RenderedEmail{}, err
		}
	}

	return email, nil
}

func subject(v emailView) string {
	outcome := "checks updated"
	if v.NewState != "" {
		outcome = "checks " + v.NewState
	}
	return fmt.Sprintf("[%s] Change #%d: %s (%s)", v.Change.Repository, v.Change.ID, v.Change.Title, outcome)
}
