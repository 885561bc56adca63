package mailtemplate

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// htmlTemplateName is the HTML body template.
const htmlTemplateName = "CombinedCheckStateUpdatedHtml"

// combinedCheckStateUpdatedHTML renders the HTML body. Check messages and
// checker descriptions are markdown and go through renderMarkdown; everything
// else is escaped.
func combinedCheckStateUpdatedHTML(v emailView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{ctx: ctx, w: w}

		hw.raw(`<div class="combined-check-state-updated">`)

		hw.raw(`<p>Change `)
		hw.link(v.Change.URL, fmt.Sprintf("#%d", v.Change.ID))
		hw.raw(` in `)
		hw.text(v.Change.Repository)
		hw.raw(`: `)
		hw.text(v.Change.Title)
		hw.raw(`</p>`)

		if v.NewState != "" {
			hw.raw(`<p>The combined check state of patch set `)
			hw.text(fmt.Sprint(v.Change.PatchSet))
			hw.raw(` changed from <strong>`)
			hw.text(v.OldState)
			hw.raw(`</strong> to <strong>`)
			hw.text(v.NewState)
			hw.raw(`</strong>.</p>`)
		}

		if v.Checker != nil {
			hw.raw(`<p>Checker `)
			hw.link(v.Checker.URL, v.Checker.Name)
			hw.raw(` reported <strong>`)
			hw.text(v.Checker.State)
			hw.raw(`</strong>`)
			if v.Checker.CheckURL != "" {
				hw.raw(` (`)
				hw.link(v.Checker.CheckURL, "details")
				hw.raw(`)`)
			}
			hw.raw(`</p>`)
			hw.markdown(v.Checker.Message)
		}

		if v.Listed {
			hw.raw(`<h3>All checks</h3>`)
			if len(v.Groups) == 0 {
				hw.raw(`<p>No checks.</p>`)
			}
			for _, group := range v.Groups {
				hw.raw(`<h4>`)
				hw.text(group.Label)
				hw.raw(`</h4><ul>`)
				for _, c := range group.Checkers {
					hw.raw(`<li>`)
					hw.link(c.CheckURL, c.Name)
					if c.Description != "" {
						hw.raw(`<div class="checker-description">`)
						hw.markdown(c.Description)
						hw.raw(`</div>`)
					}
					hw.markdown(c.Message)
					hw.raw(`</li>`)
				}
				hw.raw(`</ul>`)
			}
		}

		hw.raw(`</div>`)

		return hw.err
	})
}

// htmlWriter keeps the first write error so the component body stays linear.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// link writes an anchor when href is set and plain text otherwise. Unsafe
// schemes are replaced by templ's sanitized placeholder URL.
func (h *htmlWriter) link(href, label string) {
	if href == "" {
		h.text(label)
		return
	}
	h.raw(`<a href="`)
	h.text(string(templ.URL(href)))
	h.raw(`">`)
	h.text(label)
	h.raw(`</a>`)
}

func (h *htmlWriter) markdown(src string) {
	rendered := strings.TrimSpace(renderMarkdown(src))
	if rendered == "" || h.err != nil {
		return
	}
	h.err = templ.Raw(rendered).Render(h.ctx, h.w)
}

func renderHTML(ctx context.Context, v emailView) (string, error) {
	var buf strings.Builder
	if err := combinedCheckStateUpdatedHTML(v).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render %s: %w", htmlTemplateName, err)
	}
	return buf.String(), nil
}
