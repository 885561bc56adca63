package mailtemplate

import (
	"strings"
	"text/template"
)

// textTemplateName is the plain-text body template.
const textTemplateName = "CombinedCheckStateUpdated"

const textSource = `{{define "CombinedCheckStateUpdated" -}}
Change #{{.Change.ID}} in {{.Change.Repository}}: {{.Change.Title}}
{{- with .Change.URL}}
{{.}}
{{- end}}
{{if .NewState}}
The combined check state of patch set {{.Change.PatchSet}} changed from {{.OldState}} to {{.NewState}}.
{{end}}
{{- with .Checker}}
Checker {{.Name}} reported {{.State}}{{with .Message}}: {{oneLine .}}{{end}}
{{- with .CheckURL}}
Details: {{.}}
{{- end}}
{{end}}
{{- if .Listed}}
All checks:
{{- range .Groups}}
  {{.Label}}:
{{- range .Checkers}}
    - {{.Name}}{{with .Message}}: {{oneLine .}}{{end}}
{{- end}}
{{- else}}
  (none)
{{- end}}
{{end}}
{{- end}}`

var textTemplates = template.Must(template.New("text").Funcs(template.FuncMap{
	"oneLine": oneLine,
}).Parse(textSource))

func renderText(v emailView) (string, error) {
	var buf strings.Builder
	if err := textTemplates.ExecuteTemplate(&buf, textTemplateName, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// oneLine collapses a multi-line message so list entries stay on one line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
