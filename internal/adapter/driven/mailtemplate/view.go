package mailtemplate

import (
	"strings"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// emailView is the typed form of the template fields that both the text and
// the HTML template render from. Absent optional fields are empty strings.
type emailView struct {
	Change   changeView
	OldState string
	NewState string
	Checker  *checkerView
	Groups   []groupView // Only states with at least one checker.
	Listed   bool        // The all-checkers listing was recorded, possibly empty.
}

type changeView struct {
	Repository string
	ID         int
	PatchSet   int
	Title      string
	Author     string
	URL        string
}

type checkerView struct {
	UUID        string
	Name        string
	Description string
	URL         string
	State       string
	Message     string
	CheckURL    string
}

type groupView struct {
	Label    string
	Checkers []checkerView
}

func newEmailView(change model.Change, fields *model.FieldMap) emailView {
	v := emailView{
		Change: changeView{
			Repository: change.Repository,
			ID:         change.ChangeID,
			PatchSet:   change.PatchSet,
			Title:      change.Title,
			Author:     change.Author,
			URL:        change.URL,
		},
	}

	if fields == nil {
		return v
	}

	v.OldState = stateLabel(stringField(fields, "oldCombinedCheckState"))
	v.NewState = stateLabel(stringField(fields, "newCombinedCheckState"))

	if checker, ok := nestedField(fields, "checker"); ok {
		cv := newCheckerView(checker)
		v.Checker = &cv
	}

	if all, ok := nestedField(fields, "allCheckers"); ok {
		v.Listed = true
		v.Groups = newGroupViews(all)
	}

	return v
}

// newGroupViews walks the states in their declared order, which is also the
// insertion order of the allCheckers field.
func newGroupViews(all *model.FieldMap) []groupView {
	var groups []groupView
	for _, state := range model.CheckStates() {
		raw, ok := all.Get(state.TemplateKey())
		if !ok {
			continue
		}
		members, _ := raw.([]*model.FieldMap)
		if len(members) == 0 {
			continue
		}

		group := groupView{Label: capitalize(stateLabel(string(state)))}
		for _, m := range members {
			group.Checkers = append(group.Checkers, newCheckerView(m))
		}
		groups = append(groups, group)
	}
	return groups
}

func newCheckerView(m *model.FieldMap) checkerView {
	cv := checkerView{
		UUID:        stringField(m, "uuid"),
		Name:        stringField(m, "name"),
		Description: stringField(m, "description"),
		URL:         stringField(m, "url"),
	}
	if check, ok := nestedField(m, "check"); ok {
		cv.State = stateLabel(stringField(check, "state"))
		cv.Message = stringField(check, "message")
		cv.CheckURL = stringField(check, "url")
	}
	return cv
}

func stringField(m *model.FieldMap, key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

func nestedField(m *model.FieldMap, key string) (*model.FieldMap, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := v.(*model.FieldMap)
	return nested, ok && nested != nil
}

// stateLabel turns "IN_PROGRESS" into "in progress".
func stateLabel(state string) string {
	return strings.ReplaceAll(strings.ToLower(state), "_", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
