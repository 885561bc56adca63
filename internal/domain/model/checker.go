package model

import (
	"strings"
	"time"
)

// CheckerUUID identifies a checker. The format is "<scheme>:<id>", e.g.
// "github:ci-app/build".
type CheckerUUID string

// IsValid reports whether the UUID has a non-empty scheme and id.
func (u CheckerUUID) IsValid() bool {
	scheme, id, ok := strings.Cut(string(u), ":")
	return ok && scheme != "" && id != ""
}

// Scheme returns the part before the first colon.
func (u CheckerUUID) Scheme() string {
	scheme, _, _ := strings.Cut(string(u), ":")
	return scheme
}

// Checker holds the identity and metadata of a check provider.
// Description and URL are optional; nil means unset, which is distinct from "".
type Checker struct {
	UUID        CheckerUUID
	Name        string
	Repository  string
	Description *string
	URL         *string
	Required    bool // A failing required checker makes the combined state FAILED.
	UpdatedAt   time.Time
}

// Optional returns a pointer to s, for populating optional string fields.
func Optional(s string) *string {
	return &s
}
