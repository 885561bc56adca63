package model

import (
	"fmt"
	"time"
)

// PatchSetID identifies one revision of a change.
type PatchSetID struct {
	ChangeID int
	Number   int
}

// String returns "<change>,<patch set>".
func (p PatchSetID) String() string {
	return fmt.Sprintf("%d,%d", p.ChangeID, p.Number)
}

// CheckKey is the composite key of a check.
type CheckKey struct {
	Repository  string
	PatchSet    PatchSetID
	CheckerUUID CheckerUUID
}

// String returns a human-readable form of the key used in error messages.
func (k CheckKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Repository, k.PatchSet, k.CheckerUUID)
}

// Check is the result of one checker against one patch set.
// Message and URL are optional; nil means unset, which is distinct from "".
type Check struct {
	Key       CheckKey
	State     CheckState
	Message   *string
	URL       *string
	UpdatedAt time.Time
}

// CheckerCheck pairs a checker with its check on a patch set.
// Check.Key.CheckerUUID must equal Checker.UUID.
type CheckerCheck struct {
	Checker Checker
	Check   Check
}

// Matches reports whether the check belongs to the checker.
func (cc CheckerCheck) Matches() bool {
	return cc.Check.Key.CheckerUUID == cc.Checker.UUID
}
