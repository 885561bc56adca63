package model

import (
	"strings"
	"time"
)

// Repository represents a GitHub repository on the watch list.
type Repository struct {
	ID       int64
	FullName string
	Owner    string
	Name     string
	AddedAt  time.Time
}

// ParseRepository validates name in owner/repo format, where each part
// contains only alphanumeric characters, hyphens, dots, or underscores, and
// returns the repository it names.
func ParseRepository(name string) (Repository, bool) {
	owner, repo, ok := strings.Cut(name, "/")
	if !ok || !isValidRepoPart(owner) || !isValidRepoPart(repo) {
		return Repository{}, false
	}
	return Repository{FullName: name, Owner: owner, Name: repo}, true
}

func isValidRepoPart(part string) bool {
	if part == "" {
		return false
	}
	for _, ch := range part {
		if !isValidRepoChar(ch) {
			return false
		}
	}
	return true
}

func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}

// Change is a code change under review (a pull request on GitHub).
// PatchSet increments every time HeadSHA moves.
type Change struct {
	Repository    string
	ChangeID      int
	Title         string
	Author        string
	URL           string
	HeadSHA       string
	BaseBranch    string
	PatchSet      int
	CombinedState CombinedCheckState // Empty until checks were evaluated once.
	UpdatedAt     time.Time
}

// CurrentPatchSet returns the ID of the change's current patch set.
func (c Change) CurrentPatchSet() PatchSetID {
	return PatchSetID{ChangeID: c.ChangeID, Number: c.PatchSet}
}
