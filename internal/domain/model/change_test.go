package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name  string
		input string
		owner string
		repo  string
		ok    bool
	}{
		{"valid", "octocat/hello-world", "octocat", "hello-world", true},
		{"dots and underscores", "my.org/repo_name", "my.org", "repo_name", true},
		{"missing slash", "octocat", "", "", false},
		{"empty owner", "/repo", "", "", false},
		{"empty name", "owner/", "", "", false},
		{"extra segment", "a/b/c", "", "", false},
		{"space", "owner/my repo", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRepository(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.input, got.FullName)
				assert.Equal(t, tt.owner, got.Owner)
				assert.Equal(t, tt.repo, got.Name)
			}
		})
	}
}

func TestChange_CurrentPatchSet(t *testing.T) {
	c := Change{ChangeID: 12, PatchSet: 4}
	assert.Equal(t, PatchSetID{ChangeID: 12, Number: 4}, c.CurrentPatchSet())
	assert.Equal(t, "12,4", c.CurrentPatchSet().String())
}
