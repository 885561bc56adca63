package github

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

func TestMapCheckRunState(t *testing.T) {
	tests := []struct {
		status     string
		conclusion string
		want       model.CheckState
	}{
		{"queued", "", model.CheckStateScheduled},
		{"in_progress", "", model.CheckStateRunning},
		{"pending", "", model.CheckStateNotStarted},
		{"waiting", "", model.CheckStateNotStarted},
		{"requested", "", model.CheckStateNotStarted},
		{"completed", "success", model.CheckStateSuccessful},
		{"completed", "neutral", model.CheckStateNotRelevant},
		{"completed", "skipped", model.CheckStateNotRelevant},
		{"completed", "failure", model.CheckStateFailed},
		{"completed", "timed_out", model.CheckStateFailed},
		{"completed", "cancelled", model.CheckStateFailed},
		{"completed", "action_required", model.CheckStateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.conclusion, func(t *testing.T) {
			assert.Equal(t, tt.want, mapCheckRunState(tt.status, tt.conclusion))
		})
	}
}

func TestMapStatusState(t *testing.T) {
	assert.Equal(t, model.CheckStateRunning, mapStatusState("pending"))
	assert.Equal(t, model.CheckStateSuccessful, mapStatusState("success"))
	assert.Equal(t, model.CheckStateFailed, mapStatusState("failure"))
	assert.Equal(t, model.CheckStateFailed, mapStatusState("error"))
}

func TestSplitRepo(t *testing.T) {
	owner, repo, err := splitRepo("octocat/hello-world")
	assert.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "hello-world", repo)

	_, _, err = splitRepo("octocat")
	assert.Error(t, err)
}
