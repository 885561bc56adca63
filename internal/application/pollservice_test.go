package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/checknotify/internal/application"
	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// --- Mock check source ---

type mockCheckSource struct {
	mu        sync.Mutex
	changes   []model.Change
	states    map[string]model.CheckState // checker UUID -> state
	err       error
	checksErr error
}

func (m *mockCheckSource) set(changes []model.Change, states map[string]model.CheckState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = changes
	m.states = states
}

func (m *mockCheckSource) setChecksErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checksErr = err
}

func (m *mockCheckSource) FetchOpenChanges(_ context.Context, _ string) ([]model.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.Change(nil), m.changes...), nil
}

func (m *mockCheckSource) FetchChecks(_ context.Context, change model.Change) ([]model.CheckerCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checksErr != nil {
		return nil, m.checksErr
	}

	repoFullName := change.Repository
	patchSet := change.CurrentPatchSet()

	// Deterministic order keeps changedChecks stable across polls.
	var pairs []model.CheckerCheck
	for _, uuid := range []string{"github:ci/build", "github:ci/lint", "github:ci/test"} {
		state, ok := m.states[uuid]
		if !ok {
			continue
		}
		checker := testChecker(uuid, uuid[len("github:ci/"):], uuid != "github:ci/lint")
		checker.Repository = repoFullName
		check := testCheck(uuid, patchSet, state)
		check.Key.Repository = repoFullName
		pairs = append(pairs, model.CheckerCheck{Checker: checker, Check: check})
	}
	return pairs, nil
}

// --- Harness ---

type pollHarness struct {
	source   *mockCheckSource
	changes  *fakeChangeStore
	checkers *fakeCheckerStore
	checks   *fakeCheckStore
	outbox   *fakeOutbox
	svc      *application.PollService
	ctx      context.Context
}

// newPollHarness starts a PollService with an empty watch list so the initial
// poll is a no-op; polls are then driven through RefreshRepo.
func newPollHarness(t *testing.T) *pollHarness {
	t.Helper()

	h := &pollHarness{
		source:   &mockCheckSource{},
		changes:  newFakeChangeStore(),
		checkers: newFakeCheckerStore(),
		checks:   newFakeCheckStore(),
		outbox:   &fakeOutbox{},
	}

	notifier := application.NewNotifyService(h.checkers, h.checks, &fakeRenderer{}, h.outbox)
	h.svc = application.NewPollService(h.source, &fakeRepoStore{}, h.changes, h.checkers, h.checks, notifier, time.Hour, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.svc.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h.ctx = ctx
	return h
}

func (h *pollHarness) poll(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.RefreshRepo(h.ctx, testRepo))
}

func (h *pollHarness) stored(t *testing.T, changeID int) model.Change {
	t.Helper()
	c, err := h.changes.Get(context.Background(), testRepo, changeID)
	require.NoError(t, err)
	require.NotNil(t, c)
	return *c
}

func openChange(id int, sha string) model.Change {
	return model.Change{ChangeID: id, Title: "Change", HeadSHA: sha, UpdatedAt: time.Now()}
}

// --- Tests ---

func TestPollRepo_FirstObservationStoresWithoutNotifying(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateRunning,
	})

	h.poll(t)

	c := h.stored(t, 1)
	assert.Equal(t, testRepo, c.Repository)
	assert.Equal(t, 1, c.PatchSet)
	assert.Equal(t, model.CombinedCheckStateInProgress, c.CombinedState)
	assert.Empty(t, h.outbox.sent())

	checker, err := h.checkers.Get(context.Background(), testRepo, "github:ci/build")
	require.NoError(t, err)
	require.NotNil(t, checker)

	checks, err := h.checks.GetChecksForPatchSet(context.Background(), testRepo, c.CurrentPatchSet())
	require.NoError(t, err)
	assert.Len(t, checks, 1)
}

func TestPollRepo_TransitionWithSingleChangedCheckNotifiesWithChecker(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateRunning,
		"github:ci/lint":  model.CheckStateSuccessful,
	})
	h.poll(t)

	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateFailed,
		"github:ci/lint":  model.CheckStateSuccessful,
	})
	h.poll(t)

	assert.Equal(t, model.CombinedCheckStateFailed, h.stored(t, 1).CombinedState)

	sent := h.outbox.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, string(sent[0].Payload), `"oldCombinedCheckState":"IN_PROGRESS"`)
	assert.Contains(t, string(sent[0].Payload), `"newCombinedCheckState":"FAILED"`)
	assert.Contains(t, string(sent[0].Payload), `"checker":{`)
}

func TestPollRepo_TransitionWithSeveralChangedChecksOmitsChecker(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateRunning,
		"github:ci/test":  model.CheckStateRunning,
	})
	h.poll(t)

	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateSuccessful,
		"github:ci/test":  model.CheckStateSuccessful,
	})
	h.poll(t)

	sent := h.outbox.sent()
	require.Len(t, sent, 1)
	assert.NotContains(t, string(sent[0].Payload), `"checker":{`)
}

func TestPollRepo_UnchangedStateDoesNotNotify(t *testing.T) {
	h := newPollHarness(t)
	states := map[string]model.CheckState{"github:ci/build": model.CheckStateRunning}
	h.source.set([]model.Change{openChange(1, "aaa")}, states)
	h.poll(t)

	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateScheduled,
	})
	h.poll(t)

	assert.Empty(t, h.outbox.sent())
}

func TestPollRepo_FailedNotificationIsRetried(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateRunning,
	})
	h.poll(t)

	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateFailed,
	})
	h.outbox.setErr(errors.New("disk full"))
	h.poll(t)

	assert.Empty(t, h.outbox.sent())
	assert.Equal(t, model.CombinedCheckStateInProgress, h.stored(t, 1).CombinedState)

	h.outbox.setErr(nil)
	h.poll(t)
	h.poll(t)

	assert.Equal(t, model.CombinedCheckStateFailed, h.stored(t, 1).CombinedState)

	sent := h.outbox.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, string(sent[0].Payload), `"oldCombinedCheckState":"IN_PROGRESS"`)
	assert.Contains(t, string(sent[0].Payload), `"newCombinedCheckState":"FAILED"`)
}

func TestPollRepo_CheckFetchErrorKeepsStoredState(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateFailed,
	})
	h.poll(t)

	h.source.setChecksErr(errors.New("bad gateway"))
	h.poll(t)

	c := h.stored(t, 1)
	assert.Equal(t, model.CombinedCheckStateFailed, c.CombinedState)

	checks, err := h.checks.GetChecksForPatchSet(context.Background(), testRepo, c.CurrentPatchSet())
	require.NoError(t, err)
	assert.Len(t, checks, 1)

	h.source.setChecksErr(nil)
	h.poll(t)

	assert.Empty(t, h.outbox.sent())
}

func TestPollRepo_HeadMoveBumpsPatchSet(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateSuccessful,
	})
	h.poll(t)
	h.poll(t)
	assert.Equal(t, 1, h.stored(t, 1).PatchSet)

	h.source.set([]model.Change{openChange(1, "bbb")}, map[string]model.CheckState{
		"github:ci/build": model.CheckStateRunning,
	})
	h.poll(t)

	c := h.stored(t, 1)
	assert.Equal(t, 2, c.PatchSet)
	assert.Equal(t, "bbb", c.HeadSHA)

	// The new patch set has no previous checks, so every check counts as changed.
	sent := h.outbox.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, model.PatchSetID{ChangeID: 1, Number: 2}, sent[0].PatchSet)
	assert.Contains(t, string(sent[0].Payload), `"checker":{`)
}

func TestPollRepo_ClosedChangesAreRemoved(t *testing.T) {
	h := newPollHarness(t)
	h.source.set([]model.Change{openChange(1, "aaa"), openChange(2, "ccc")}, nil)
	h.poll(t)

	h.source.set([]model.Change{openChange(2, "ccc")}, nil)
	h.poll(t)

	c, err := h.changes.Get(context.Background(), testRepo, 1)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, model.CombinedCheckStateNotRelevant, h.stored(t, 2).CombinedState)
}

func TestPollRepo_SourceErrorIsReturned(t *testing.T) {
	h := newPollHarness(t)
	h.source.err = errors.New("rate limited")

	err := h.svc.RefreshRepo(h.ctx, testRepo)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestPollRepo_RecordsAdaptiveSchedule(t *testing.T) {
	h := newPollHarness(t)

	_, ok := h.svc.Schedule(testRepo)
	assert.False(t, ok)

	h.source.set([]model.Change{openChange(1, "aaa")}, nil)
	h.poll(t)

	info, ok := h.svc.Schedule(testRepo)
	require.True(t, ok)
	assert.Equal(t, application.TierHot, info.Tier)
	assert.Equal(t, 2*time.Minute, info.NextPollAt.Sub(info.LastPolled))
}

func TestRefreshRepo_AfterStopReturnsError(t *testing.T) {
	notifier := application.NewNotifyService(newFakeCheckerStore(), newFakeCheckStore(), &fakeRenderer{}, &fakeOutbox{})
	svc := application.NewPollService(&mockCheckSource{}, &fakeRepoStore{}, newFakeChangeStore(),
		newFakeCheckerStore(), newFakeCheckStore(), notifier, time.Hour, false)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)
	cancel()

	select {
	case <-svc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poll service did not stop")
	}

	err := svc.RefreshRepo(context.Background(), testRepo)
	require.ErrorIs(t, err, application.ErrPollServiceStopped)
}

func TestRefreshRepo_CanceledContext(t *testing.T) {
	notifier := application.NewNotifyService(newFakeCheckerStore(), newFakeCheckStore(), &fakeRenderer{}, &fakeOutbox{})
	svc := application.NewPollService(&mockCheckSource{}, &fakeRepoStore{}, newFakeChangeStore(),
		newFakeCheckerStore(), newFakeCheckStore(), notifier, time.Hour, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No Start loop is running, so only cancellation can unblock the call.
	err := svc.RefreshRepo(ctx, testRepo)
	require.ErrorIs(t, err, context.Canceled)
}
