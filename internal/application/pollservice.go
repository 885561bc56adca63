// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

// ErrPollServiceStopped is returned by RefreshRepo once the polling loop has exited.
var ErrPollServiceStopped = errors.New("poll service stopped")

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	repoFullName string
	done         chan error
}

// PollService orchestrates periodic polling of the check source, tracks patch
// sets and combined check states, and triggers notifications on transitions.
type PollService struct {
	source       driven.CheckSource
	repoStore    driven.RepoStore
	changeStore  driven.ChangeStore
	checkerStore driven.CheckerStore
	checkStore   driven.CheckStore
	notifier     *NotifyService
	interval     time.Duration
	adaptive     bool
	refreshCh    chan refreshRequest
	stopped      chan struct{}
	now          func() time.Time

	mu        sync.Mutex
	schedules map[string]*repoSchedule
}

// NewPollService creates a new PollService with all required dependencies.
// With adaptive set, each repository is polled on its own activity-tier
// interval instead of the fixed interval.
func NewPollService(
	source driven.CheckSource,
	repoStore driven.RepoStore,
	changeStore driven.ChangeStore,
	checkerStore driven.CheckerStore,
	checkStore driven.CheckStore,
	notifier *NotifyService,
	interval time.Duration,
	adaptive bool,
) *PollService {
	return &PollService{
		source:       source,
		repoStore:    repoStore,
		changeStore:  changeStore,
		checkerStore: checkerStore,
		checkStore:   checkStore,
		notifier:     notifier,
		interval:     interval,
		adaptive:     adaptive,
		refreshCh:    make(chan refreshRequest),
		stopped:      make(chan struct{}),
		now:          time.Now,
		schedules:    make(map[string]*repoSchedule),
	}
}

// Start begins the polling loop. It runs an immediate poll, then polls on the
// configured interval (or the adaptive tick). It also listens for manual
// refresh requests. Start blocks until the context is canceled and must be
// called at most once.
func (s *PollService) Start(ctx context.Context) {
	defer close(s.stopped)

	if err := s.pollAll(ctx); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	tick := s.interval
	if s.adaptive {
		tick = adaptiveTick
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			var err error
			if s.adaptive {
				err = s.pollDue(ctx)
			} else {
				err = s.pollAll(ctx)
			}
			if err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// Done is closed when Start returns. No poll writes happen after that.
func (s *PollService) Done() <-chan struct{} {
	return s.stopped
}

// RefreshRepo triggers a manual refresh for a specific repository, bypassing
// the polling schedule. It blocks until the refresh completes, the context is
// canceled or the polling loop exits.
func (s *PollService) RefreshRepo(ctx context.Context, repoFullName string) error {
	done := make(chan error, 1)
	req := refreshRequest{
		repoFullName: repoFullName,
		done:         done,
	}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrPollServiceStopped
	}

	// An accepted request is always answered before Start returns.
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule returns the adaptive polling state of a repository. The boolean is
// false until the repository has been polled once.
func (s *PollService) Schedule(repoFullName string) (ScheduleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[repoFullName]
	if !ok {
		return ScheduleInfo{}, false
	}
	return ScheduleInfo{
		Tier:       sched.tier,
		NextPollAt: sched.nextPollAt,
		LastPolled: sched.lastPolled,
	}, true
}

// pollAll polls every watched repository.
func (s *PollService) pollAll(ctx context.Context) error {
	return s.pollRepos(ctx, func(string) bool { return true })
}

// pollDue polls only the repositories whose adaptive schedule is due.
func (s *PollService) pollDue(ctx context.Context) error {
	now := s.now()
	return s.pollRepos(ctx, func(repoFullName string) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		sched, ok := s.schedules[repoFullName]
		return !ok || !now.Before(sched.nextPollAt)
	})
}

func (s *PollService) pollRepos(ctx context.Context, due func(string) bool) error {
	start := time.Now()

	repos, err := s.repoStore.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	var polled, pollErrors int
	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !due(repo.FullName) {
			continue
		}

		polled++
		if err := s.pollRepo(ctx, repo.FullName); err != nil {
			slog.Error("repo poll failed", "repo", repo.FullName, "error", err)
			pollErrors++
		}
	}

	slog.Info("poll cycle complete",
		"repos", len(repos),
		"polled", polled,
		"errors", pollErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// pollRepo synchronizes the open changes of one repository and their checks.
func (s *PollService) pollRepo(ctx context.Context, repoFullName string) error {
	changes, err := s.source.FetchOpenChanges(ctx, repoFullName)
	if err != nil {
		return fmt.Errorf("fetch open changes: %w", err)
	}

	stored, err := s.changeStore.ListByRepository(ctx, repoFullName)
	if err != nil {
		return fmt.Errorf("list stored changes: %w", err)
	}

	storedByID := make(map[int]model.Change, len(stored))
	for _, c := range stored {
		storedByID[c.ChangeID] = c
	}

	fetched := make(map[int]bool, len(changes))
	var notified int
	var activity repoActivity

	for _, change := range changes {
		fetched[change.ChangeID] = true
		change.Repository = repoFullName
		activity.observeChange(change)

		prev, known := storedByID[change.ChangeID]
		if known {
			change.PatchSet = prev.PatchSet
			change.CombinedState = prev.CombinedState
			if prev.HeadSHA != change.HeadSHA {
				change.PatchSet++
				slog.Info("new patch set", "repo", repoFullName, "change", change.ChangeID, "patch_set", change.PatchSet)
			}
		} else {
			change.PatchSet = 1
		}

		sent, err := s.syncChecks(ctx, change, known, &activity)
		if err != nil {
			slog.Error("check sync failed", "repo", repoFullName, "change", change.ChangeID, "error", err)
			continue
		}
		if sent {
			notified++
		}
	}

	var cleanedUp int
	for _, c := range stored {
		if fetched[c.ChangeID] {
			continue
		}
		if err := s.changeStore.Delete(ctx, repoFullName, c.ChangeID); err != nil {
			slog.Error("stale cleanup failed", "repo", repoFullName, "change", c.ChangeID, "error", err)
			continue
		}
		cleanedUp++
		slog.Info("cleaned up closed change", "repo", repoFullName, "change", c.ChangeID)
	}

	s.recordPoll(repoFullName, &activity)

	slog.Info("repo polled",
		"repo", repoFullName,
		"open_changes", len(changes),
		"notified", notified,
		"cleaned_up", cleanedUp,
	)

	return nil
}

// syncChecks fetches and stores the checks of the change's current patch set,
// updates its combined state and notifies when a known change transitions.
// The fetched checks are recorded in activity. It reports whether a
// notification was enqueued. The new combined state is stored only once its
// notification is enqueued, so a failed notification is retried next poll.
func (s *PollService) syncChecks(ctx context.Context, change model.Change, known bool, activity *repoActivity) (bool, error) {
	patchSet := change.CurrentPatchSet()

	pairs, err := s.source.FetchChecks(ctx, change)
	if err != nil {
		return false, fmt.Errorf("fetch checks: %w", err)
	}

	before, err := s.checkStore.GetChecksForPatchSet(ctx, change.Repository, patchSet)
	if err != nil {
		return false, fmt.Errorf("load previous checks: %w", err)
	}

	oldState := change.CombinedState
	newState := CombineCheckStates(pairs)
	activity.observeChecks(pairs, newState)

	// Checks reference their change, so the change row goes first.
	if err := s.changeStore.Upsert(ctx, change); err != nil {
		return false, fmt.Errorf("upsert change: %w", err)
	}

	checks := make([]model.Check, 0, len(pairs))
	for _, cc := range pairs {
		if err := s.checkerStore.Upsert(ctx, cc.Checker); err != nil {
			return false, fmt.Errorf("upsert checker %s: %w", cc.Checker.UUID, err)
		}
		checks = append(checks, cc.Check)
	}

	if err := s.checkStore.ReplaceChecksForPatchSet(ctx, change.Repository, patchSet, checks); err != nil {
		return false, fmt.Errorf("replace checks: %w", err)
	}

	if oldState == newState {
		return false, nil
	}

	change.CombinedState = newState
	notify := known && oldState != ""

	if notify {
		update := model.CombinedCheckStateUpdate{
			Change:   change,
			OldState: oldState,
			NewState: newState,
		}
		if changed := changedChecks(before, pairs); len(changed) == 1 {
			update.TriggeredBy = changed[0]
		}

		if _, err := s.notifier.NotifyCombinedCheckStateUpdated(ctx, update); err != nil {
			return false, fmt.Errorf("notify %s -> %s: %w", oldState, newState, err)
		}
	}

	if err := s.changeStore.Upsert(ctx, change); err != nil {
		return notify, fmt.Errorf("store combined state: %w", err)
	}

	return notify, nil
}

// recordPoll updates the adaptive schedule of a repository after a poll.
func (s *PollService) recordPoll(repoFullName string, activity *repoActivity) {
	now := s.now()
	tier := activity.tier(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules[repoFullName] = &repoSchedule{
		tier:       tier,
		nextPollAt: now.Add(tierInterval(tier)),
		lastPolled: now,
	}
}

// handleRefresh dispatches a manual refresh request.
func (s *PollService) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.repoFullName != "" {
		return s.pollRepo(ctx, req.repoFullName)
	}
	return s.pollAll(ctx)
}
