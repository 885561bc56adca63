package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

// NotifyService composes combined check state notifications and places them
// in the outbox. It depends only on port interfaces.
type NotifyService struct {
	checkerStore driven.CheckerStore
	checkStore   driven.CheckStore
	renderer     driven.EmailRenderer
	outbox       driven.OutboxStore
	now          func() time.Time
}

// NewNotifyService creates a new NotifyService with the required dependencies.
func NewNotifyService(
	checkerStore driven.CheckerStore,
	checkStore driven.CheckStore,
	renderer driven.EmailRenderer,
	outbox driven.OutboxStore,
) *NotifyService {
	return &NotifyService{
		checkerStore: checkerStore,
		checkStore:   checkStore,
		renderer:     renderer,
		outbox:       outbox,
		now:          time.Now,
	}
}

// NotifyCombinedCheckStateUpdated composes the notification for update and
// enqueues it. Invalid update data fails with ErrInvalidArgument and nothing
// is enqueued.
func (s *NotifyService) NotifyCombinedCheckStateUpdated(ctx context.Context, update model.CombinedCheckStateUpdate) (*model.OutgoingEmail, error) {
	email, err := s.compose(ctx, update)
	if err != nil {
		return nil, err
	}

	if err := s.outbox.Enqueue(ctx, *email); err != nil {
		return nil, fmt.Errorf("enqueue notification for %s %s: %w", update.Change.Repository, email.PatchSet, err)
	}

	slog.Info("notification enqueued",
		"id", email.ID,
		"repo", email.Repository,
		"change", email.PatchSet.ChangeID,
		"patch_set", email.PatchSet.Number,
		"old_state", string(update.OldState),
		"new_state", string(update.NewState),
	)

	return email, nil
}

// Preview composes the notification for update without enqueuing it.
func (s *NotifyService) Preview(ctx context.Context, update model.CombinedCheckStateUpdate) (*model.OutgoingEmail, error) {
	return s.compose(ctx, update)
}

func (s *NotifyService) compose(ctx context.Context, update model.CombinedCheckStateUpdate) (*model.OutgoingEmail, error) {
	change := update.Change
	patchSet := change.CurrentPatchSet()

	checks, err := s.loadCheckerChecks(ctx, change.Repository, patchSet)
	if err != nil {
		return nil, err
	}

	content := NewCombinedCheckStateEmail()
	if err := content.RecordStateTransition(update.OldState, update.NewState); err != nil {
		return nil, fmt.Errorf("record state transition: %w", err)
	}

	if update.TriggeredBy != "" {
		if err := recordTriggeringCheck(content, checks, update.TriggeredBy); err != nil {
			return nil, err
		}
	}

	if err := content.RecordAllChecks(checks); err != nil {
		return nil, fmt.Errorf("record all checks: %w", err)
	}

	return s.toOutgoingEmail(ctx, change, content)
}

func (s *NotifyService) toOutgoingEmail(ctx context.Context, change model.Change, content EmailContent) (*model.OutgoingEmail, error) {
	payload := content.Build()

	rendered, err := s.renderer.Render(ctx, change, payload.Fields)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", content.MessageType(), err)
	}

	data, err := json.Marshal(payload.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &model.OutgoingEmail{
		ID:          uuid.NewString(),
		MessageType: content.MessageType(),
		Repository:  change.Repository,
		PatchSet:    change.CurrentPatchSet(),
		Policy:      content.RecipientPolicy(),
		Subject:     rendered.Subject,
		TextBody:    rendered.Text,
		HTMLBody:    rendered.HTML,
		Payload:     data,
		Status:      model.OutboxStatusPending,
		CreatedAt:   s.now().UTC(),
	}, nil
}

// loadCheckerChecks pairs the stored checks of a patch set with their
// checkers. Checks whose checker is unknown are skipped.
func (s *NotifyService) loadCheckerChecks(ctx context.Context, repository string, patchSet model.PatchSetID) ([]model.CheckerCheck, error) {
	checks, err := s.checkStore.GetChecksForPatchSet(ctx, repository, patchSet)
	if err != nil {
		return nil, fmt.Errorf("load checks for %s %s: %w", repository, patchSet, err)
	}

	checkers, err := s.checkerStore.ListByRepository(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("load checkers for %s: %w", repository, err)
	}

	byUUID := make(map[model.CheckerUUID]model.Checker, len(checkers))
	for _, c := range checkers {
		byUUID[c.UUID] = c
	}

	pairs := make([]model.CheckerCheck, 0, len(checks))
	for _, check := range checks {
		checker, ok := byUUID[check.Key.CheckerUUID]
		if !ok {
			slog.Warn("check without known checker skipped",
				"repo", repository,
				"patch_set", patchSet.String(),
				"checker", string(check.Key.CheckerUUID),
			)
			continue
		}
		pairs = append(pairs, model.CheckerCheck{Checker: checker, Check: check})
	}

	return pairs, nil
}

func recordTriggeringCheck(content *CombinedCheckStateEmail, checks []model.CheckerCheck, triggeredBy model.CheckerUUID) error {
	for _, cc := range checks {
		if cc.Checker.UUID != triggeredBy {
			continue
		}
		if err := content.RecordSingleCheck(&cc.Checker, &cc.Check); err != nil {
			return fmt.Errorf("record triggering check: %w", err)
		}
		return nil
	}

	slog.Warn("triggering checker has no check on patch set", "checker", string(triggeredBy))
	return nil
}
