package application

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// ErrInvalidArgument is returned when a builder input is missing or when a
// check does not belong to the checker it is paired with.
var ErrInvalidArgument = errors.New("invalid argument")

// CombinedCheckStateUpdatedMessageType identifies the notification in the outbox.
const CombinedCheckStateUpdatedMessageType = "combinedCheckStateUpdate"

// Template field names.
const (
	fieldOldCombinedCheckState = "oldCombinedCheckState"
	fieldNewCombinedCheckState = "newCombinedCheckState"
	fieldChecker               = "checker"
	fieldAllCheckers           = "allCheckers"
)

// combinedCheckStateUpdatedPolicy is fixed for this notification type.
var combinedCheckStateUpdatedPolicy = model.RecipientPolicy{
	ThreadedReply: true,
	Authors:       model.RecipientTo,
	Approvers:     model.RecipientCC,
	StarredBy:     model.RecipientBCC,
	Watchers:      []model.NotifyType{model.NotifyAllComments},
}

// EmailContent is the contract between a notification type and the mail
// pipeline: what to send and to whom.
type EmailContent interface {
	MessageType() string
	RecipientPolicy() model.RecipientPolicy
	Build() model.NotificationPayload
}

var _ EmailContent = (*CombinedCheckStateEmail)(nil)

// CombinedCheckStateEmail collects the facts about a combined check state
// update and builds the notification payload from them. It is meant to be
// filled by one goroutine for one event and then discarded.
type CombinedCheckStateEmail struct {
	oldState    model.CombinedCheckState
	newState    model.CombinedCheckState
	checker     *model.CheckerCheck
	allCheckers []model.CheckerCheck
}

// NewCombinedCheckStateEmail returns an empty builder.
func NewCombinedCheckStateEmail() *CombinedCheckStateEmail {
	return &CombinedCheckStateEmail{}
}

// MessageType returns CombinedCheckStateUpdatedMessageType.
func (e *CombinedCheckStateEmail) MessageType() string {
	return CombinedCheckStateUpdatedMessageType
}

// RecipientPolicy returns the fixed recipient policy: a threaded reply to the
// change thread, authors as TO, approvers as CC, users who starred the change
// as BCC, and ALL_COMMENTS watchers.
func (e *CombinedCheckStateEmail) RecipientPolicy() model.RecipientPolicy {
	policy := combinedCheckStateUpdatedPolicy
	policy.Watchers = slices.Clone(policy.Watchers)
	return policy
}

// RecordStateTransition sets the old and new combined check state. Both are
// required and must be declared states.
func (e *CombinedCheckStateEmail) RecordStateTransition(oldState, newState model.CombinedCheckState) error {
	if oldState == "" {
		return fmt.Errorf("%w: old combined check state is missing", ErrInvalidArgument)
	}
	if newState == "" {
		return fmt.Errorf("%w: new combined check state is missing", ErrInvalidArgument)
	}
	if !oldState.IsValid() {
		return fmt.Errorf("%w: unknown combined check state %q", ErrInvalidArgument, oldState)
	}
	if !newState.IsValid() {
		return fmt.Errorf("%w: unknown combined check state %q", ErrInvalidArgument, newState)
	}

	e.oldState = oldState
	e.newState = newState
	return nil
}

// RecordSingleCheck sets the check the notification is about. The check must
// belong to the checker and be in a declared state; otherwise nothing is recorded.
func (e *CombinedCheckStateEmail) RecordSingleCheck(checker *model.Checker, check *model.Check) error {
	if check == nil {
		return fmt.Errorf("%w: check is missing", ErrInvalidArgument)
	}
	if checker == nil {
		return fmt.Errorf("%w: checker is missing", ErrInvalidArgument)
	}

	pair := clonePair(model.CheckerCheck{Checker: *checker, Check: *check})
	if !pair.Matches() {
		return fmt.Errorf("%w: checker %s doesn't match check %s", ErrInvalidArgument, checker.UUID, check.Key)
	}
	if !check.State.IsValid() {
		return fmt.Errorf("%w: check %s has unknown state %q", ErrInvalidArgument, check.Key, check.State)
	}

	e.checker = &pair
	return nil
}

// RecordAllChecks sets the checks of every checker on the patch set. checks
// may be empty but not nil. Every pair must match, every check must be in a
// declared state and checker UUIDs must be unique; otherwise nothing is
// recorded. The slice is copied.
func (e *CombinedCheckStateEmail) RecordAllChecks(checks []model.CheckerCheck) error {
	if checks == nil {
		return fmt.Errorf("%w: checks by checker is missing", ErrInvalidArgument)
	}

	seen := make(map[model.CheckerUUID]bool, len(checks))
	for _, pair := range checks {
		if !pair.Matches() {
			return fmt.Errorf("%w: checker %s doesn't match check %s", ErrInvalidArgument, pair.Checker.UUID, pair.Check.Key)
		}
		if !pair.Check.State.IsValid() {
			return fmt.Errorf("%w: check %s has unknown state %q", ErrInvalidArgument, pair.Check.Key, pair.Check.State)
		}
		if seen[pair.Checker.UUID] {
			return fmt.Errorf("%w: duplicate checker %s", ErrInvalidArgument, pair.Checker.UUID)
		}
		seen[pair.Checker.UUID] = true
	}

	snapshot := make([]model.CheckerCheck, 0, len(checks))
	for _, pair := range checks {
		snapshot = append(snapshot, clonePair(pair))
	}
	e.allCheckers = snapshot
	return nil
}

// Build returns the payload for the currently recorded facts. It does not
// modify the builder and returns equal payloads until the next Record call.
func (e *CombinedCheckStateEmail) Build() model.NotificationPayload {
	fields := model.NewFieldMap()
	payload := model.NotificationPayload{
		OldCombinedCheckState: e.oldState,
		NewCombinedCheckState: e.newState,
		Fields:                fields,
	}

	if e.oldState != "" {
		fields.Set(fieldOldCombinedCheckState, string(e.oldState))
	}
	if e.newState != "" {
		fields.Set(fieldNewCombinedCheckState, string(e.newState))
	}

	if e.checker != nil {
		pair := clonePair(*e.checker)
		payload.Checker = &pair
		fields.Set(fieldChecker, checkerFields(pair))
	}

	if e.allCheckers != nil {
		groups := groupByState(e.allCheckers)
		payload.AllCheckers = groups

		all := model.NewFieldMap()
		for _, group := range groups {
			members := make([]*model.FieldMap, 0, len(group.Members))
			for _, pair := range group.Members {
				members = append(members, checkerFields(pair))
			}
			all.Set(group.State.TemplateKey(), members)
		}
		fields.Set(fieldAllCheckers, all)
	}

	return payload
}

// clonePair copies the optional string fields so later writes through the
// caller's pointers do not change recorded content.
func clonePair(pair model.CheckerCheck) model.CheckerCheck {
	pair.Checker.Description = cloneString(pair.Checker.Description)
	pair.Checker.URL = cloneString(pair.Checker.URL)
	pair.Check.Message = cloneString(pair.Check.Message)
	pair.Check.URL = cloneString(pair.Check.URL)
	return pair
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// groupByState returns one group per CheckState in declaration order. Members
// are sorted by checker name; pairs with equal names keep their input order.
// Callers have already rejected undeclared states.
func groupByState(checks []model.CheckerCheck) []model.CheckerGroup {
	sorted := make([]model.CheckerCheck, 0, len(checks))
	for _, pair := range checks {
		sorted = append(sorted, clonePair(pair))
	}
	slices.SortStableFunc(sorted, func(a, b model.CheckerCheck) int {
		return strings.Compare(a.Checker.Name, b.Checker.Name)
	})

	states := model.CheckStates()
	index := make(map[model.CheckState]int, len(states))
	groups := make([]model.CheckerGroup, len(states))
	for i, state := range states {
		index[state] = i
		groups[i] = model.CheckerGroup{State: state, Members: []model.CheckerCheck{}}
	}

	for _, pair := range sorted {
		i := index[pair.Check.State]
		groups[i].Members = append(groups[i].Members, pair)
	}

	return groups
}

// checkerFields projects a pair into template fields. The check's own fields
// are nested under "check" since checker and check both carry repository and url.
// Unset optional values are left out.
func checkerFields(pair model.CheckerCheck) *model.FieldMap {
	check := pair.Check
	checkData := model.NewFieldMap()
	checkData.Set("change", check.Key.PatchSet.ChangeID)
	checkData.Set("patchSet", check.Key.PatchSet.Number)
	checkData.Set("repository", check.Key.Repository)
	checkData.Set("state", string(check.State))
	checkData.SetOptional("message", check.Message)
	checkData.SetOptional("url", check.URL)

	checker := pair.Checker
	checkerData := model.NewFieldMap()
	checkerData.Set("check", checkData)
	checkerData.Set("uuid", string(checker.UUID))
	checkerData.Set("name", checker.Name)
	checkerData.Set("repository", checker.Repository)
	checkerData.SetOptional("description", checker.Description)
	checkerData.SetOptional("url", checker.URL)

	return checkerData
}
