package application

import "github.com/ericfisherdev/checknotify/internal/domain/model"

// CombineCheckStates aggregates the checks of one patch set into a single
// CombinedCheckState. Priority: failed required > in progress > failed
// optional (warning) > successful > not relevant.
func CombineCheckStates(checks []model.CheckerCheck) model.CombinedCheckState {
	var failedRequired, failedOptional, inProgress, successful int

	for _, cc := range checks {
		switch {
		case cc.Check.State == model.CheckStateFailed && cc.Checker.Required:
			failedRequired++
		case cc.Check.State == model.CheckStateFailed:
			failedOptional++
		case cc.Check.State.IsInProgress():
			inProgress++
		case cc.Check.State == model.CheckStateSuccessful:
			successful++
		}
	}

	switch {
	case failedRequired > 0:
		return model.CombinedCheckStateFailed
	case inProgress > 0:
		return model.CombinedCheckStateInProgress
	case failedOptional > 0:
		return model.CombinedCheckStateWarning
	case successful > 0:
		return model.CombinedCheckStateSuccessful
	default:
		return model.CombinedCheckStateNotRelevant
	}
}

// changedChecks returns the UUIDs of checkers whose check state differs
// between before and after, including checks that appeared or disappeared.
func changedChecks(before []model.Check, after []model.CheckerCheck) []model.CheckerUUID {
	prev := make(map[model.CheckerUUID]model.CheckState, len(before))
	for _, c := range before {
		prev[c.Key.CheckerUUID] = c.State
	}

	var changed []model.CheckerUUID
	current := make(map[model.CheckerUUID]bool, len(after))
	for _, cc := range after {
		uuid := cc.Check.Key.CheckerUUID
		current[uuid] = true
		if state, ok := prev[uuid]; !ok || state != cc.Check.State {
			changed = append(changed, uuid)
		}
	}
	for _, c := range before {
		if !current[c.Key.CheckerUUID] {
			changed = append(changed, c.Key.CheckerUUID)
		}
	}

	return changed
}
