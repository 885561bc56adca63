package model

import "strings"

// CheckState is the state of a single check run by one checker on one patch set.
type CheckState string

const (
	CheckStateNotStarted  CheckState = "NOT_STARTED"
	CheckStateFailed      CheckState = "FAILED"
	CheckStateScheduled   CheckState = "SCHEDULED"
	CheckStateRunning     CheckState = "RUNNING"
	CheckStateSuccessful  CheckState = "SUCCESSFUL"
	CheckStateNotRelevant CheckState = "NOT_RELEVANT"
)

// CheckStates returns every CheckState in declaration order.
// Renderers iterate this to emit one group per state.
func CheckStates() []CheckState {
	return []CheckState{
		CheckStateNotStarted,
		CheckStateFailed,
		CheckStateScheduled,
		CheckStateRunning,
		CheckStateSuccessful,
		CheckStateNotRelevant,
	}
}

// IsValid reports whether s is one of the declared check states.
func (s CheckState) IsValid() bool {
	for _, known := range CheckStates() {
		if s == known {
			return true
		}
	}
	return false
}

// IsInProgress reports whether the check has not reached a final state yet.
func (s CheckState) IsInProgress() bool {
	switch s {
	case CheckStateNotStarted, CheckStateScheduled, CheckStateRunning:
		return true
	default:
		return false
	}
}

// TemplateKey returns the lowerCamel form of the state name (NOT_STARTED -> notStarted).
func (s CheckState) TemplateKey() string {
	return lowerCamel(string(s))
}

// CombinedCheckState is the aggregate state of all checks on a patch set.
type CombinedCheckState string

const (
	CombinedCheckStateFailed      CombinedCheckState = "FAILED"
	CombinedCheckStateWarning     CombinedCheckState = "WARNING"
	CombinedCheckStateInProgress  CombinedCheckState = "IN_PROGRESS"
	CombinedCheckStateSuccessful  CombinedCheckState = "SUCCESSFUL"
	CombinedCheckStateNotRelevant CombinedCheckState = "NOT_RELEVANT"
)

// IsValid reports whether s is one of the declared combined check states.
func (s CombinedCheckState) IsValid() bool {
	switch s {
	case CombinedCheckStateFailed, CombinedCheckStateWarning, CombinedCheckStateInProgress,
		CombinedCheckStateSuccessful, CombinedCheckStateNotRelevant:
		return true
	default:
		return false
	}
}

func lowerCamel(upperUnderscore string) string {
	parts := strings.Split(strings.ToLower(upperUnderscore), "_")
	var b strings.Builder
	b.Grow(len(upperUnderscore))
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			b.WriteString(part)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
