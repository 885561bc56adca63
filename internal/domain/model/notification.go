package model

import (
	"encoding/json"
	"time"
)

// RecipientType is the address header a recipient class is placed in.
type RecipientType string

const (
	RecipientTo  RecipientType = "TO"
	RecipientCC  RecipientType = "CC"
	RecipientBCC RecipientType = "BCC"
)

// NotifyType is a project watch subscription category.
type NotifyType string

const (
	NotifyNewChanges       NotifyType = "NEW_CHANGES"
	NotifyNewPatchSets     NotifyType = "NEW_PATCHSETS"
	NotifyAllComments      NotifyType = "ALL_COMMENTS"
	NotifySubmittedChanges NotifyType = "SUBMITTED_CHANGES"
	NotifyAbandonedChanges NotifyType = "ABANDONED_CHANGES"
)

// RecipientPolicy declares which recipient classes a notification goes to.
// The mail pipeline resolves the classes into addresses; an empty
// RecipientType means the class is not included.
type RecipientPolicy struct {
	ThreadedReply bool          `json:"threaded_reply"`
	Authors       RecipientType `json:"authors,omitempty"`
	Approvers     RecipientType `json:"approvers,omitempty"`
	StarredBy     RecipientType `json:"starred_by,omitempty"`
	Watchers      []NotifyType  `json:"watchers,omitempty"`
}

// CheckerGroup is every (checker, check) pair in one CheckState, sorted by checker name.
type CheckerGroup struct {
	State   CheckState
	Members []CheckerCheck
}

// NotificationPayload is the built content of a combined check state notification.
// Zero states, a nil Checker and a nil AllCheckers mean "not recorded".
// Fields holds the same content as named template fields.
type NotificationPayload struct {
	OldCombinedCheckState CombinedCheckState
	NewCombinedCheckState CombinedCheckState
	Checker               *CheckerCheck
	AllCheckers           []CheckerGroup
	Fields                *FieldMap
}

// HasContent reports whether at least one of transition, single check or
// all-checks listing is present.
func (p NotificationPayload) HasContent() bool {
	return p.NewCombinedCheckState != "" || p.Checker != nil || p.AllCheckers != nil
}

// CombinedCheckStateUpdate describes a change of the combined check state of a
// change's current patch set. TriggeredBy is empty when the update was not caused
// by exactly one checker.
type CombinedCheckStateUpdate struct {
	Change      Change
	OldState    CombinedCheckState
	NewState    CombinedCheckState
	TriggeredBy CheckerUUID
}

// RenderedEmail is the output of an EmailRenderer. HTML is empty when HTML
// rendering is disabled.
type RenderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

// OutboxStatus is the delivery state of an outgoing email.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
)

// OutgoingEmail is a composed notification waiting in the outbox.
type OutgoingEmail struct {
	ID          string
	MessageType string
	Repository  string
	PatchSet    PatchSetID
	Policy      RecipientPolicy
	Subject     string
	TextBody    string
	HTMLBody    string
	Payload     json.RawMessage
	Status      OutboxStatus
	CreatedAt   time.Time
	SentAt      time.Time // Zero until marked sent.
}
