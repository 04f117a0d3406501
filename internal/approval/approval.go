// Package approval implements the propose/approve/reject/cancel workflow for
// individually reviewed document fields.
package approval

import (
	"errors"
	"time"
)

// Status is the review state of a field.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDisagreed Status = "disagreed"
)

// Action names a transition. It is recorded on comments and changelog entries.
type Action string

const (
	ActionPropose Action = "propose"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

var (
	ErrLocked      = errors.New("field is locked pending approval")
	ErrNotPending  = errors.New("field has no pending change")
	ErrSelfReview  = errors.New("you cannot approve or reject your own change")
	ErrNotProposer = errors.New("only the user who proposed the change can cancel it")
	ErrNoActor     = errors.New("actor is required")
)

// Comment is a note left on a field transition.
type Comment struct {
	UserID string    `json:"userId" firestore:"userId"`
	Text   string    `json:"text" firestore:"text"`
	Action Action    `json:"action" firestore:"action"`
	At     time.Time `json:"at" firestore:"at"`
}

// FieldStatus is the per-field approval record.
type FieldStatus struct {
	Value         string `json:"value" firestore:"value"`
	PreviousValue string `json:"previousValue" firestore:"previousValue"`
	Status        Status `json:"status" firestore:"status"`
	IsLocked      bool   `json:"isLocked" firestore:"isLocked"`
	LastUpdatedBy string `json:"lastUpdatedBy" firestore:"lastUpdatedBy"`
	ApprovedBy    string `json:"approvedBy,omitempty" firestore:"approvedBy,omitempty"`
	// Review state before the pending proposal, restored by Cancel.
	PreviousStatus     Status    `json:"previousStatus,omitempty" firestore:"previousStatus,omitempty"`
	PreviousApprovedBy string    `json:"previousApprovedBy,omitempty" firestore:"previousApprovedBy,omitempty"`
	Comments           []Comment `json:"comments,omitempty" firestore:"comments,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Coerce turns a missing value into the empty string; the document store
// rejects undefined fields.
func Coerce(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Snapshot returns the plain map used for changelog before/after fields.
func (f *FieldStatus) Snapshot() map[string]interface{} {
	if f == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"value":         f.Value,
		"previousValue": f.PreviousValue,
		"status":        string(f.Status),
		"isLocked":      f.IsLocked,
		"lastUpdatedBy": f.LastUpdatedBy,
	}
}

// Propose locks the field with a new value awaiting review.
func (f *FieldStatus) Propose(actor string, value *string, comment string, now time.Time) error {
	if actor == "" {
		return ErrNoActor
	}
	if f.Status == StatusPending || f.IsLocked {
		return ErrLocked
	}
	f.PreviousValue = f.Value
	f.PreviousStatus = f.Status
	f.PreviousApprovedBy = f.ApprovedBy
	f.Value = Coerce(value)
	f.Status = StatusPending
	f.IsLocked = true
	f.LastUpdatedBy = actor
	f.ApprovedBy = ""
	f.UpdatedAt = now
	f.addComment(actor, ActionPropose, comment, now)
	return nil
}

// Approve keeps the proposed value. The proposer cannot approve their own change.
func (f *FieldStatus) Approve(actor, comment string, now time.Time) error {
	if err := f.checkReview(actor); err != nil {
		return err
	}
	f.Status = StatusApproved
	f.IsLocked = false
	f.ApprovedBy = actor
	f.UpdatedAt = now
	f.addComment(actor, ActionApprove, comment, now)
	return nil
}

// Reject rolls the value back to what it was before the proposal.
func (f *FieldStatus) Reject(actor, comment string, now time.Time) error {
	if err := f.checkReview(actor); err != nil {
		return err
	}
	f.Value = f.PreviousValue
	f.Status = StatusDisagreed
	f.IsLocked = false
	f.ApprovedBy = ""
	f.UpdatedAt = now
	f.addComment(actor, ActionReject, comment, now)
	return nil
}

// Cancel lets the proposer withdraw a pending change.
func (f *FieldStatus) Cancel(actor string, now time.Time) error {
	if actor == "" {
		return ErrNoActor
	}
	if f.Status != StatusPending {
		return ErrNotPending
	}
	if actor != f.LastUpdatedBy {
		return ErrNotProposer
	}
	f.Value = f.PreviousValue
	f.Status = f.PreviousStatus
	f.ApprovedBy = f.PreviousApprovedBy
	f.IsLocked = false
	f.UpdatedAt = now
	return nil
}

// Apply runs the transition named by action.
func (f *FieldStatus) Apply(action Action, actor string, value *string, comment string, now time.Time) error {
	switch action {
	case ActionPropose:
		return f.Propose(actor, value, comment, now)
	case ActionApprove:
		return f.Approve(actor, comment, now)
	case ActionReject:
		return f.Reject(actor, comment, now)
	case ActionCancel:
		return f.Cancel(actor, now)
	}
	return errors.New("unknown approval action " + string(action))
}

func (f *FieldStatus) checkReview(actor string) error {
	if actor == "" {
		return ErrNoActor
	}
	if f.Status != StatusPending {
		return ErrNotPending
	}
	if actor == f.LastUpdatedBy {
		return ErrSelfReview
	}
	return nil
}

func (f *FieldStatus) addComment(actor string, action Action, text string, now time.Time) {
	if text == "" {
		return
	}
	f.Comments = append(f.Comments, Comment{UserID: actor, Text: text, Action: action, At: now})
}
