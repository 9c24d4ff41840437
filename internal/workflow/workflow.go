// Package workflow holds the invoice approval transition table.
//
//	Draft ──submit──▶ Submitted ──approve──▶ Approved ──approve──▶ Invoiced
//	                      │                      │
//	                      └──reject──▶ Rejected ◀┘
//	                                      │
//	Draft ◀───────────reopen──────────────┘
//
// The package is pure: it decides what a transition does and never touches
// storage.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"invoiceflow/internal/model"
)

// Action is a workflow verb exposed on the HTTP surface.
type Action string

const (
	Submit  Action = "submit"
	Approve Action = "approve"
	Reject  Action = "reject"
	Reopen  Action = "reopen"
)

// Actions lists every action in table order.
var Actions = []Action{Submit, Approve, Reject, Reopen}

// DefaultReopenComment is recorded when reopen is called without a comment.
const DefaultReopenComment = "Reopened for modification"

// Transition is one row of the table.
type Transition struct {
	From   model.InvoiceStatus
	Action Action
	To     model.InvoiceStatus

	// EventAction and DefaultRole describe the approval event written for
	// the transition. RoleFromRequest lets the caller name the approval
	// stage (manager, accounting) instead of the default.
	EventAction     string
	DefaultRole     string
	RoleFromRequest bool

	CommentRequired bool
	DefaultComment  string

	// Message is the human readable success message.
	Message string
}

var table = []Transition{
	{From: model.StatusDraft, Action: Submit, To: model.StatusSubmitted,
		EventAction: model.ActionApprove, DefaultRole: model.ApproverField,
		Message: "Invoice submitted for approval"},
	{From: model.StatusSubmitted, Action: Approve, To: model.StatusApproved,
		EventAction: model.ActionApprove, DefaultRole: model.ApproverManager, RoleFromRequest: true,
		Message: "Invoice approved successfully"},
	{From: model.StatusApproved, Action: Approve, To: model.StatusInvoiced,
		EventAction: model.ActionApprove, DefaultRole: model.ApproverManager, RoleFromRequest: true,
		Message: "Invoice approved successfully"},
	{From: model.StatusSubmitted, Action: Reject, To: model.StatusRejected,
		EventAction: model.ActionReject, DefaultRole: model.ApproverManager, RoleFromRequest: true,
		CommentRequired: true,
		Message:         "Invoice rejected successfully"},
	{From: model.StatusApproved, Action: Reject, To: model.StatusRejected,
		EventAction: model.ActionReject, DefaultRole: model.ApproverManager, RoleFromRequest: true,
		CommentRequired: true,
		Message:         "Invoice rejected successfully"},
	{From: model.StatusRejected, Action: Reopen, To: model.StatusDraft,
		EventAction: model.ActionRequestChange, DefaultRole: model.ApproverField,
		DefaultComment: DefaultReopenComment,
		Message:        "Invoice reopened for modification"},
}

// InvalidTransitionError reports an action that is not permitted from the
// invoice's current status.
type InvalidTransitionError struct {
	From   model.InvoiceStatus
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow: cannot %s an invoice in status %s", e.Action, e.From)
}

// Message mirrors the wording clients already rely on.
func (e *InvalidTransitionError) Message() string {
	switch e.Action {
	case Submit:
		return "Only Draft invoices can be submitted"
	case Approve:
		return "Invalid status for approval"
	case Reject:
		return "Invalid status for rejection"
	case Reopen:
		return "Only Rejected invoices can be reopened"
	default:
		return "Invalid status for this action"
	}
}

// ParseAction maps a path segment to an Action.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, true
		}
	}
	return "", false
}

// Next returns the transition for (from, action) or an *InvalidTransitionError.
func Next(from model.InvoiceStatus, action Action) (Transition, error) {
	for _, t := range table {
		if t.From == from && t.Action == action {
			return t, nil
		}
	}
	return Transition{}, &InvalidTransitionError{From: from, Action: action}
}

// RequiresComment reports whether action needs a non-empty comment
// regardless of the current status. Checked before the invoice is read.
func RequiresComment(action Action) bool {
	for _, t := range table {
		if t.Action == action && t.CommentRequired {
			return true
		}
	}
	return false
}

// Allowed lists the actions available from a status.
func Allowed(from model.InvoiceStatus) []Action {
	var out []Action
	for _, t := range table {
		if t.From == from {
			out = append(out, t.Action)
		}
	}
	return out
}

// Role resolves the approver role recorded on the event.
func (t Transition) Role(requested string) string {
	if t.RoleFromRequest {
		switch requested {
		case model.ApproverField, model.ApproverManager, model.ApproverAccounting:
			return requested
		}
	}
	return t.DefaultRole
}

// Comment resolves the comment recorded on the event, nil when none.
func (t Transition) Comment(requested string) *string {
	c := strings.TrimSpace(requested)
	if c == "" {
		c = t.DefaultComment
	}
	if c == "" {
		return nil
	}
	return &c
}

// Columns returns the invoice columns a transition writes. Entering
// Approved stamps the approver, entering Invoiced stamps the invoicing time.
func (t Transition) Columns(actor string, at time.Time) map[string]any {
	cols := map[string]any{
		"status":     t.To,
		"updated_at": at,
	}
	switch t.To {
	case model.StatusApproved:
		cols["approved_by"] = actor
		cols["approved_at"] = at
	case model.StatusInvoiced:
		cols["invoiced_at"] = at
	}
	return cols
}

// Event builds the approval event for the transition.
func (t Transition) Event(inv *model.Invoice, actor, role, comment string, at time.Time) *model.ApprovalEvent {
	return &model.ApprovalEvent{
		InvoiceID:      inv.ID,
		ApproverRole:   t.Role(role),
		ApproverEmail:  actor,
		Action:         t.EventAction,
		Comment:        t.Comment(comment),
		PreviousStatus: t.From,
		NewStatus:      t.To,
		ApprovedAt:     at,
	}
}
