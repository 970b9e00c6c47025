// Package lifecycle holds the ticket lifecycle rules: which status transitions
// exist, who may trigger them, and when a closed ticket may be reopened.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/deskline/helpdesk-service/internal/domain"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

// Action enumerates the operations that can be applied to a ticket.
type Action string

const (
	ActionResolve Action = "resolve"
	ActionReopen  Action = "reopen"
	ActionClose   Action = "close"
	ActionAssign  Action = "assign"
	ActionRespond Action = "respond"
	ActionView    Action = "view"
)

// transitions maps from-state × action to the resulting state. A missing
// entry means the action conflicts with the current state.
var transitions = map[domain.TicketStatus]map[Action]domain.TicketStatus{
	domain.TicketStatusOpen: {
		ActionResolve: domain.TicketStatusResolved,
		ActionClose:   domain.TicketStatusClosed,
		ActionAssign:  domain.TicketStatusOpen,
		ActionRespond: domain.TicketStatusOpen,
	},
	domain.TicketStatusPending: {
		ActionResolve: domain.TicketStatusResolved,
		ActionClose:   domain.TicketStatusClosed,
		ActionAssign:  domain.TicketStatusPending,
		ActionRespond: domain.TicketStatusPending,
	},
	domain.TicketStatusResolved: {
		ActionReopen:  domain.TicketStatusPending,
		ActionClose:   domain.TicketStatusClosed,
		ActionAssign:  domain.TicketStatusResolved,
		ActionRespond: domain.TicketStatusResolved,
	},
	domain.TicketStatusClosed: {
		ActionReopen: domain.TicketStatusPending,
		ActionAssign: domain.TicketStatusClosed,
	},
}

// Transition describes a status change produced by an action.
type Transition struct {
	Action Action
	From   domain.TicketStatus
	To     domain.TicketStatus
	At     time.Time
}

// Changed reports whether the transition moved the ticket to another status.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// StateMachine enforces the transition table.
type StateMachine struct{}

// NewStateMachine returns the ticket state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// Next returns the status reached by applying action in status from.
func (m *StateMachine) Next(from domain.TicketStatus, action Action) (domain.TicketStatus, error) {
	to, ok := transitions[from][action]
	if !ok {
		return "", apperrors.NewStateConflict(
			fmt.Sprintf("cannot %s a ticket in status %s", action, from),
			map[string]any{"status": from, "action": action},
		)
	}
	return to, nil
}

// Apply moves ticket through action and stamps the timestamps the action owns.
// Owner and response fields are never touched here. The ticket is left
// unchanged when the action conflicts with its status.
func (m *StateMachine) Apply(ticket *domain.Ticket, action Action, now time.Time) (Transition, error) {
	to, err := m.Next(ticket.Status, action)
	if err != nil {
		return Transition{}, err
	}
	tr := Transition{Action: action, From: ticket.Status, To: to, At: now}

	switch action {
	case ActionResolve:
		ticket.ResolvedAt = &now
	case ActionClose:
		ticket.ClosedAt = &now
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
	case ActionReopen:
		ticket.ClosedAt = nil
	}
	ticket.Status = to
	return tr, nil
}
