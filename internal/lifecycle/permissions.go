package lifecycle

import (
	"fmt"

	"github.com/deskline/helpdesk-service/internal/domain"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

// DenialKind says how a denied decision surfaces to the caller.
type DenialKind string

const (
	DenialNone          DenialKind = ""
	DenialForbidden     DenialKind = "forbidden"
	DenialStateConflict DenialKind = "state_conflict"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Kind    DenialKind
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func forbid(reason string) Decision {
	return Decision{Kind: DenialForbidden, Reason: reason}
}

func conflict(reason string) Decision {
	return Decision{Kind: DenialStateConflict, Reason: reason}
}

// Err converts a denied decision to the matching domain error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Kind == DenialStateConflict {
		return apperrors.NewStateConflict(d.Reason, nil)
	}
	return apperrors.NewForbidden(d.Reason)
}

// Resolver decides whether an actor may perform an action on a ticket.
type Resolver struct{}

// NewResolver returns a permission resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Can evaluates role and company scope for action on ticket. It does not look
// at ticket status; the reopen window is applied by ReopenPolicy.
func (r *Resolver) Can(actor domain.Actor, action Action, ticket *domain.Ticket) Decision {
	switch actor.Role {
	case domain.RoleAgent, domain.RoleCompanyAdmin:
		if !actor.InCompany(ticket.CompanyID) {
			return forbid(fmt.Sprintf("%s is not permitted on tickets of another company", action))
		}
		return allow()
	case domain.RoleUser:
		switch action {
		case ActionResolve, ActionAssign, ActionClose:
			return forbid(fmt.Sprintf("customers cannot %s tickets", action))
		case ActionReopen, ActionRespond, ActionView:
			if actor.UserID != "" && actor.UserID == ticket.CreatorID {
				return allow()
			}
			return forbid("only the ticket creator may access this ticket")
		}
		return forbid("unsupported action")
	case domain.RolePlatformAdmin:
		// Platform admins manage tenants, not individual tickets.
		return forbid("platform admins have no ticket-level authority")
	default:
		return forbid("unknown role")
	}
}
