// Package policy is the single place role-based permissions are decided.
// Every function here is pure: no storage access, no clock, no side effects.
package policy

import (
	"fmt"

	"taskmaster/internal/domain"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
)

type Kind string

const (
	KindProject  Kind = "project"
	KindTask     Kind = "task"
	KindUser     Kind = "user"
	KindPriority Kind = "priority"
	KindEvent    Kind = "event"
)

// DeniedError indicates the identity's role does not permit the action.
type DeniedError struct {
	Role   domain.Role
	Action Action
	Kind   Kind
}

func (e DeniedError) Error() string {
	return fmt.Sprintf("%ss cannot %s %ss", e.Role, e.Action, e.Kind)
}

// Deny builds the denial for an identity attempting action on kind.
func Deny(id domain.Identity, action Action, kind Kind) error {
	return DeniedError{Role: id.Role, Action: action, Kind: kind}
}

// CanPerform is the authorization table. Notable asymmetries are deliberate
// and must not be "fixed": any authenticated identity, clients included, may
// create a task, while project creation is staff-only; employees may delete
// tasks but not projects.
func CanPerform(id domain.Identity, action Action, kind Kind) bool {
	if !id.Role.Valid() || id.UserID == "" {
		return false
	}
	switch kind {
	case KindProject:
		switch action {
		case ActionCreate, ActionUpdate:
			return id.Role == domain.RoleAdmin || id.Role == domain.RoleEmployee
		case ActionDelete:
			return id.Role == domain.RoleAdmin
		case ActionView:
			return true // per-record filtering is the visibility package's job
		}
	case KindTask:
		switch action {
		case ActionCreate, ActionUpdate:
			return true
		case ActionDelete:
			return id.Role == domain.RoleAdmin || id.Role == domain.RoleEmployee
		case ActionView:
			return true
		}
	case KindUser:
		switch action {
		case ActionCreate, ActionDelete:
			return id.Role == domain.RoleAdmin
		case ActionUpdate:
			// Target-sensitive; CanUpdateUser holds the full rule. The
			// coarse answer is "any identity may update something".
			return true
		case ActionView:
			return id.Role == domain.RoleAdmin || id.Role == domain.RoleEmployee
		}
	case KindPriority:
		switch action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return id.Role == domain.RoleAdmin
		case ActionView:
			return true
		}
	case KindEvent:
		// The audit trail exposes actions across every record, so it is
		// staff reading material only. Events are written by the system,
		// never through the API.
		switch action {
		case ActionView:
			return id.Role == domain.RoleAdmin || id.Role == domain.RoleEmployee
		}
	}
	return false
}

// CanUpdateUser refines the user-update row of the table: anyone may update
// their own profile, but changing a role — their own included — requires
// admin. Self-service role promotion is deliberately rejected.
func CanUpdateUser(actor domain.Identity, targetUserID string, roleChange bool) bool {
	if !actor.Role.Valid() || actor.UserID == "" {
		return false
	}
	if roleChange {
		return actor.Role == domain.RoleAdmin
	}
	return actor.Role == domain.RoleAdmin || actor.UserID == targetUserID
}
