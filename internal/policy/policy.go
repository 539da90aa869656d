// Package policy decides which actor may do what to a task. Every function
// here is pure: no storage access, no logging.
package policy

import (
	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/types"
)

type Action string

const (
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionViewAnalytics Action = "viewAnalytics"
	ActionViewAuditLog  Action = "viewAuditLog"
)

// Actor is the authenticated identity performing a request.
type Actor struct {
	ID   uint
	Role string
}

// CanPerform reports whether actor may perform action on task. task may be nil
// for actions that are not about a specific task.
func CanPerform(actor Actor, action Action, task *models.Task) bool {
	if !types.ValidRole(actor.Role) {
		return false
	}

	switch action {
	case ActionCreate:
		return true
	case ActionUpdate:
		if task == nil {
			return false
		}
		switch actor.Role {
		case types.RoleAdmin:
			return true
		case types.RoleManager:
			return task.IsAssignedTo(actor.ID)
		default:
			return task.CreatedByID == actor.ID
		}
	case ActionDelete:
		if task == nil {
			return false
		}
		return actor.Role == types.RoleAdmin || task.CreatedByID == actor.ID
	case ActionViewAnalytics:
		return actor.Role == types.RoleAdmin || actor.Role == types.RoleManager
	case ActionViewAuditLog:
		return actor.Role == types.RoleAdmin
	}

	return false
}

// Authorize is CanPerform returning a Forbidden error that explains the denial.
func Authorize(actor Actor, action Action, task *models.Task) error {
	if CanPerform(actor, action, task) {
		return nil
	}
	return apperr.Forbidden(denialMessage(actor, action))
}

func denialMessage(actor Actor, action Action) string {
	switch action {
	case ActionUpdate:
		if actor.Role == types.RoleManager {
			return "Forbidden: managers can only update tasks assigned to them."
		}
		if actor.Role == types.RoleUser {
			return "Forbidden: users can only update their own tasks."
		}
	case ActionDelete:
		return "Forbidden: only admin or creator can delete this task."
	}
	return "Forbidden: insufficient permissions."
}
