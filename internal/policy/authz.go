// Package policy is the single place authorization and pipeline rules are
// defined. Handlers and services call Evaluate instead of scattering
// per-endpoint role checks.
package policy

import (
	"fmt"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/model"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role model.Role
}

// Resource identifies what an action targets. OwnerID is the task assignee
// for task resources, empty otherwise.
type Resource struct {
	Type    string
	ID      string
	OwnerID string
}

// Actions
const (
	ActionRoutingCustomize = "routing.customize"
	ActionRoutingRead      = "routing.read"
	ActionTaskStart        = "task.start"
	ActionTaskComplete     = "task.complete"
	ActionTaskReject       = "task.reject"
	ActionTaskHold         = "task.hold"
	ActionTaskReassign     = "task.reassign"
	ActionTaskCreate       = "task.create"
	ActionTaskDelete       = "task.delete"
	ActionSyncUpload       = "sync.upload"
	ActionSyncDownload     = "sync.download"
	ActionConflictResolve  = "conflict.resolve"
	ActionAdmin            = "admin"
)

// TaskActionName maps a workflow action to its policy action.
func TaskActionName(action model.TaskAction) string {
	return "task." + string(action)
}

// Evaluate decides whether the actor may perform the action on the resource.
// Privileged roles (admin, manager) may do anything except admin-only
// operations, which require admin. A task's current assignee may start,
// complete or reject their own task. Reads and sync are open to any
// authenticated user.
func Evaluate(actor Actor, action string, res Resource) error {
	switch action {
	case ActionAdmin, ActionTaskDelete:
		if actor.Role == model.RoleAdmin {
			return nil
		}
	case ActionRoutingRead, ActionSyncUpload, ActionSyncDownload:
		return nil
	case ActionTaskStart, ActionTaskComplete, ActionTaskReject:
		if actor.Role.Privileged() {
			return nil
		}
		if res.Type == "task" && res.OwnerID != "" && res.OwnerID == actor.ID {
			return nil
		}
	default:
		if actor.Role.Privileged() {
			return nil
		}
	}
	return apperr.Forbidden(fmt.Sprintf("role %s may not perform %s", actor.Role, action))
}
