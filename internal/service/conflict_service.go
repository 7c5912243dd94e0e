package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/audit"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
)

// ConflictService resolves sync conflicts. Every resolution routes through
// the same entity applier used for direct application, so resolving can
// itself fail when it would violate the entity's invariants. In that case
// the conflict stays unresolved and visible.
type ConflictService struct {
	conflicts repository.ConflictRepository
	registry  *ApplierRegistry
	audit     audit.Recorder
}

func NewConflictService(conflicts repository.ConflictRepository, registry *ApplierRegistry, recorder audit.Recorder) *ConflictService {
	return &ConflictService{conflicts: conflicts, registry: registry, audit: recorder}
}

// List returns conflicts, optionally only unresolved ones.
func (s *ConflictService) List(ctx context.Context, unresolvedOnly bool) ([]*model.SyncConflict, error) {
	return s.conflicts.List(ctx, unresolvedOnly)
}

// Resolve commits one conflict with the given policy. LOCAL commits the
// client value, SERVER keeps the canonical value (a no-op write), MANUAL
// commits an operator-supplied replacement.
func (s *ConflictService) Resolve(ctx context.Context, actor policy.Actor, conflictID string, method model.ResolutionMethod, value interface{}, reason string) (*model.SyncConflict, error) {
	if err := policy.Evaluate(actor, policy.ActionConflictResolve, policy.Resource{Type: "conflict", ID: conflictID}); err != nil {
		return nil, err
	}

	conflict, err := s.conflicts.Get(ctx, conflictID)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound(apperr.CodeConflictNotFound, fmt.Sprintf("conflict %s not found", conflictID))
	}
	if err != nil {
		return nil, err
	}
	if conflict.Resolved {
		return nil, apperr.StateConflict(apperr.CodeAlreadyResolved,
			fmt.Sprintf("conflict %s is already resolved", conflictID), nil)
	}

	var chosen interface{}
	switch method {
	case model.ResolutionLocal:
		chosen = conflict.LocalValue
	case model.ResolutionServer:
		chosen = conflict.ServerValue
	case model.ResolutionManual:
		chosen = value
	default:
		return nil, apperr.Validation(apperr.CodeInvalidAction, fmt.Sprintf("unknown resolution method %q", method), nil)
	}

	if err := s.commit(ctx, actor, conflict, method, chosen, reason); err != nil {
		return nil, err
	}
	return conflict, nil
}

// commit writes the chosen value (unless the server side won, where the
// canonical value already stands) and marks the conflict resolved.
func (s *ConflictService) commit(ctx context.Context, actor policy.Actor, conflict *model.SyncConflict, method model.ResolutionMethod, chosen interface{}, reason string) error {
	if !valuesEqual(chosen, conflict.ServerValue) {
		applier, ok := s.registry.Get(conflict.EntityType)
		if !ok {
			return apperr.Validation(apperr.CodeUnsupportedEntity,
				fmt.Sprintf("no applier registered for entity type %q", conflict.EntityType), nil)
		}
		if err := applier.ApplyField(ctx, actor, conflict.EntityID, conflict.Field, chosen); err != nil {
			// Resolution failed; the conflict stays open.
			return err
		}
	}

	now := time.Now().UTC()
	conflict.Resolved = true
	conflict.ResolutionMethod = method
	conflict.ResolvedValue = chosen
	conflict.ResolvedBy = actor.ID
	conflict.ResolvedAt = &now
	if err := s.conflicts.Save(ctx, conflict); err != nil {
		return apperr.Internal(fmt.Sprintf("failed to save conflict: %v", err))
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     "conflict.resolved",
		EntityType: conflict.EntityType,
		EntityID:   conflict.EntityID,
		Before:     map[string]interface{}{"field": conflict.Field, "local": conflict.LocalValue, "server": conflict.ServerValue},
		After:      map[string]interface{}{"field": conflict.Field, "chosen": chosen, "method": method},
		ActorID:    actor.ID,
		Reason:     reason,
	})
	return nil
}

// ResolveBulk resolves several conflicts, reporting per-item outcomes and
// aggregated counts. One failure does not stop the rest.
func (s *ConflictService) ResolveBulk(ctx context.Context, actor policy.Actor, items []model.BulkResolveItem) (*model.BulkResolveResponse, error) {
	resp := &model.BulkResolveResponse{Results: make([]model.ResolveItemResult, 0, len(items))}
	for _, item := range items {
		result := model.ResolveItemResult{ConflictID: item.ConflictID}
		if _, err := s.Resolve(ctx, actor, item.ConflictID, item.Method, item.Value, item.Reason); err != nil {
			result.Error = err.Error()
			resp.Failed++
		} else {
			result.Resolved = true
			resp.Resolved++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// systemActor commits automatic resolutions.
var systemActor = policy.Actor{ID: "system", Role: model.RoleAdmin}

// TryAutoResolve runs the opportunistic heuristics on a fresh conflict and,
// when one matches, commits the winner through the normal resolution path.
// Returns true when the conflict ended up resolved. On any heuristic miss or
// commit failure the conflict is left open for a human.
func (s *ConflictService) TryAutoResolve(ctx context.Context, conflict *model.SyncConflict) bool {
	chosen, ok := autoResolution(conflict)
	if !ok {
		return false
	}
	if err := s.commit(ctx, systemActor, conflict, model.ResolutionAuto, chosen, "automatic resolution"); err != nil {
		return false
	}
	return true
}

// autoResolution picks a winner for recognized field patterns only:
// timestamp-like fields take the chronologically later value, a task's
// status takes the higher-priority status, and plain quantity fields take
// the larger number. Unrecognized fields are never guessed at.
func autoResolution(c *model.SyncConflict) (interface{}, bool) {
	if c.EntityType == "task" && c.Field == "status" {
		localPrio, okL := model.TaskStatusPriority[model.TaskStatus(asString(c.LocalValue))]
		serverPrio, okS := model.TaskStatusPriority[model.TaskStatus(asString(c.ServerValue))]
		if !okL || !okS {
			return nil, false
		}
		if localPrio > serverPrio {
			return c.LocalValue, true
		}
		return c.ServerValue, true
	}

	if isTimestampField(c.Field) {
		localT, errL := parseTimeValue(c.LocalValue)
		serverT, errS := parseTimeValue(c.ServerValue)
		if errL != nil || errS != nil {
			return nil, false
		}
		if localT.After(serverT) {
			return c.LocalValue, true
		}
		return c.ServerValue, true
	}

	if isQuantityField(c.Field) {
		localN, okL := c.LocalValue.(float64)
		serverN, okS := c.ServerValue.(float64)
		if !okL || !okS {
			return nil, false
		}
		if localN > serverN {
			return c.LocalValue, true
		}
		return c.ServerValue, true
	}

	return nil, false
}

func isTimestampField(field string) bool {
	return strings.HasSuffix(field, "_at") || strings.HasSuffix(field, "_date") ||
		strings.HasSuffix(field, "_start") || strings.HasSuffix(field, "_end")
}

func isQuantityField(field string) bool {
	return strings.Contains(field, "qty") || strings.Contains(field, "quantity")
}

func parseTimeValue(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("not a timestamp string")
	}
	return time.Parse(time.RFC3339, s)
}
