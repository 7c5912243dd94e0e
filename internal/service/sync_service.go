package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stitchworks/api/internal/apperr"
	"github.com/stitchworks/api/internal/model"
	"github.com/stitchworks/api/internal/policy"
	"github.com/stitchworks/api/internal/repository"
)

// SyncService reconciles batches of offline client edits against the
// canonical state. The base-value comparison stands in for a version
// counter: two clients racing on the same field have the second one
// detected as a conflict, never silently overwritten.
type SyncService struct {
	registry  *ApplierRegistry
	conflicts repository.ConflictRepository
	resolver  *ConflictService
	log       repository.MutationLogRepository
}

func NewSyncService(registry *ApplierRegistry, conflicts repository.ConflictRepository, resolver *ConflictService, mutationLog repository.MutationLogRepository) *SyncService {
	return &SyncService{
		registry:  registry,
		conflicts: conflicts,
		resolver:  resolver,
		log:       mutationLog,
	}
}

// Upload processes a client's pending queue strictly in submitted order.
// Each mutation is independent: an entity-level rejection is reported and
// skipped without blocking the rest of the batch.
func (s *SyncService) Upload(ctx context.Context, actor policy.Actor, mutations []model.SyncMutation) (*model.SyncUploadResponse, error) {
	resp := &model.SyncUploadResponse{
		Conflicts: []*model.SyncConflict{},
		Errors:    []model.MutationError{},
	}

	for i, m := range mutations {
		applier, ok := s.registry.Get(m.EntityType)
		if !ok {
			resp.Errors = append(resp.Errors, mutationError(i, m, apperr.New(apperr.KindValidation,
				apperr.CodeUnsupportedEntity, "entity type "+m.EntityType+" is not syncable", nil)))
			continue
		}

		switch m.Operation {
		case model.SyncOpCreate:
			if _, err := applier.Create(ctx, actor, m.Payload); err != nil {
				resp.Errors = append(resp.Errors, mutationError(i, m, err))
				continue
			}
			resp.Applied++

		case model.SyncOpDelete:
			if err := applier.Delete(ctx, actor, m.EntityID); err != nil {
				resp.Errors = append(resp.Errors, mutationError(i, m, err))
				continue
			}
			resp.Applied++

		case model.SyncOpUpdate:
			s.applyUpdate(ctx, actor, i, m, applier, resp)

		default:
			resp.Errors = append(resp.Errors, mutationError(i, m, apperr.New(apperr.KindValidation,
				apperr.CodeInvalidAction, "unknown sync operation "+string(m.Operation), nil)))
		}
	}

	resp.LastSyncAt = time.Now().UTC()
	return resp, nil
}

// applyUpdate compares each changed field's declared base value against the
// present canonical value:
//
//   - canonical already equals the incoming value: a retried upload seeing
//     its own prior write, so a no-op match, not a conflict;
//   - canonical equals the base: apply through the entity's mutation path;
//   - otherwise: record a conflict, canonical value untouched, then give
//     the automatic heuristics one chance before a human sees it.
func (s *SyncService) applyUpdate(ctx context.Context, actor policy.Actor, index int, m model.SyncMutation, applier EntityApplier, resp *model.SyncUploadResponse) {
	fields := make([]string, 0, len(m.Fields))
	for f := range m.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		newValue := m.Fields[field]
		current, err := applier.CurrentValue(ctx, m.EntityID, field)
		if err != nil {
			resp.Errors = append(resp.Errors, mutationError(index, m, err))
			return
		}

		if valuesEqual(current, newValue) {
			resp.Noops++
			continue
		}

		if valuesEqual(current, m.Base[field]) {
			if err := applier.ApplyField(ctx, actor, m.EntityID, field, newValue); err != nil {
				resp.Errors = append(resp.Errors, mutationError(index, m, err))
				continue
			}
			resp.Applied++
			continue
		}

		conflict := &model.SyncConflict{
			ID:          uuid.New().String(),
			EntityType:  m.EntityType,
			EntityID:    m.EntityID,
			Field:       field,
			LocalValue:  newValue,
			ServerValue: current,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.conflicts.Save(ctx, conflict); err != nil {
			resp.Errors = append(resp.Errors, mutationError(index, m, apperr.Internal("failed to record conflict")))
			continue
		}
		s.resolver.TryAutoResolve(ctx, conflict)
		resp.Conflicts = append(resp.Conflicts, conflict)
	}
}

// Download returns every mutation committed after the client's last-sync
// timestamp, in commit order. Always succeeds; the list may be empty.
func (s *SyncService) Download(ctx context.Context, since time.Time) (*model.SyncDownloadResponse, error) {
	entries, err := s.log.Since(ctx, since)
	if err != nil {
		return nil, apperr.Internal("failed to read mutation log")
	}
	if entries == nil {
		entries = []*model.MutationLogEntry{}
	}
	return &model.SyncDownloadResponse{
		Entries:    entries,
		ServerTime: time.Now().UTC(),
	}, nil
}

func mutationError(index int, m model.SyncMutation, err error) model.MutationError {
	me := model.MutationError{
		Index:      index,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Message:    err.Error(),
	}
	if ae := apperr.As(err); ae != nil {
		me.Code = ae.Code
	} else {
		me.Code = apperr.CodeInternal
	}
	return me
}
