// Package repository defines the per-entity persistence interfaces the core
// is written against, with a redis implementation (the authoritative store)
// and an in-memory one used by tests and as a dev fallback.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stitchworks/api/internal/model"
)

// ErrNotFound is returned by every Get when the entity is absent. Services
// translate it into the taxonomy's not-found errors.
var ErrNotFound = errors.New("not found")

type OrderRepository interface {
	Get(ctx context.Context, id string) (*model.Order, error)
	Save(ctx context.Context, order *model.Order) error
}

type RoutingStepRepository interface {
	Get(ctx context.Context, id string) (*model.RoutingStep, error)
	ListByOrder(ctx context.Context, orderID string) ([]*model.RoutingStep, error)
	Save(ctx context.Context, step *model.RoutingStep) error
	Delete(ctx context.Context, step *model.RoutingStep) error
	// ReplaceForOrder atomically removes the given steps and inserts the new
	// set. No reader may observe a partially-replaced step set.
	ReplaceForOrder(ctx context.Context, orderID string, remove []*model.RoutingStep, steps []*model.RoutingStep) error
}

type TaskRepository interface {
	Get(ctx context.Context, id string) (*model.Task, error)
	ListByOrder(ctx context.Context, orderID string) ([]*model.Task, error)
	Save(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, task *model.Task) error
}

type ConflictRepository interface {
	Get(ctx context.Context, id string) (*model.SyncConflict, error)
	List(ctx context.Context, unresolvedOnly bool) ([]*model.SyncConflict, error)
	Save(ctx context.Context, conflict *model.SyncConflict) error
}

type MutationLogRepository interface {
	Append(ctx context.Context, entry *model.MutationLogEntry) error
	Since(ctx context.Context, t time.Time) ([]*model.MutationLogEntry, error)
}

type TemplateRepository interface {
	Get(ctx context.Context, key string) (*model.RouteTemplate, error)
	Save(ctx context.Context, tpl *model.RouteTemplate) error
}
