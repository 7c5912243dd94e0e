package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stitchworks/api/internal/model"
)

// Memory implementations back the test suites and serve as a dev fallback
// when redis is unreachable. Values are deep-copied through JSON-free clone
// helpers on the way in and out so callers cannot mutate stored state.

type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*model.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*model.Order)}
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

type MemoryRoutingStepRepository struct {
	mu    sync.RWMutex
	steps map[string]*model.RoutingStep
}

func NewMemoryRoutingStepRepository() *MemoryRoutingStepRepository {
	return &MemoryRoutingStepRepository{steps: make(map[string]*model.RoutingStep)}
}

func cloneStep(s *model.RoutingStep) *model.RoutingStep {
	cp := *s
	cp.DependsOn = append([]string(nil), s.DependsOn...)
	return &cp
}

func (r *MemoryRoutingStepRepository) Get(_ context.Context, id string) (*model.RoutingStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneStep(s), nil
}

func (r *MemoryRoutingStepRepository) ListByOrder(_ context.Context, orderID string) ([]*model.RoutingStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var steps []*model.RoutingStep
	for _, s := range r.steps {
		if s.OrderID == orderID {
			steps = append(steps, cloneStep(s))
		}
	}
	sortSteps(steps)
	return steps, nil
}

func (r *MemoryRoutingStepRepository) Save(_ context.Context, step *model.RoutingStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.ID] = cloneStep(step)
	return nil
}

func (r *MemoryRoutingStepRepository) Delete(_ context.Context, step *model.RoutingStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, step.ID)
	return nil
}

func (r *MemoryRoutingStepRepository) ReplaceForOrder(_ context.Context, orderID string, remove []*model.RoutingStep, steps []*model.RoutingStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range remove {
		delete(r.steps, s.ID)
	}
	for _, s := range steps {
		r.steps[s.ID] = cloneStep(s)
	}
	return nil
}

type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[string]*model.Task)}
}

func (r *MemoryTaskRepository) Get(_ context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryTaskRepository) ListByOrder(_ context.Context, orderID string) ([]*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tasks []*model.Task
	for _, t := range r.tasks {
		if t.OrderID == orderID {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (r *MemoryTaskRepository) Save(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, task.ID)
	return nil
}

type MemoryConflictRepository struct {
	mu        sync.RWMutex
	conflicts map[string]*model.SyncConflict
}

func NewMemoryConflictRepository() *MemoryConflictRepository {
	return &MemoryConflictRepository{conflicts: make(map[string]*model.SyncConflict)}
}

func (r *MemoryConflictRepository) Get(_ context.Context, id string) (*model.SyncConflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conflicts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryConflictRepository) List(_ context.Context, unresolvedOnly bool) ([]*model.SyncConflict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conflicts []*model.SyncConflict
	for _, c := range r.conflicts {
		if unresolvedOnly && c.Resolved {
			continue
		}
		cp := *c
		conflicts = append(conflicts, &cp)
	}
	sortConflicts(conflicts)
	return conflicts, nil
}

func (r *MemoryConflictRepository) Save(_ context.Context, conflict *model.SyncConflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *conflict
	r.conflicts[conflict.ID] = &cp
	return nil
}

type MemoryMutationLogRepository struct {
	mu      sync.RWMutex
	entries []*model.MutationLogEntry
}

func NewMemoryMutationLogRepository() *MemoryMutationLogRepository {
	return &MemoryMutationLogRepository{}
}

func (r *MemoryMutationLogRepository) Append(_ context.Context, entry *model.MutationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemoryMutationLogRepository) Since(_ context.Context, t time.Time) ([]*model.MutationLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.MutationLogEntry
	for _, e := range r.entries {
		if e.CommittedAt.After(t) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MemoryTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*model.RouteTemplate
}

func NewMemoryTemplateRepository() *MemoryTemplateRepository {
	return &MemoryTemplateRepository{templates: make(map[string]*model.RouteTemplate)}
}

func (r *MemoryTemplateRepository) Get(_ context.Context, key string) (*model.RouteTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tpl
	cp.Steps = append([]model.TemplateStep(nil), tpl.Steps...)
	return &cp, nil
}

func (r *MemoryTemplateRepository) Save(_ context.Context, tpl *model.RouteTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tpl
	cp.Steps = append([]model.TemplateStep(nil), tpl.Steps...)
	r.templates[tpl.Key] = &cp
	return nil
}

func sortSteps(steps []*model.RoutingStep) {
	sort.Slice(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
}

func sortTasks(tasks []*model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

func sortConflicts(conflicts []*model.SyncConflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].CreatedAt.Equal(conflicts[j].CreatedAt) {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].CreatedAt.Before(conflicts[j].CreatedAt)
	})
}
