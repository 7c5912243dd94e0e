package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stitchworks/api/internal/model"
)

// Redis key layout:
//
//	order:{id}            order JSON
//	order:{id}:steps      set of step ids
//	order:{id}:tasks      set of task ids
//	step:{id}             routing step JSON
//	task:{id}             task JSON
//	conflict:{id}         conflict JSON
//	conflicts:all         set of conflict ids
//	conflicts:open        set of unresolved conflict ids
//	mutation:log          list of committed mutation entries (append order)
//	template:{key}        route template JSON

func orderKey(id string) string      { return "order:" + id }
func orderStepsKey(id string) string { return "order:" + id + ":steps" }
func orderTasksKey(id string) string { return "order:" + id + ":tasks" }
func stepKey(id string) string       { return "step:" + id }
func taskKey(id string) string       { return "task:" + id }
func conflictKey(id string) string   { return "conflict:" + id }
func templateKey(key string) string  { return "template:" + key }

const (
	conflictsAllKey  = "conflicts:all"
	conflictsOpenKey = "conflicts:open"
	mutationLogKey   = "mutation:log"
)

func getJSON(ctx context.Context, rdb *redis.Client, key string, out interface{}) error {
	data, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

func setJSON(ctx context.Context, rdb *redis.Client, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return rdb.Set(ctx, key, data, 0).Err()
}

// RedisOrderRepository stores orders as JSON blobs.
type RedisOrderRepository struct {
	rdb *redis.Client
}

func NewRedisOrderRepository(rdb *redis.Client) *RedisOrderRepository {
	return &RedisOrderRepository{rdb: rdb}
}

func (r *RedisOrderRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := getJSON(ctx, r.rdb, orderKey(id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *RedisOrderRepository) Save(ctx context.Context, order *model.Order) error {
	return setJSON(ctx, r.rdb, orderKey(order.ID), order)
}

// RedisRoutingStepRepository stores steps as JSON blobs with a per-order
// id set as the index.
type RedisRoutingStepRepository struct {
	rdb *redis.Client
}

func NewRedisRoutingStepRepository(rdb *redis.Client) *RedisRoutingStepRepository {
	return &RedisRoutingStepRepository{rdb: rdb}
}

func (r *RedisRoutingStepRepository) Get(ctx context.Context, id string) (*model.RoutingStep, error) {
	var s model.RoutingStep
	if err := getJSON(ctx, r.rdb, stepKey(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisRoutingStepRepository) ListByOrder(ctx context.Context, orderID string) ([]*model.RoutingStep, error) {
	ids, err := r.rdb.SMembers(ctx, orderStepsKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	steps := make([]*model.RoutingStep, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	sortSteps(steps)
	return steps, nil
}

func (r *RedisRoutingStepRepository) Save(ctx context.Context, step *model.RoutingStep) error {
	if err := setJSON(ctx, r.rdb, stepKey(step.ID), step); err != nil {
		return err
	}
	return r.rdb.SAdd(ctx, orderStepsKey(step.OrderID), step.ID).Err()
}

func (r *RedisRoutingStepRepository) Delete(ctx context.Context, step *model.RoutingStep) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, stepKey(step.ID))
	pipe.SRem(ctx, orderStepsKey(step.OrderID), step.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// ReplaceForOrder deletes the removed steps and writes the new set in a
// single MULTI/EXEC transaction so the replacement is all-or-nothing.
func (r *RedisRoutingStepRepository) ReplaceForOrder(ctx context.Context, orderID string, remove []*model.RoutingStep, steps []*model.RoutingStep) error {
	pipe := r.rdb.TxPipeline()
	for _, s := range remove {
		pipe.Del(ctx, stepKey(s.ID))
		pipe.SRem(ctx, orderStepsKey(orderID), s.ID)
	}
	for _, s := range steps {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal step %s: %w", s.ID, err)
		}
		pipe.Set(ctx, stepKey(s.ID), data, 0)
		pipe.SAdd(ctx, orderStepsKey(orderID), s.ID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RedisTaskRepository stores tasks as JSON blobs with a per-order id set.
type RedisTaskRepository struct {
	rdb *redis.Client
}

func NewRedisTaskRepository(rdb *redis.Client) *RedisTaskRepository {
	return &RedisTaskRepository{rdb: rdb}
}

func (r *RedisTaskRepository) Get(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := getJSON(ctx, r.rdb, taskKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RedisTaskRepository) ListByOrder(ctx context.Context, orderID string) ([]*model.Task, error) {
	ids, err := r.rdb.SMembers(ctx, orderTasksKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	tasks := make([]*model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	sortTasks(tasks)
	return tasks, nil
}

func (r *RedisTaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := setJSON(ctx, r.rdb, taskKey(task.ID), task); err != nil {
		return err
	}
	return r.rdb.SAdd(ctx, orderTasksKey(task.OrderID), task.ID).Err()
}

func (r *RedisTaskRepository) Delete(ctx context.Context, task *model.Task) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, taskKey(task.ID))
	pipe.SRem(ctx, orderTasksKey(task.OrderID), task.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// RedisConflictRepository stores conflicts with all/open id sets.
type RedisConflictRepository struct {
	rdb *redis.Client
}

func NewRedisConflictRepository(rdb *redis.Client) *RedisConflictRepository {
	return &RedisConflictRepository{rdb: rdb}
}

func (r *RedisConflictRepository) Get(ctx context.Context, id string) (*model.SyncConflict, error) {
	var c model.SyncConflict
	if err := getJSON(ctx, r.rdb, conflictKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RedisConflictRepository) List(ctx context.Context, unresolvedOnly bool) ([]*model.SyncConflict, error) {
	indexKey := conflictsAllKey
	if unresolvedOnly {
		indexKey = conflictsOpenKey
	}
	ids, err := r.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	conflicts := make([]*model.SyncConflict, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	sortConflicts(conflicts)
	return conflicts, nil
}

func (r *RedisConflictRepository) Save(ctx context.Context, conflict *model.SyncConflict) error {
	data, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict %s: %w", conflict.ID, err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, conflictKey(conflict.ID), data, 0)
	pipe.SAdd(ctx, conflictsAllKey, conflict.ID)
	if conflict.Resolved {
		pipe.SRem(ctx, conflictsOpenKey, conflict.ID)
	} else {
		pipe.SAdd(ctx, conflictsOpenKey, conflict.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RedisMutationLogRepository appends committed mutations to a list in
// commit order.
type RedisMutationLogRepository struct {
	rdb *redis.Client
}

func NewRedisMutationLogRepository(rdb *redis.Client) *RedisMutationLogRepository {
	return &RedisMutationLogRepository{rdb: rdb}
}

func (r *RedisMutationLogRepository) Append(ctx context.Context, entry *model.MutationLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return r.rdb.RPush(ctx, mutationLogKey, data).Err()
}

func (r *RedisMutationLogRepository) Since(ctx context.Context, t time.Time) ([]*model.MutationLogEntry, error) {
	raw, err := r.rdb.LRange(ctx, mutationLogKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]*model.MutationLogEntry, 0, len(raw))
	for _, item := range raw {
		var e model.MutationLogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, err
		}
		if e.CommittedAt.After(t) {
			entries = append(entries, &e)
		}
	}
	return entries, nil
}

// RedisTemplateRepository stores route templates by key.
type RedisTemplateRepository struct {
	rdb *redis.Client
}

func NewRedisTemplateRepository(rdb *redis.Client) *RedisTemplateRepository {
	return &RedisTemplateRepository{rdb: rdb}
}

func (r *RedisTemplateRepository) Get(ctx context.Context, key string) (*model.RouteTemplate, error) {
	var tpl model.RouteTemplate
	if err := getJSON(ctx, r.rdb, templateKey(key), &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *RedisTemplateRepository) Save(ctx context.Context, tpl *model.RouteTemplate) error {
	return setJSON(ctx, r.rdb, templateKey(tpl.Key), tpl)
}
