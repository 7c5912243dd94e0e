package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stitchworks/api/internal/policy"
)

// EntityApplier is the capability a syncable entity exposes to the sync
// engine and the conflict resolver. Adding a new syncable entity means
// implementing this once and registering it; neither the engine nor the
// resolver changes.
type EntityApplier interface {
	EntityType() string
	// CurrentValue returns the present canonical value of one field, in its
	// JSON representation.
	CurrentValue(ctx context.Context, entityID, field string) (interface{}, error)
	// ApplyField commits one field value through the entity's own mutation
	// path, enforcing that entity's invariants (a task status write still
	// passes the workflow transition rules).
	ApplyField(ctx context.Context, actor policy.Actor, entityID, field string, value interface{}) error
	Create(ctx context.Context, actor policy.Actor, payload map[string]interface{}) (string, error)
	Delete(ctx context.Context, actor policy.Actor, entityID string) error
}

// ApplierRegistry looks appliers up by entity type.
type ApplierRegistry struct {
	appliers map[string]EntityApplier
}

func NewApplierRegistry(appliers ...EntityApplier) *ApplierRegistry {
	r := &ApplierRegistry{appliers: make(map[string]EntityApplier, len(appliers))}
	for _, a := range appliers {
		r.appliers[a.EntityType()] = a
	}
	return r
}

func (r *ApplierRegistry) Get(entityType string) (EntityApplier, bool) {
	a, ok := r.appliers[entityType]
	return a, ok
}

// fieldValue extracts one field from an entity via its JSON representation,
// so comparisons see exactly what a client sees on the wire.
func fieldValue(entity interface{}, field string) (interface{}, bool) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

// valuesEqual compares two values through their canonical JSON encoding, so
// 5 and 5.0, or equal timestamps in different Go types, compare equal the
// way they would after a wire round-trip.
func valuesEqual(a, b interface{}) bool {
	da, errA := json.Marshal(a)
	db, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(da) == string(db)
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
