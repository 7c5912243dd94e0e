package model

import "time"

// SyncMutation is one queued client edit uploaded on reconnect. Fields holds
// the new value per changed field; Base holds the value the client believed
// was current when it made the edit (used for conflict detection).
type SyncMutation struct {
	ClientTS   time.Time              `json:"client_ts"`
	UserID     string                 `json:"user_id,omitempty"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Operation  SyncOperation          `json:"operation"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Base       map[string]interface{} `json:"base,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// SyncConflict records a base-value mismatch detected on upload. It is never
// silently dropped: it either reaches a terminal resolved state or stays
// visible indefinitely.
type SyncConflict struct {
	ID               string           `json:"id"`
	EntityType       string           `json:"entity_type"`
	EntityID         string           `json:"entity_id"`
	Field            string           `json:"field"`
	LocalValue       interface{}      `json:"local_value"`
	ServerValue      interface{}      `json:"server_value"`
	Resolved         bool             `json:"resolved"`
	ResolutionMethod ResolutionMethod `json:"resolution_method,omitempty"`
	ResolvedValue    interface{}      `json:"resolved_value,omitempty"`
	ResolvedBy       string           `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// MutationLogEntry is one committed server-side change. The log feeds sync
// download: clients replay entries committed after their last-sync timestamp.
type MutationLogEntry struct {
	ID          string        `json:"id"`
	EntityType  string        `json:"entity_type"`
	EntityID    string        `json:"entity_id"`
	Operation   SyncOperation `json:"operation"`
	Field       string        `json:"field,omitempty"`
	Value       interface{}   `json:"value,omitempty"`
	ActorID     string        `json:"actor_id,omitempty"`
	CommittedAt time.Time     `json:"committed_at"`
}
