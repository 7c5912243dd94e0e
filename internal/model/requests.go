package model

import "time"

// RoutingStepRequest is a proposed step in a customize call. Name, workcenter
// and sequence presence are checked by the routing validator (not validator
// tags) so the shape errors carry the machine codes clients key on.
type RoutingStepRequest struct {
	Name           string     `json:"name"`
	Workcenter     string     `json:"workcenter"`
	Sequence       *int       `json:"sequence"`
	DependsOn      []string   `json:"depends_on,omitempty"`
	JoinType       JoinType   `json:"join_type,omitempty" validate:"omitempty,oneof=AND OR"`
	CanRunParallel bool       `json:"can_run_parallel"`
	PlannedStart   *time.Time `json:"planned_start,omitempty"`
	PlannedEnd     *time.Time `json:"planned_end,omitempty"`
}

type CustomizeRoutingRequest struct {
	Steps []RoutingStepRequest `json:"steps" validate:"required,min=1,dive"`
}

type ApplyTemplateRequest struct {
	TemplateKey string `json:"template_key" validate:"required"`
}

type RoutingResponse struct {
	OrderID  string          `json:"order_id"`
	Steps    []*RoutingStep  `json:"steps"`
	Advisory *AdvisoryResult `json:"advisory,omitempty"`
}

type TaskActionRequest struct {
	Action     TaskAction `json:"action" validate:"required,oneof=start complete reject hold reassign"`
	Reason     string     `json:"reason,omitempty"`
	AssigneeID string     `json:"assignee_id,omitempty"`
}

type TaskActionResponse struct {
	Task           *Task       `json:"task"`
	OrderStatus    OrderStatus `json:"order_status"`
	ActivatedTasks []string    `json:"activated_tasks,omitempty"`
}

type SyncUploadRequest struct {
	Mutations []SyncMutation `json:"mutations" validate:"required,min=1,dive"`
}

// MutationError reports a single skipped mutation in a batch. The rest of
// the batch still proceeds.
type MutationError struct {
	Index      int    `json:"index"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

type SyncUploadResponse struct {
	Applied    int             `json:"applied"`
	Noops      int             `json:"noops"`
	Conflicts  []*SyncConflict `json:"conflicts"`
	Errors     []MutationError `json:"errors"`
	LastSyncAt time.Time       `json:"last_sync_at"`
}

type SyncDownloadResponse struct {
	Entries    []*MutationLogEntry `json:"entries"`
	ServerTime time.Time           `json:"server_time"`
}

type ResolveConflictRequest struct {
	Method ResolutionMethod `json:"method" validate:"required,oneof=LOCAL SERVER MANUAL"`
	Value  interface{}      `json:"value,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

type BulkResolveItem struct {
	ConflictID string           `json:"conflict_id" validate:"required"`
	Method     ResolutionMethod `json:"method" validate:"required,oneof=LOCAL SERVER MANUAL"`
	Value      interface{}      `json:"value,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

type BulkResolveRequest struct {
	Items []BulkResolveItem `json:"items" validate:"required,min=1,dive"`
}

type ResolveItemResult struct {
	ConflictID string `json:"conflict_id"`
	Resolved   bool   `json:"resolved"`
	Error      string `json:"error,omitempty"`
}

type BulkResolveResponse struct {
	Resolved int                 `json:"resolved"`
	Failed   int                 `json:"failed"`
	Results  []ResolveItemResult `json:"results"`
}
