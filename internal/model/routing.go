package model

import "time"

// RoutingStep is one stage of production work for an order, tied to a
// workcenter, with ordering and dependency metadata. The set of steps for
// one order, with an edge from each dependency to its dependent, must be
// acyclic at all times.
type RoutingStep struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	Name           string     `json:"name"`
	Workcenter     string     `json:"workcenter"`
	Sequence       int        `json:"sequence"`
	DependsOn      []string   `json:"depends_on,omitempty"`
	JoinType       JoinType   `json:"join_type,omitempty"`
	CanRunParallel bool       `json:"can_run_parallel"`
	Status         StepStatus `json:"status"`
	PlannedStart   *time.Time `json:"planned_start,omitempty"`
	PlannedEnd     *time.Time `json:"planned_end,omitempty"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RouteTemplate is a named, reusable ordered set of routing-step definitions
// instantiated per order. Offsets are resolved against the order's due date.
type RouteTemplate struct {
	Key    string         `json:"key"`
	Name   string         `json:"name"`
	Method Method         `json:"method"`
	Steps  []TemplateStep `json:"steps"`
}

// TemplateStep defines one step of a template. Start/end offsets are in days
// relative to the order due date; negative means before the due date.
type TemplateStep struct {
	Name            string   `json:"name"`
	Workcenter      string   `json:"workcenter"`
	DependsOn       []string `json:"depends_on,omitempty"`
	JoinType        JoinType `json:"join_type,omitempty"`
	CanRunParallel  bool     `json:"can_run_parallel"`
	StartOffsetDays int      `json:"start_offset_days"`
	EndOffsetDays   int      `json:"end_offset_days"`
}

// AdvisoryResult is the verdict of the external advisory validation service.
// Issues and warnings are surfaced verbatim, never reinterpreted.
type AdvisoryResult struct {
	Blocked  bool     `json:"blocked"`
	Risk     string   `json:"risk,omitempty"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
