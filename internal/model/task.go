package model

import "time"

// Task is a unit of production work assigned to a user. Status only moves
// through the workflow state machine's named actions.
type Task struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	Type         TaskType   `json:"type"`
	AssigneeID   string     `json:"assignee_id,omitempty"`
	Status       TaskStatus `json:"status"`
	Quantity     int        `json:"quantity,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
