package model

// Order status (derived projection, written only by the workflow service)
type OrderStatus string

const (
	OrderStatusIntake           OrderStatus = "INTAKE"
	OrderStatusDesignApproval   OrderStatus = "DESIGN_APPROVAL"
	OrderStatusInProduction     OrderStatus = "IN_PRODUCTION"
	OrderStatusQCPassed         OrderStatus = "QC_PASSED"
	OrderStatusQCFailed         OrderStatus = "QC_FAILED"
	OrderStatusReadyForDelivery OrderStatus = "READY_FOR_DELIVERY"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

// ProjectionCandidate reports whether the status is one the production
// projection derives (rather than an intake/approval/terminal state owned
// by other parts of the ERP).
func (s OrderStatus) ProjectionCandidate() bool {
	switch s {
	case OrderStatusInProduction, OrderStatusQCPassed, OrderStatusQCFailed, OrderStatusReadyForDelivery:
		return true
	}
	return false
}

// Production method (printing/production technique)
type Method string

const (
	MethodSilkscreen  Method = "silkscreen"
	MethodEmbroidery  Method = "embroidery"
	MethodDTF         Method = "dtf"
	MethodSublimation Method = "sublimation"
)

var ValidMethods = []Method{
	MethodSilkscreen, MethodEmbroidery, MethodDTF, MethodSublimation,
}

// Routing step status
type StepStatus string

const (
	StepStatusPlanned    StepStatus = "PLANNED"
	StepStatusReady      StepStatus = "READY"
	StepStatusInProgress StepStatus = "IN_PROGRESS"
	StepStatusDone       StepStatus = "DONE"
	StepStatusBlocked    StepStatus = "BLOCKED"
)

// IsStarted reports whether a step has left planning and become immutable
// history for routing customization purposes.
func (s StepStatus) IsStarted() bool {
	return s == StepStatusInProgress || s == StepStatusDone
}

// Join type: how multiple depends_on entries combine
type JoinType string

const (
	JoinAND JoinType = "AND"
	JoinOR  JoinType = "OR"
)

// Task status
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusRejected   TaskStatus = "REJECTED"
	TaskStatusOnHold     TaskStatus = "ON_HOLD"
)

// TaskStatusPriority orders task statuses for automatic conflict resolution:
// when two clients disagree on a task's status, the higher-priority one wins.
var TaskStatusPriority = map[TaskStatus]int{
	TaskStatusPending:    0,
	TaskStatusOnHold:     1,
	TaskStatusInProgress: 2,
	TaskStatusRejected:   3,
	TaskStatusCompleted:  4,
}

// Task action names (explicit transitions, not raw status writes)
type TaskAction string

const (
	TaskActionStart    TaskAction = "start"
	TaskActionComplete TaskAction = "complete"
	TaskActionReject   TaskAction = "reject"
	TaskActionHold     TaskAction = "hold"
	TaskActionReassign TaskAction = "reassign"
)

// Task types (one per production stage)
type TaskType string

const (
	TaskTypeCutting        TaskType = "cutting"
	TaskTypePrinting       TaskType = "printing"
	TaskTypeEmbroidery     TaskType = "embroidery"
	TaskTypeSewing         TaskType = "sewing"
	TaskTypeQualityControl TaskType = "quality_control"
	TaskTypeFinishing      TaskType = "finishing"
)

// Sync mutation operations
type SyncOperation string

const (
	SyncOpCreate SyncOperation = "CREATE"
	SyncOpUpdate SyncOperation = "UPDATE"
	SyncOpDelete SyncOperation = "DELETE"
)

// Conflict resolution methods
type ResolutionMethod string

const (
	ResolutionLocal  ResolutionMethod = "LOCAL"
	ResolutionServer ResolutionMethod = "SERVER"
	ResolutionManual ResolutionMethod = "MANUAL"
	ResolutionAuto   ResolutionMethod = "AUTO"
)

// User roles
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
)

// Privileged reports whether the role may perform any workflow action.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}
