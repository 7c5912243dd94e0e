// Package apperr defines the error taxonomy shared by every service. Each
// error carries a kind (mapped to an HTTP status at the edge), a machine
// code clients key on, and optional details naming the offending items.
package apperr

import "errors"

type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindStateConflict
	KindUnauthorized
	KindForbidden
	KindDependency
	KindInternal
)

// Machine codes
const (
	CodeMissingField        = "MISSING_FIELD"
	CodeDuplicateSequence   = "DUPLICATE_SEQUENCE"
	CodeUnknownDependency   = "UNKNOWN_DEPENDENCY"
	CodeCycleDetected       = "CYCLE_DETECTED"
	CodeStepsInProgress     = "STEPS_IN_PROGRESS"
	CodeStepNotDeletable    = "STEP_NOT_DELETABLE"
	CodeTemplateNotFound    = "TEMPLATE_NOT_FOUND"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodeTaskNotFound        = "TASK_NOT_FOUND"
	CodeStepNotFound        = "STEP_NOT_FOUND"
	CodeConflictNotFound    = "CONFLICT_NOT_FOUND"
	CodeAlreadyResolved     = "ALREADY_RESOLVED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeMissingReason       = "MISSING_REASON"
	CodeMissingAssignee     = "MISSING_ASSIGNEE"
	CodeInvalidAction       = "INVALID_ACTION"
	CodeAdvisoryBlocked     = "ADVISORY_BLOCKED"
	CodeAdvisoryUnavailable = "ADVISORY_UNAVAILABLE"
	CodeUnsupportedEntity   = "UNSUPPORTED_ENTITY"
	CodeUnsupportedField    = "UNSUPPORTED_FIELD"
	CodeForbidden           = "FORBIDDEN"
	CodeInternal            = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, code, message string, details interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

func Validation(code, message string, details interface{}) *Error {
	return New(KindValidation, code, message, details)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message, nil)
}

func StateConflict(code, message string, details interface{}) *Error {
	return New(KindStateConflict, code, message, details)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, message, nil)
}

func Dependency(code, message string, details interface{}) *Error {
	return New(KindDependency, code, message, details)
}

func Internal(message string) *Error {
	return New(KindInternal, CodeInternal, message, nil)
}

// As unwraps err into an *Error, or nil if it is not one.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	ae := As(err)
	return ae != nil && ae.Kind == kind
}
