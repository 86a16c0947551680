// Package errors provides structured error types for stackctl.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeDuplicateIdentifier  ErrorCode = "DUPLICATE_IDENTIFIER"
	ErrCodeUnresolvedReference  ErrorCode = "UNRESOLVED_REFERENCE"
	ErrCodeCyclicDependency     ErrorCode = "CYCLIC_DEPENDENCY"
	ErrCodeUnresolvableProperty ErrorCode = "UNRESOLVABLE_PROPERTY"
	ErrCodeRemoteOperation      ErrorCode = "REMOTE_OPERATION_FAILED"
	ErrCodeLocked               ErrorCode = "STATE_LOCKED"
	ErrCodeBackend              ErrorCode = "BACKEND_ERROR"
	ErrCodeParse                ErrorCode = "PARSE_ERROR"
	ErrCodeProvider             ErrorCode = "PROVIDER_ERROR"
)

// Error is the base error type for stackctl
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// DuplicateIdentifier reports a resource identifier declared more than once.
func DuplicateIdentifier(id string) *Error {
	return &Error{
		Code:    ErrCodeDuplicateIdentifier,
		Message: fmt.Sprintf("resource %q is declared more than once", id),
		Details: map[string]interface{}{
			"resource": id,
		},
	}
}

// UnresolvedReference reports a reference to a resource that does not exist.
func UnresolvedReference(from, to string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedReference,
		Message: fmt.Sprintf("resource %q references %q, which is not declared", from, to),
		Details: map[string]interface{}{
			"resource":  from,
			"reference": to,
		},
	}
}

// CyclicDependency reports a dependency cycle. The cycle is an ordered list of
// resource identifiers where each entry depends on the next and the last
// depends on the first.
func CyclicDependency(cycle []string) *Error {
	return &Error{
		Code:    ErrCodeCyclicDependency,
		Message: fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")),
		Details: map[string]interface{}{
			"cycle": cycle,
		},
	}
}

// UnresolvableProperty reports a property whose reference token cannot be
// resolved against the graph.
func UnresolvableProperty(resource, property, token string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvableProperty,
		Message: fmt.Sprintf("property %q of resource %q references %q, which is not in the plan", property, resource, token),
		Details: map[string]interface{}{
			"resource": resource,
			"property": property,
			"token":    token,
		},
	}
}

// RemoteOperationFailed reports a failed create/update/delete against the
// remote system.
func RemoteOperationFailed(resource, operation string, cause error) *Error {
	return &Error{
		Code:    ErrCodeRemoteOperation,
		Message: fmt.Sprintf("%s of resource %q failed", operation, resource),
		Cause:   cause,
		Details: map[string]interface{}{
			"resource":  resource,
			"operation": operation,
		},
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// BackendError creates a backend error
func BackendError(backend string, operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeBackend,
		Message: fmt.Sprintf("backend %s failed during %s", backend, operation),
		Cause:   err,
		Details: map[string]interface{}{
			"backend":   backend,
			"operation": operation,
		},
	}
}

// ParseError creates a parse error
func ParseError(filePath string, err error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", filePath),
		Cause:   err,
		Details: map[string]interface{}{
			"file": filePath,
		},
	}
}

// Is checks if the error or anything it wraps matches the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}
