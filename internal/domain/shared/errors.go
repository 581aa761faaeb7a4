package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes shared by every bounded context
const (
	CodeNotFound                            = "NOT_FOUND"
	CodeAlreadyExists                       = "ALREADY_EXISTS"
	CodeValidation                          = "VALIDATION_ERROR"
	CodeInsufficientStock                   = "INSUFFICIENT_STOCK"
	CodeInvalidWorkflowStage                = "INVALID_WORKFLOW_STAGE"
	CodePolicyViolation                     = "POLICY_VIOLATION"
	CodeConflict                            = "CONFLICT"
	CodeSubStoreCannotRequestExternalSupply = "SUB_STORE_CANNOT_REQUEST_EXTERNAL_SUPPLY"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so wrapped errors with details still compare equal to the sentinels
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of the error with an additional detail entry
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound                            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists                       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation                          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInsufficientStock                   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInvalidWorkflowStage                = NewDomainError(CodeInvalidWorkflowStage, "Action not allowed in current workflow stage")
	ErrPolicyViolation                     = NewDomainError(CodePolicyViolation, "Operation violates item policy")
	ErrConflict                            = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrSubStoreCannotRequestExternalSupply = NewDomainError(CodeSubStoreCannotRequestExternalSupply, "Sub stores cannot request directly from the external supplier")
)

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a not-found error naming the missing resource
func NewNotFoundError(resource string, id uuid.UUID) *DomainError {
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]any{"resource": resource, "id": id.String()},
	}
}

// NewInsufficientStockError reports an allocation shortfall for one item
func NewInsufficientStockError(itemID uuid.UUID, requested, available decimal.Decimal) *DomainError {
	shortfall := requested.Sub(available)
	return &DomainError{
		Code: CodeInsufficientStock,
		Message: fmt.Sprintf("Insufficient stock for item %s: requested %s, available %s, short by %s",
			itemID, requested.String(), available.String(), shortfall.String()),
		Details: map[string]any{
			"item_id":   itemID.String(),
			"requested": requested.String(),
			"available": available.String(),
			"shortfall": shortfall.String(),
		},
	}
}

// NewInvalidWorkflowStageError reports an action attempted from the wrong stage
func NewInvalidWorkflowStageError(requestID uuid.UUID, stage, action string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidWorkflowStage,
		Message: fmt.Sprintf("Cannot apply %s to stock request %s in stage %s", action, requestID, stage),
		Details: map[string]any{
			"request_id":    requestID.String(),
			"current_stage": stage,
			"action":        action,
		},
	}
}

// NewPolicyViolationError creates a policy violation error
func NewPolicyViolationError(message string, details map[string]any) *DomainError {
	return &DomainError{
		Code:    CodePolicyViolation,
		Message: message,
		Details: details,
	}
}

// NewConflictError creates a conflict error for a lost concurrent update
func NewConflictError(resource string, id uuid.UUID) *DomainError {
	return &DomainError{
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s %s was modified concurrently, reload and retry", resource, id),
		Details: map[string]any{"resource": resource, "id": id.String()},
	}
}

// IsNotFound reports whether err is, or wraps, a NOT_FOUND domain error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HasCode reports whether err is a DomainError carrying code
func HasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
