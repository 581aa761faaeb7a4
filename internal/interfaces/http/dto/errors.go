package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeUnauthorized is used when the acting user is not identified
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a catalog resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used when a concurrent writer won or a lock could not be taken
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeDuplicateRequest is used when an Idempotency-Key is replayed
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
)

// Business rule error codes
const (
	// ErrCodeInsufficientStock is used when an allocation cannot be satisfied
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeInvalidWorkflowStage is used when an action does not apply to the request's stage
	ErrCodeInvalidWorkflowStage = "ERR_INVALID_WORKFLOW_STAGE"
	// ErrCodePolicyViolation is used when an item policy forbids the operation
	ErrCodePolicyViolation = "ERR_POLICY_VIOLATION"
	// ErrCodeSubStoreExternalSupply is used when a SUB store asks the external supplier directly
	ErrCodeSubStoreExternalSupply = "ERR_SUB_STORE_CANNOT_REQUEST_EXTERNAL_SUPPLY"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnauthorized:    http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeAlreadyExists:    http.StatusConflict,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeDuplicateRequest: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInsufficientStock:      http.StatusUnprocessableEntity,
	ErrCodeInvalidWorkflowStage:   http.StatusUnprocessableEntity,
	ErrCodePolicyViolation:        http.StatusUnprocessableEntity,
	ErrCodeSubStoreExternalSupply: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                                ErrCodeNotFound,
	"ALREADY_EXISTS":                           ErrCodeAlreadyExists,
	"VALIDATION_ERROR":                         ErrCodeValidation,
	"CONFLICT":                                 ErrCodeConflict,
	"INSUFFICIENT_STOCK":                       ErrCodeInsufficientStock,
	"INVALID_WORKFLOW_STAGE":                   ErrCodeInvalidWorkflowStage,
	"POLICY_VIOLATION":                         ErrCodePolicyViolation,
	"SUB_STORE_CANNOT_REQUEST_EXTERNAL_SUPPLY": ErrCodeSubStoreExternalSupply,
	"INTERNAL_ERROR":                           ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, and unknown codes, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
