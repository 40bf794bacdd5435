// Package errors provides the assistant's structured error taxonomy and its
// mapping onto BPMN errors and HTTP statuses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeUnsupportedAction    ErrorCode = "UNSUPPORTED_ACTION"
	ErrCodeClientNotFound       ErrorCode = "CLIENT_NOT_FOUND"
	ErrCodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"

	ErrCodeStoreQueryFailed  ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeStoreTimeout      ErrorCode = "STORE_TIMEOUT"
	ErrCodeCacheFailed       ErrorCode = "CACHE_FAILED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodePersistenceFailed    ErrorCode = "PERSISTENCE_FAILED"
	ErrCodePersistenceQueueFull ErrorCode = "PERSISTENCE_QUEUE_FULL"

	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "GENERATION_TIMEOUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

func NewUnsupportedActionError(action string) *StandardError {
	return newError(ErrCodeUnsupportedAction, "Unsupported action", fmt.Sprintf("action: %s", action), false, nil)
}

func NewClientNotFoundError(id int64) *StandardError {
	return newError(ErrCodeClientNotFound, "Client not found", fmt.Sprintf("id: %d", id), false, nil)
}

func NewConversationNotFoundError(id int64) *StandardError {
	return newError(ErrCodeConversationNotFound, "Conversation not found", fmt.Sprintf("conversationId: %d", id), false, nil)
}

// NewStoreQueryFailedError wraps a failing entity store call.
func NewStoreQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreQueryFailed, "Client store query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewStoreTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreTimeout, "Client store query timeout",
		fmt.Sprintf("operation: %s", operation), true, err)
}

func NewCacheFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Client cache operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewSearchQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Client search index query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewPersistenceFailedError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed, "Conversation persistence failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewPersistenceQueueFullError(task string) *StandardError {
	return newError(ErrCodePersistenceQueueFull, "Persistence queue full, task dropped",
		fmt.Sprintf("task: %s", task), false, nil)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Text generation failed", err.Error(), true, err)
}

func NewGenerationTimeoutError(err error) *StandardError {
	return newError(ErrCodeGenerationTimeout, "Text generation timeout", err.Error(), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidRequest:       "INVALID_REQUEST",
	ErrCodeUnsupportedAction:    "UNSUPPORTED_ACTION",
	ErrCodeClientNotFound:       "CLIENT_NOT_FOUND",
	ErrCodeConversationNotFound: "CONVERSATION_NOT_FOUND",
	ErrCodeStoreQueryFailed:     "CRM_QUERY_FAILED",
	ErrCodeStoreTimeout:         "CRM_QUERY_TIMEOUT",
	ErrCodeCacheFailed:          "CRM_QUERY_FAILED",
	ErrCodeSearchQueryFailed:    "CRM_QUERY_FAILED",
	ErrCodePersistenceFailed:    "PERSISTENCE_FAILED",
	ErrCodeGenerationFailed:     "GENERATION_FAILED",
	ErrCodeGenerationTimeout:    "GENERATION_TIMEOUT",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreQueryFailed,
		ErrCodeSearchQueryFailed,
		ErrCodePersistenceFailed,
		ErrCodeGenerationFailed:
		return 3
	case ErrCodeStoreTimeout,
		ErrCodeCacheFailed:
		return 2
	case ErrCodeGenerationTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard returns err as a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "SEARCH"):
		return "CRM"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "CONVERSATION"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNSUPPORTED") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps a code onto the status the API layer responds with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeUnsupportedAction:
		return http.StatusBadRequest
	case ErrCodeClientNotFound, ErrCodeConversationNotFound:
		return http.StatusNotFound
	case ErrCodeStoreTimeout, ErrCodeGenerationTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeGenerationFailed, ErrCodeSearchQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
