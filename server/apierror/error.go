// Package apierror defines the structured error type the HTTP API returns.
package apierror

import (
	"errors"
	"fmt"
)

// API error codes.
const (
	// Request errors (001xxx)
	CodeInvalidParameter = "001001"
	CodeInvalidScript    = "001002"

	// Run errors (002xxx)
	CodeRunNotFound    = "002001"
	CodeRunNotRunning  = "002002"
	CodeScriptFailed   = "002003"
	CodeScriptCanceled = "002004"

	// Connection errors (003xxx)
	CodeNoConnection     = "003001"
	CodeConnectionFailed = "003002"

	// System errors (000xxx)
	CodeInternalError = "000001"
)

// SQL standard error states reported alongside the codes.
const (
	SQLStateSuccess         = "00000"
	SQLStateConnectionError = "08000"
	SQLStateSyntaxError     = "42000"
	SQLStateDataException   = "22000"
	SQLStateOperatorAborted = "57014"
	SQLStateGeneralError    = "HY000"
)

// GetSQLState returns the SQL state for a given error code.
func GetSQLState(code string) string {
	mapping := map[string]string{
		CodeInvalidScript:    SQLStateSyntaxError,
		CodeScriptFailed:     SQLStateDataException,
		CodeScriptCanceled:   SQLStateOperatorAborted,
		CodeNoConnection:     SQLStateConnectionError,
		CodeConnectionFailed: SQLStateConnectionError,
	}
	if state, ok := mapping[code]; ok {
		return state
	}
	return SQLStateGeneralError
}

// APIError is the structured error every handler returns on failure.
type APIError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	SQLState string         `json:"sqlState,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithData adds a detail entry to the error.
func (e *APIError) WithData(key string, value any) *APIError {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Is matches errors by code.
func (e *APIError) Is(target error) bool {
	var apiErr *APIError
	if errors.As(target, &apiErr) {
		return e.Code == apiErr.Code
	}
	return false
}

// ErrorResponse is the JSON body all handlers send on failure.
type ErrorResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Code     string         `json:"code"`
	SQLState string         `json:"sqlState,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ToResponse converts the error to its response body.
func (e *APIError) ToResponse() *ErrorResponse {
	return &ErrorResponse{
		Success:  false,
		Message:  e.Message,
		Code:     e.Code,
		SQLState: e.SQLState,
		Data:     e.Data,
	}
}

// New creates an APIError with the given code and message.
func New(code, message string) *APIError {
	return &APIError{
		Code:     code,
		Message:  message,
		SQLState: GetSQLState(code),
	}
}

// NewInvalidParameterError creates an invalid parameter error.
func NewInvalidParameterError(paramName, reason string) *APIError {
	return New(CodeInvalidParameter, fmt.Sprintf("Invalid parameter '%s': %s", paramName, reason)).
		WithData("paramName", paramName)
}

// NewRunNotFoundError creates a run not found error.
func NewRunNotFoundError(id string) *APIError {
	return New(CodeRunNotFound, fmt.Sprintf("Run not found: %s", id)).
		WithData("runId", id)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *APIError {
	return New(CodeInternalError, message)
}

// Wrap wraps a standard Go error with a code and message.
func Wrap(code, message string, err error) *APIError {
	return New(code, message).WithData("originalError", err.Error())
}

// FromError converts an error to an APIError, passing existing APIErrors
// through unchanged.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return New(CodeInternalError, err.Error())
}
