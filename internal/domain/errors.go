package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared between the pipeline, the job store, and the HTTP
// boundary. The string values are part of the client wire contract.
const (
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeSessionStateRequired = "SESSION_STATE_REQUIRED"
	CodeInvalidSessionState  = "INVALID_SESSION_STATE"
	CodeInvalidIteration     = "INVALID_ITERATION"
	CodeMissingSessionID     = "MISSING_SESSION_ID"
	CodeProcessingError      = "PROCESSING_ERROR"
	CodeParsingFailure       = "PARSING_FAILURE"
	CodeLLMAPIError          = "LLM_API_ERROR"
	CodeMissingCredentials   = "MISSING_CREDENTIALS"
	CodeTimeout              = "TIMEOUT_ERROR"
	CodeNetworkError         = "NETWORK_ERROR"
)

// Error is a coded failure that maps onto an HTTP status at the API
// boundary. Background-task failures are stored on the job as code plus
// message and surfaced verbatim on the next poll.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a coded error. A zero status defaults per the code's
// conventional mapping.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, StatusCode: defaultStatus(code)}
}

// WrapError creates a coded error wrapping an underlying cause.
func WrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, StatusCode: defaultStatus(code), Err: err}
}

func defaultStatus(code string) int {
	switch code {
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeSessionStateRequired, CodeInvalidSessionState, CodeInvalidIteration, CodeMissingSessionID:
		return http.StatusBadRequest
	case CodeParsingFailure, CodeLLMAPIError:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNetworkError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the error code, defaulting to CodeProcessingError for
// errors raised outside the taxonomy.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeProcessingError
}

// StatusOf extracts the HTTP status for an error.
func StatusOf(err error) int {
	var de *Error
	if errors.As(err, &de) && de.StatusCode != 0 {
		return de.StatusCode
	}
	return http.StatusInternalServerError
}
