package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorCode classifies an APIError for transport mapping. Codes are
// part of the response body contract, handlers render them verbatim.
type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrForbidden      ErrorCode = "FORBIDDEN"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

// APIError is the error shape the engine hands to HTTP handlers.
// Details carries structured context, a risk assessment or a retry
// hint, that serializes into the response body.
type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError builds an APIError and records it on the error log.
func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	entry := logrus.WithField("code", string(code))
	if details != nil {
		entry = entry.WithField("details", details)
	}
	entry.Error(message)

	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// httpStatusFor is the single place an ErrorCode picks its HTTP status.
var httpStatusFor = map[ErrorCode]int{
	ErrNotFound:       http.StatusNotFound,
	ErrConflict:       http.StatusConflict,
	ErrBadRequest:     http.StatusBadRequest,
	ErrInvalidInput:   http.StatusBadRequest,
	ErrForbidden:      http.StatusForbidden,
	ErrRateLimited:    http.StatusTooManyRequests,
	ErrInternalServer: http.StatusInternalServerError,
}

// MapErrorToHTTPStatus resolves any error, wrapped or not, to the
// status a handler should answer with. Errors that are not APIErrors
// and codes without a mapping both land on 500.
func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		if status, ok := httpStatusFor[apiErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}
