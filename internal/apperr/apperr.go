// Package apperr defines the error taxonomy shared across services. Handlers
// convert these to displayable responses; services never swallow them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthenticationError indicates a missing or rejected credential.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Reason != "" {
		return "authentication failed: " + e.Reason
	}
	return "authentication failed"
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConfigurationError indicates an unsupported model or parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}
	return "invalid configuration: " + e.Reason
}

// MediaProcessingError indicates the remote media job reported failure or the
// ingestion pipeline could not complete. Status carries the remote state.
type MediaProcessingError struct {
	Status string
	Detail string
	Err    error
}

func (e *MediaProcessingError) Error() string {
	msg := "media processing failed"
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *MediaProcessingError) Unwrap() error { return e.Err }

// InvalidStateError indicates an operation was attempted against state that
// cannot accept it, such as attaching a non-ready asset to a turn.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

// ExchangeError indicates a transport or remote failure during a turn.
// Category names the underlying cause class reported by the vendor.
type ExchangeError struct {
	Op       string
	Category string
	Err      error
}

func (e *ExchangeError) Error() string {
	msg := "exchange failed"
	if e.Op != "" {
		msg = fmt.Sprintf("exchange failed during %s", e.Op)
	}
	if e.Category != "" {
		msg += " (" + e.Category + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// PersistenceError indicates a malformed document or a failed archive
// read/write.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	msg := "persistence failed"
	if e.Op != "" {
		msg = fmt.Sprintf("persistence failed during %s", e.Op)
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsMediaProcessing reports whether err is a MediaProcessingError.
func IsMediaProcessing(err error) bool {
	var target *MediaProcessingError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsExchange reports whether err is an ExchangeError.
func IsExchange(err error) bool {
	var target *ExchangeError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// HTTPStatus maps a taxonomy error to the response status handlers should use.
func HTTPStatus(err error) int {
	switch {
	case IsAuthentication(err):
		return http.StatusUnauthorized
	case IsConfiguration(err):
		return http.StatusBadRequest
	case IsInvalidState(err):
		return http.StatusConflict
	case IsMediaProcessing(err):
		return http.StatusUnprocessableEntity
	case IsPersistence(err):
		return http.StatusBadRequest
	case IsExchange(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
