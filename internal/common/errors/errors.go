// Package errors provides the application's structured error type and the
// domain-specific constructors used to map internal failures to HTTP status
// codes at the API boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes as constants.
const (
	ErrCodeAgentNotRegistered = "AGENT_NOT_REGISTERED"
	ErrCodeAgentNotFound      = "AGENT_NOT_FOUND"
	ErrCodeChannelNotFound    = "CHANNEL_NOT_FOUND"
	ErrCodeImageNotFound      = "IMAGE_NOT_FOUND"
	ErrCodeSpawnError         = "SPAWN_ERROR"
	ErrCodeRegistryConnection = "REGISTRY_CONNECTION_ERROR"
	ErrCodeRegistryError      = "REGISTRY_ERROR"
	ErrCodePermissionDenied   = "PERMISSION_DENIED"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// AppError represents an application-specific error with additional context.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// AgentNotRegistered indicates the registry has no agent with the given id.
func AgentNotRegistered(agentID string) *AppError {
	return &AppError{
		Code:       ErrCodeAgentNotRegistered,
		Message:    fmt.Sprintf("agent %q is not registered", agentID),
		HTTPStatus: http.StatusNotFound,
	}
}

// AgentNotFound indicates the runtime driver has no container for the agent.
func AgentNotFound(agentID string) *AppError {
	return &AppError{
		Code:       ErrCodeAgentNotFound,
		Message:    fmt.Sprintf("agent %q not found", agentID),
		HTTPStatus: http.StatusNotFound,
	}
}

// ChannelNotFound indicates the channel store has no channel with the given id.
func ChannelNotFound(channelID string) *AppError {
	return &AppError{
		Code:       ErrCodeChannelNotFound,
		Message:    fmt.Sprintf("channel %q not found", channelID),
		HTTPStatus: http.StatusNotFound,
	}
}

// ImageNotFound indicates the runtime driver could not pull the requested image.
func ImageNotFound(image string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeImageNotFound,
		Message:    fmt.Sprintf("image %q could not be pulled", image),
		HTTPStatus: http.StatusBadRequest,
		Err:        cause,
	}
}

// SpawnError indicates the runtime driver failed to start a container.
func SpawnError(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeSpawnError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        cause,
	}
}

// RegistryConnectionError indicates the backing registry store is unreachable.
func RegistryConnectionError(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeRegistryConnection,
		Message:    "registry is currently unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        cause,
	}
}

// RegistryError is a generic, non-connection registry failure.
func RegistryError(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeRegistryError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        cause,
	}
}

// PermissionDenied indicates the caller is not allowed to perform the operation.
func PermissionDenied(message string) *AppError {
	return &AppError{
		Code:       ErrCodePermissionDenied,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a generic validation error.
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrCodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// InternalError wraps an unexpected failure as a 500.
func InternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeInternalError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        cause,
	}
}

// Wrap wraps an existing error with additional context, preserving the code
// and status of an already-structured error.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:       appErr.Code,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			HTTPStatus: appErr.HTTPStatus,
			Err:        err,
		}
	}

	return &AppError{
		Code:       ErrCodeInternalError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HTTPStatus returns the HTTP status code for an error, defaulting to 500
// when the error is not an *AppError.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given AppError code.
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
