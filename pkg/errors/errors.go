// Package errors provides custom error types for the contentsync system.
// These errors enable programmatic error checking throughout the sync
// pipeline: fatal configuration problems, per-credential transport
// failures, non-fatal data integrity findings and channel availability
// rejections are all distinguishable with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the contentsync system
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrNoCredentials indicates that neither organization credentials
	// nor an offline mirror directory are configured
	ErrNoCredentials = errors.New("no organization credentials found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransport indicates a remote catalog fetch failure
	ErrTransport = errors.New("transport failure")

	// ErrIntegrity indicates inconsistent upstream or cached data
	ErrIntegrity = errors.New("data integrity")

	// ErrChannelNotAvailable indicates a channel whose mandatory content
	// cannot be obtained with the current authentications
	ErrChannelNotAvailable = errors.New("channel not available")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConfigError represents a fatal configuration problem. It aborts the
// whole sync pass.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// TransportError represents a remote catalog fetch failure for a single
// credential. Other credentials are still attempted.
type TransportError struct {
	Endpoint   string
	Credential string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog fetch %s failed for credential %s (status %d)",
			e.Endpoint, e.Credential, e.StatusCode)
	}
	return fmt.Sprintf("catalog fetch %s failed for credential %s: %v", e.Endpoint, e.Credential, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a new TransportError
func NewTransportError(endpoint, credential string, statusCode int, err error) *TransportError {
	return &TransportError{Endpoint: endpoint, Credential: credential, StatusCode: statusCode, Err: err}
}

// IntegrityError represents inconsistent data found during a sync pass:
// duplicate auth records, unknown architecture labels, tree edges
// referencing unknown entities, immutable-field mismatches on released
// products. These are logged and skipped, never fatal.
type IntegrityError struct {
	Entity  string
	Key     string
	Message string
}

// Error implements the error interface
func (e *IntegrityError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("integrity: %s %s: %s", e.Entity, e.Key, e.Message)
	}
	return fmt.Sprintf("integrity: %s: %s", e.Entity, e.Message)
}

// Is implements errors.Is support
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(entity, key, message string) *IntegrityError {
	return &IntegrityError{Entity: entity, Key: key, Message: message}
}

// ChannelNotAvailableError rejects a channel-creation request whose
// mandatory content is not reachable. It is surfaced to the caller and
// not retried.
type ChannelNotAvailableError struct {
	Label  string
	Reason string
}

// Error implements the error interface
func (e *ChannelNotAvailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("channel %s is not available: %s", e.Label, e.Reason)
	}
	return fmt.Sprintf("channel %s is not available", e.Label)
}

// Is implements errors.Is support
func (e *ChannelNotAvailableError) Is(target error) bool {
	return target == ErrChannelNotAvailable
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// SyncError represents a failed sync pass with the credentials that
// contributed failures.
type SyncError struct {
	Operation   string
	Credentials []string
	Err         error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if len(e.Credentials) > 0 {
		return fmt.Sprintf("sync %s failed (credentials: %s): %v",
			e.Operation, strings.Join(e.Credentials, ", "), e.Err)
	}
	return fmt.Sprintf("sync %s failed: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfig checks if an error is fatal for the whole pass
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) || errors.Is(err, ErrNoCredentials)
}

// IsTransport checks if an error is a per-credential transport failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsIntegrity checks if an error is a non-fatal data integrity finding
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsChannelNotAvailable checks if an error is a channel availability rejection
func IsChannelNotAvailable(err error) bool {
	return errors.Is(err, ErrChannelNotAvailable)
}

// WrapTransport wraps an error as a TransportError
func WrapTransport(endpoint, credential string, err error) error {
	if err == nil {
		return nil
	}
	return NewTransportError(endpoint, credential, 0, err)
}
