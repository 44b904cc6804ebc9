// Package shared contains common domain errors used across the bridge.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
// Each kind maps to exactly one HTTP status at the handler boundary.
var (
	// Request errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrBadAction        = errors.New("unknown action")
	ErrInvalidInput     = errors.New("invalid input")

	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// State errors
	ErrNotStaged = errors.New("email is not staged")
	ErrExpired   = errors.New("expired")

	// External service errors
	ErrUpstream           = errors.New("upstream failure")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "telegram_user", "linking"
	Op      string // Operation that failed, e.g., "Upsert", "CompleteLink"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// User domain errors
var (
	ErrUserNotFound  = NewDomainError("user", "FindByEmail", ErrNotFound, "User not found in Supabase")
	ErrUserNotSynced = NewDomainError("user", "Upsert", ErrUpstream, "Failed to sync user")
)

// Telegram user domain errors
var (
	ErrTelegramUserNotFound = NewDomainError("telegram_user", "FindByTelegramID", ErrNotFound, "telegram user not found")
)

// Linking errors
var (
	ErrLinkNotStaged      = NewDomainError("linking", "CompleteLink", ErrNotStaged, "email must be sent before password")
	ErrLinkExpired        = NewDomainError("linking", "CompleteLink", ErrExpired, "staged email expired")
	ErrInvalidCredentials = NewDomainError("linking", "CompleteLink", ErrUnauthorized, "invalid email or password")
)

// Bridge request errors
var (
	ErrBridgeMethod = NewDomainError("bridge", "Serve", ErrMethodNotAllowed, "Method not allowed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUpstream checks if the error came from the Remote Store, the Primary
// Backend or the Telegram API.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrServiceUnavailable)
}
