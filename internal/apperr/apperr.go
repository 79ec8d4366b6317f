// Package apperr defines the error taxonomy shared by the scheduling engine,
// the repository and the chat transports.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports input the user can correct and resubmit, such as a
// missing task name or a meeting in the past. Conversation state is kept.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation (%s): %s", e.Field, e.Message)
}

// Validation returns a ValidationError for field.
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a referenced entity no longer exists.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound returns a NotFoundError for the entity and id.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports a meeting overlapping an existing one of the same team.
type ConflictError struct {
	MeetingID       string
	Start           time.Time
	DurationMinutes int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"conflicts with meeting %s at %s lasting %d mins",
		e.MeetingID, e.Start.UTC().Format(time.RFC3339), e.DurationMinutes,
	)
}

// ExternalServiceError wraps a failure of the NLU or messaging collaborator.
// It is not handled by the core and propagates to the runtime.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// ExternalService wraps err as an ExternalServiceError. A nil err stays nil.
func ExternalService(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Err: err}
}

// UnauthorizedError reports that the messaging platform refused delivery,
// typically because a user never opened a private chat with the bot.
type UnauthorizedError struct {
	ChatID  int64
	Message string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized delivery to chat %d: %s", e.ChatID, e.Message)
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err (or any error in its chain) is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsExternalService reports whether err (or any error in its chain) is an
// ExternalServiceError.
func IsExternalService(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}

// IsUnauthorized reports whether err (or any error in its chain) is an
// UnauthorizedError.
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// AsValidation extracts a ValidationError from err.
func AsValidation(err error) (*ValidationError, bool) {
	var target *ValidationError
	ok := errors.As(err, &target)
	return target, ok
}

// AsConflict extracts a ConflictError from err.
func AsConflict(err error) (*ConflictError, bool) {
	var target *ConflictError
	ok := errors.As(err, &target)
	return target, ok
}
