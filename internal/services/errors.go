package services

import (
	"errors"
	"fmt"

	"github.com/justsurfingit/job-tracker/internal/models"
)

var (
	// ErrNotFound covers both a missing job and a job owned by another account.
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrUsernameTaken      = errors.New("a user with that username already exists")
	ErrLLMUnavailable     = errors.New("posting extraction is not configured")
)

// ValidationError is a client-correctable input problem. Field is empty for errors that
// are not tied to a single request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func requiredError(field string) *ValidationError {
	return fieldError(field, "This field is required.")
}

func invalidTransitionMessage(from, to models.Status) string {
	return fmt.Sprintf("Invalid status transition: %s -> %s", from, to)
}
