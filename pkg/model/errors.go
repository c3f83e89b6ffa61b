package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation       ErrorCode = "VALIDATION_ERROR"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	ErrInternal         ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// Sentinel errors for the scheduling core. Typed errors below unwrap to these.
var (
	ErrCapacity        = errors.New("queue capacity exceeded")
	ErrEmpty           = errors.New("queue is empty")
	ErrInvalidPriority = errors.New("priority out of range")
	ErrNilPCB          = errors.New("nil pcb")
	ErrAlreadyQueued   = errors.New("process already on a ready queue")
)

// CapacityError is returned when a PCB is admitted into a full ready queue.
type CapacityError struct {
	Level    int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("ready queue %d is full (capacity %d)", e.Level, e.Capacity)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// PriorityError is returned when a PCB's priority has no matching ready queue.
type PriorityError struct {
	PID      uint32
	Priority int
	Max      int
}

func (e *PriorityError) Error() string {
	return fmt.Sprintf("process %d: priority %d outside [0, %d)", e.PID, e.Priority, e.Max)
}

func (e *PriorityError) Unwrap() error { return ErrInvalidPriority }

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}
