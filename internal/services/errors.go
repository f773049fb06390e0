package services

import (
	"errors"
	"fmt"
)

// Typed errors returned by the fee services. Handlers translate these into the
// HTTP envelope; callers inside the module match them with errors.As.

// NotFoundError indicates a referenced schedule, student or payment is missing
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// DuplicateScheduleError indicates an active schedule already exists for the
// (school, class, academic year) triple
type DuplicateScheduleError struct {
	SchoolID     uint
	ClassID      uint
	AcademicYear string
}

func (e *DuplicateScheduleError) Error() string {
	return fmt.Sprintf("active fee schedule already exists for class %d, year %s", e.ClassID, e.AcademicYear)
}

// InvalidAmountError indicates a non-positive amount or a refund exceeding the
// original payment amount
type InvalidAmountError struct {
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return e.Reason
}

// InactiveScheduleError indicates a payment was attempted against a schedule
// that is no longer active
type InactiveScheduleError struct {
	ScheduleID uint
}

func (e *InactiveScheduleError) Error() string {
	return fmt.Sprintf("fee schedule %d is not active", e.ScheduleID)
}

// ConcurrencyConflictError indicates an update lost a race after the bounded
// internal retries were exhausted; the caller may retry the whole operation
type ConcurrencyConflictError struct {
	Op string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s: conflicting concurrent update, retry", e.Op)
}

// StorageError wraps an underlying persistence failure. The whole operation it
// occurred in has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidationError reports whether err was detected before any write
func IsValidationError(err error) bool {
	var invalidAmount *InvalidAmountError
	var duplicate *DuplicateScheduleError
	var inactive *InactiveScheduleError
	return errors.As(err, &invalidAmount) || errors.As(err, &duplicate) || errors.As(err, &inactive)
}
