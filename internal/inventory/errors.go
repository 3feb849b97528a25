package inventory

import (
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-reservation-service/internal/model"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrValidation             = errors.New("validation error")
)

// NotFoundError names the missing entity. It unwraps to ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError carries the shortfall of a reserve or a negative adjustment.
type InsufficientStockError struct {
	InventoryRecordID string
	Requested         int64
	Available         int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock on %s: requested %d, available %d (short %d)",
		e.InventoryRecordID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Shortfall() int64 {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type StateTransitionError struct {
	ReservationID string
	From          model.ReservationStatus
	To            model.ReservationStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("reservation %s cannot move from %s to %s", e.ReservationID, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConcurrencyError wraps a lock timeout, serialization failure or busy store.
// It is the only error class a caller may retry without re-validating state.
type ConcurrencyError struct {
	Op  string
	Err error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent modification during %s: %v", e.Op, e.Err)
}

func (e *ConcurrencyError) Unwrap() []error { return []error{ErrConcurrentModification, e.Err} }

// IsRetryable reports whether err may be retried as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
