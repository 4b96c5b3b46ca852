package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("order not found")
	ErrConflict   = errors.New("order conflict")
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes rejected input. errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ConflictError reports an operation refused because of the order's current state.
type ConflictError struct {
	OrderID int64
	Status  Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Order status is %s, cannot process payment", e.Status)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
