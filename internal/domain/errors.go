package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStore                  = errors.New("store error")
)

// InvalidTransitionError is returned when the validator denies a transition.
// NoOp marks a re-request of a transition the claim has already gone through.
type InvalidTransitionError struct {
	ClaimID    string
	Transition Transition
	From       ClaimState
	Role       Role
	Reason     string
	NoOp       bool
}

func (e *InvalidTransitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: claim %s: %s", ErrInvalidTransition, e.ClaimID, e.Reason)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// StoreError wraps a persistence failure with the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s: %v", ErrStore, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

const ReasonCancelled = "cancelled"

// FailureReason renders err as the per-item reason reported in bulk results.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var transitionErr *InvalidTransitionError
	switch {
	case errors.As(err, &transitionErr):
		return transitionErr.Reason
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent modification"
	case errors.Is(err, ErrValidation):
		return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	default:
		return err.Error()
	}
}
