package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced transaction, escrow or disbursement does not exist.
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	// ErrInvalidEscrowState signals a release/refund attempted on an escrow that is not held.
	// It is never safe to report as success.
	ErrInvalidEscrowState = errors.New("invalid escrow state")
	// ErrAlreadyProcessed marks a callback whose effect is already persisted.
	// Callers report it to the gateway as success.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrGatewayRejected is an immediate non-success answer from the payment gateway.
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidCallback    = errors.New("invalid callback payload")
)

// EscrowStateError carries enough context for operators to diagnose a rejected transition.
type EscrowStateError struct {
	EscrowID  string
	Status    EscrowStatus
	Operation string
}

func (e *EscrowStateError) Error() string {
	return fmt.Sprintf("%s escrow %s: status is %s, want %s", e.Operation, e.EscrowID, e.Status, EscrowStatusHeld)
}

func (e *EscrowStateError) Unwrap() error { return ErrInvalidEscrowState }
