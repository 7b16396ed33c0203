package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInterval    = errors.New("invalid interval: end date must be after start date")
	ErrConflict           = errors.New("car is no longer available for the requested dates")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrSettlementMismatch = errors.New("payment amount does not reconcile with reservation")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("operation not permitted for role")
	ErrRentalInactive     = errors.New("rental is not active")
)

// TransitionError reports a state machine guard violation with the state the
// reservation was in when the transition was attempted.
type TransitionError struct {
	ReservationID string
	From          ReservationStatus
	To            ReservationStatus
	Reason        string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("reservation %s: cannot move from %s to %s", e.ReservationID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// SettlementError is returned when a payment amount does not match what the
// reservation currently expects for that payment type.
type SettlementError struct {
	ReservationID string
	Type          PaymentType
	Expected      decimal.Decimal
	Got           decimal.Decimal
	Status        ReservationStatus
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("reservation %s (%s): %s payment of %s does not match expected %s",
		e.ReservationID, e.Status, e.Type, e.Got.StringFixed(2), e.Expected.StringFixed(2))
}

func (e *SettlementError) Unwrap() error { return ErrSettlementMismatch }

// ValidationError collects field level problems found while validating a
// request or a checklist.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = msg
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns the error only when at least one field failed.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
