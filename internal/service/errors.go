package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRequest is the class of every request shape error. Use errors.Is
// to detect it; the concrete value is a *ValidationError.
var ErrInvalidRequest = errors.New("invalid request")

// ErrIdempotencyMismatch is returned when an idempotency key is replayed with
// a different screening or seat set than the reservation it produced.
var ErrIdempotencyMismatch = fmt.Errorf("%w: idempotency key reused with a different request", ErrInvalidRequest)

// ErrOutcomeUnknown means the reserve budget ran out before the outcome was
// known. The caller should retry with the same idempotency key.
var ErrOutcomeUnknown = errors.New("reservation outcome unknown")

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap ties every validation failure to ErrInvalidRequest.
func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// ConflictError lists, in request order, every seat that could not be
// claimed. It is an expected outcome under contention.
type ConflictError struct {
	ScreeningID uint64
	SeatIDs     []uint64
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = strconv.FormatUint(id, 10)
	}
	return fmt.Sprintf("seats unavailable for screening %d: [%s]", e.ScreeningID, strings.Join(ids, ","))
}

// CompensationError reports that seats were claimed but the ledger write
// failed. When RollbackErr is non-nil the seats are still booked with no
// reservation and need operator reconciliation.
type CompensationError struct {
	ReservationID string
	ScreeningID   uint64
	SeatIDs       []uint64
	Cause         error
	RollbackErr   error
}

func (e *CompensationError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("record reservation %s: %v; rollback failed: %v", e.ReservationID, e.Cause, e.RollbackErr)
	}
	return fmt.Sprintf("record reservation %s: %v; seats released", e.ReservationID, e.Cause)
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// RolledBack reports whether the claimed seats were returned to AVAILABLE.
func (e *CompensationError) RolledBack() bool { return e.RollbackErr == nil }
