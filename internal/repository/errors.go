// Package repository defines error types that are reused across the MySQL
// and in-memory stores. These sentinel values allow higher layers such as
// the reservation service and the HTTP handlers to distinguish between
// different failure scenarios without depending on a particular driver.
package repository

import "errors"

// ErrScreeningNotFound is returned when a screening id is unknown to the
// catalog. Handlers translate it into an HTTP 404 response.
var ErrScreeningNotFound = errors.New("screening not found")

// ErrMovieNotFound is returned when a screening references a movie the
// catalog cannot resolve.
var ErrMovieNotFound = errors.New("movie not found")

// ErrReservationNotFound is returned when a reservation lookup yields no rows.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrDuplicateReservation is returned when a reservation id, or a
// (user, idempotency key) pair, has already been recorded. The ledger is
// append only, so the second write is rejected.
var ErrDuplicateReservation = errors.New("duplicate reservation")
