// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/cinema-booking/internal/model"
)

// ReservationConfirmedQueue is the durable queue confirmed reservations are
// published to.
const ReservationConfirmedQueue = "reservation.confirmed"

// ReservationConfirmedEvent is published when a reservation is recorded.
// It contains enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type ReservationConfirmedEvent struct {
    ReservationID    string   `json:"reservation_id"`
    UserID           uint64   `json:"user_id"`
    ScreeningID      uint64   `json:"screening_id"`
    MovieTitle       string   `json:"movie_title"`
    StartsAt         string   `json:"starts_at"`
    SeatIDs          []uint64 `json:"seat_ids"`
    SeatLabels       []string `json:"seats"`
    TotalAmountCents int64    `json:"total_amount_cents"`
    ConfirmedAt      string   `json:"confirmed_at"`
}

// NewReservationConfirmedEvent builds the event for a recorded reservation.
func NewReservationConfirmedEvent(res *model.Reservation) ReservationConfirmedEvent {
    return ReservationConfirmedEvent{
        ReservationID:    res.ID,
        UserID:           res.UserID,
        ScreeningID:      res.ScreeningID,
        MovieTitle:       res.MovieTitle,
        StartsAt:         res.ScreeningTime.UTC().Format(time.RFC3339),
        SeatIDs:          append([]uint64(nil), res.SeatIDs...),
        SeatLabels:       append([]string(nil), res.SeatLabels...),
        TotalAmountCents: res.AmountCents,
        ConfirmedAt:      res.CreatedAt.UTC().Format(time.RFC3339),
    }
}
