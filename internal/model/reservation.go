package model

import (
    "fmt"
    "time"
)

// Reservation records a completed booking of one or more seats for a
// screening. Reservations are immutable once recorded; the movie title,
// image and screening time are copied in at booking time so that the
// ledger can be listed without consulting the catalog.
//
// Fields:
//  ID             – UUID assigned before the seats are claimed.
//  UserID         – verified user who made the reservation.
//  ScreeningID    – screening being reserved.
//  SeatIDs        – seats in the order the client requested them.
//  SeatLabels     – row+number labels matching SeatIDs.
//  AmountCents    – len(SeatIDs) × screening price per seat.
//  MovieID        – movie shown by the screening.
//  MovieTitle     – denormalized movie title.
//  MovieImgURL    – denormalized movie poster URL.
//  ScreeningTime  – when the screening starts.
//  IdempotencyKey – caller supplied retry key (optional).
//  CreatedAt      – when the reservation was recorded (UTC).
type Reservation struct {
    ID             string    // reservations.id
    UserID         uint64    // reservations.user_id
    ScreeningID    uint64    // reservations.screening_id
    SeatIDs        []uint64  // reservation_seats.seat_id ordered by position
    SeatLabels     []string  // reservation_seats.label ordered by position
    AmountCents    int64     // reservations.amount_cents
    MovieID        uint64    // reservations.movie_id
    MovieTitle     string    // reservations.movie_title
    MovieImgURL    string    // reservations.movie_img_url
    ScreeningTime  time.Time // reservations.screening_time
    IdempotencyKey string    // reservations.idempotency_key (nullable)
    CreatedAt      time.Time // reservations.created_at
}

// NumberOfSeats returns how many seats the reservation covers.
func (r Reservation) NumberOfSeats() int { return len(r.SeatIDs) }

// Amount formats AmountCents as a decimal string such as "37.50".
func (r Reservation) Amount() string { return FormatCents(r.AmountCents) }

// FormatCents renders an amount of cents with two decimals.
func FormatCents(cents int64) string {
    sign := ""
    if cents < 0 {
        sign = "-"
        cents = -cents
    }
    return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
