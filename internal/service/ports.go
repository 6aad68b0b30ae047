// Package service holds the reservation engine: the per-screening booking
// coordinator, the seat inventory, the reservation ledger and the Reserve
// façade that ties them together.
package service

import (
	"context"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
)

// SeatStore is the persistence the coordinator needs. BookSeats must be a
// conditional multi-row update: it books every seat or none and returns the
// ids that were not AVAILABLE.
type SeatStore interface {
	ListSeats(ctx context.Context, screeningID uint64) ([]model.Seat, error)
	SeatsByID(ctx context.Context, screeningID uint64, seatIDs []uint64) (map[uint64]model.Seat, error)
	BookSeats(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) ([]uint64, error)
	ReleaseSeats(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) error
}

// ReservationStore is the append-only reservation log.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
}

// ScreeningFinder resolves screenings.
type ScreeningFinder interface {
	GetScreening(ctx context.Context, id uint64) (*model.Screening, error)
}

// Catalog resolves screenings and the movies they show.
type Catalog interface {
	ScreeningFinder
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
}

// ReplayCache remembers which reservation a (user, idempotency key) pair
// produced so retries can be answered without touching the ledger.
type ReplayCache interface {
	Get(ctx context.Context, userID uint64, key string) (reservationID string, found bool, err error)
	Put(ctx context.Context, userID uint64, key, reservationID string) error
}

// EventPublisher announces confirmed reservations.
type EventPublisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}
