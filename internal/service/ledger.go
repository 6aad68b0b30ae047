package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

var errIncompleteReservation = errors.New("incomplete reservation")

// Ledger records completed reservations. It never updates or deletes.
type Ledger struct {
	store ReservationStore
	now   func() time.Time
}

// NewLedger returns a Ledger over store.
func NewLedger(store ReservationStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Record appends res and returns its id. Reservations without an id, user,
// screening or seats are rejected, as are amounts that are not a whole
// multiple of the seat count.
func (l *Ledger) Record(ctx context.Context, res *model.Reservation) (string, error) {
	switch {
	case res == nil:
		return "", errIncompleteReservation
	case res.ID == "":
		return "", fmt.Errorf("%w: missing id", errIncompleteReservation)
	case res.UserID == 0:
		return "", fmt.Errorf("%w: missing user", errIncompleteReservation)
	case res.ScreeningID == 0:
		return "", fmt.Errorf("%w: missing screening", errIncompleteReservation)
	case len(res.SeatIDs) == 0:
		return "", fmt.Errorf("%w: no seats", errIncompleteReservation)
	case res.AmountCents < 0 || res.AmountCents%int64(len(res.SeatIDs)) != 0:
		return "", fmt.Errorf("%w: amount %d does not match %d seats", errIncompleteReservation, res.AmountCents, len(res.SeatIDs))
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = l.now().UTC()
	}
	if err := l.store.Create(ctx, res); err != nil {
		return "", fmt.Errorf("record reservation %s: %w", res.ID, err)
	}
	return res.ID, nil
}

// ListByUser returns the user's reservations, most recent first.
func (l *Ledger) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return l.store.ListByUser(ctx, userID)
}

// Get returns the reservation with the given id.
func (l *Ledger) Get(ctx context.Context, id string) (*model.Reservation, error) {
	return l.store.GetByID(ctx, id)
}

// FindByIdempotencyKey returns the reservation userID recorded under key.
func (l *Ledger) FindByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Reservation, error) {
	return l.store.GetByIdempotencyKey(ctx, userID, key)
}
