package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// Inventory is the read and claim surface over a screening's seats.
type Inventory struct {
	seats       SeatStore
	screenings  ScreeningFinder
	coordinator *Coordinator
}

// NewInventory returns an Inventory that claims through coordinator.
func NewInventory(seats SeatStore, screenings ScreeningFinder, coordinator *Coordinator) *Inventory {
	return &Inventory{seats: seats, screenings: screenings, coordinator: coordinator}
}

// GetSeats lists every seat of the screening row-major. Claims write through
// to the store before they return, so a caller always sees its own booking.
func (i *Inventory) GetSeats(ctx context.Context, screeningID uint64) ([]model.Seat, error) {
	if _, err := i.screenings.GetScreening(ctx, screeningID); err != nil {
		return nil, err
	}
	seats, err := i.seats.ListSeats(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	model.SortSeats(seats)
	return seats, nil
}

// TryClaim claims the seats through the screening's coordinator lane.
func (i *Inventory) TryClaim(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) (*ClaimResult, error) {
	return i.coordinator.Claim(ctx, screeningID, seatIDs, reservationID)
}

// Release undoes a claim.
func (i *Inventory) Release(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) error {
	return i.coordinator.Release(ctx, screeningID, seatIDs, reservationID)
}
