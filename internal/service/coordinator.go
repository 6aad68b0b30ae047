package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// ClaimResult is the outcome of a successful claim: the seats now booked
// under ReservationID, in request order.
type ClaimResult struct {
	ReservationID string
	Seats         []model.Seat
}

// Coordinator serializes claims per screening. Every mutation of a seat's
// status goes through the lane of its screening, so the check and the set
// of a claim never interleave with another claim on the same screening.
// Claims on different screenings run in parallel.
type Coordinator struct {
	seats SeatStore
	lanes *laneArena[uint64]
	log   logrus.FieldLogger
}

// NewCoordinator returns a Coordinator over the given seat store.
func NewCoordinator(seats SeatStore, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{seats: seats, lanes: newLaneArena[uint64](), log: log}
}

// Claim books every seat in seatIDs for reservationID or none of them. When
// any seat is unknown, belongs to another screening or is not AVAILABLE the
// result is a *ConflictError listing all of those seats in request order.
func (c *Coordinator) Claim(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) (*ClaimResult, error) {
	release, err := c.lanes.acquire(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("wait for screening %d: %w", screeningID, err)
	}
	defer release()

	current, err := c.seats.SeatsByID(ctx, screeningID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}

	// held is the claim window: seats that passed the check, marked HELD
	// until they are written as BOOKED or the window is discarded.
	held := make(map[uint64]model.Seat, len(seatIDs))
	var conflicts []uint64
	for _, id := range seatIDs {
		if _, dup := held[id]; dup {
			conflicts = append(conflicts, id)
			continue
		}
		s, ok := current[id]
		if !ok || s.ScreeningID != screeningID || !s.Available() {
			conflicts = append(conflicts, id)
			continue
		}
		s.Status = model.SeatHeld
		held[id] = s
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{ScreeningID: screeningID, SeatIDs: conflicts}
	}

	lost, err := c.seats.BookSeats(ctx, screeningID, seatIDs, reservationID)
	if err != nil {
		return nil, fmt.Errorf("book seats: %w", err)
	}
	if len(lost) > 0 {
		// Only a writer outside this process can get here.
		c.log.WithFields(logrus.Fields{
			"screening_id": screeningID,
			"seat_ids":     lost,
		}).Warn("coordinator: seats changed outside the screening lane")
		return nil, &ConflictError{ScreeningID: screeningID, SeatIDs: lost}
	}

	booked := make([]model.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		s := held[id]
		s.Status = model.SeatBooked
		s.ReservationID = reservationID
		booked = append(booked, s)
	}
	return &ClaimResult{ReservationID: reservationID, Seats: booked}, nil
}

// Release returns the seats booked by reservationID to AVAILABLE. It is the
// compensation for a claim whose reservation could not be recorded.
func (c *Coordinator) Release(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) error {
	release, err := c.lanes.acquire(ctx, screeningID)
	if err != nil {
		return fmt.Errorf("wait for screening %d: %w", screeningID, err)
	}
	defer release()
	if err := c.seats.ReleaseSeats(ctx, screeningID, seatIDs, reservationID); err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	return nil
}
