package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// seatGrid adds rows of seats to screening; ids run 1..rows*perRow.
func seatGrid(store *repository.MemorySeatStore, screeningID uint64, rows int, perRow uint32) {
	var id uint64
	for r := 0; r < rows; r++ {
		for n := uint32(1); n <= perRow; n++ {
			id++
			store.AddSeats(screeningID, model.Seat{ID: id, RowLabel: string(rune('A' + r)), SeatNumber: n})
		}
	}
}

func newTestCoordinator(store SeatStore) *Coordinator {
	log, _ := test.NewNullLogger()
	return NewCoordinator(store, log)
}

func TestCoordinator_DisjointClaimsAllSucceed(t *testing.T) {
	store := repository.NewMemorySeatStore()
	seatGrid(store, 1, 5, 10)
	c := newTestCoordinator(store)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := make([]uint64, 0, 5)
			for k := 0; k < 5; k++ {
				ids = append(ids, uint64(i*5+k+1))
			}
			_, err := c.Claim(context.Background(), 1, ids, fmt.Sprintf("r%d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	seats, err := store.ListSeats(context.Background(), 1)
	require.NoError(t, err)
	for _, s := range seats {
		assert.Equal(t, model.SeatBooked, s.Status)
	}
	assert.Equal(t, 0, c.lanes.size())
}

func TestCoordinator_SharedSeatsExactlyOneWins(t *testing.T) {
	store := repository.NewMemorySeatStore()
	store.AddSeats(1, model.Seat{ID: 1, RowLabel: "A", SeatNumber: 1}, model.Seat{ID: 2, RowLabel: "A", SeatNumber: 2})
	c := newTestCoordinator(store)

	const contenders = 16
	var wg sync.WaitGroup
	results := make(chan error, contenders)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := c.Claim(context.Background(), 1, []uint64{1, 2}, fmt.Sprintf("r%d", i))
			results <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var conflict *ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, []uint64{1, 2}, conflict.SeatIDs)
	}
	assert.Equal(t, 1, wins)
}

func TestCoordinator_ConflictListsEveryFailingSeatAndChangesNothing(t *testing.T) {
	store := repository.NewMemorySeatStore()
	store.AddSeats(1,
		model.Seat{ID: 1, RowLabel: "B", SeatNumber: 1, Status: model.SeatBooked, ReservationID: "R1"},
		model.Seat{ID: 2, RowLabel: "B", SeatNumber: 2},
	)
	store.AddSeats(2, model.Seat{ID: 3, RowLabel: "A", SeatNumber: 1})
	c := newTestCoordinator(store)

	_, err := c.Claim(context.Background(), 1, []uint64{1, 2, 3, 99}, "R2")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uint64{1, 3, 99}, conflict.SeatIDs)
	assert.Equal(t, uint64(1), conflict.ScreeningID)

	seats, _ := store.SeatsByID(context.Background(), 1, []uint64{1, 2})
	assert.Equal(t, model.SeatAvailable, seats[2].Status)
	assert.Equal(t, "R1", seats[1].ReservationID)
}

func TestCoordinator_SuccessReturnsBookedSeatsInRequestOrder(t *testing.T) {
	store := repository.NewMemorySeatStore()
	seatGrid(store, 1, 2, 3)
	c := newTestCoordinator(store)

	res, err := c.Claim(context.Background(), 1, []uint64{5, 1}, "R9")
	require.NoError(t, err)
	require.Len(t, res.Seats, 2)
	assert.Equal(t, "B2", res.Seats[0].Label())
	assert.Equal(t, "A1", res.Seats[1].Label())
	for _, s := range res.Seats {
		assert.Equal(t, model.SeatBooked, s.Status)
		assert.Equal(t, "R9", s.ReservationID)
	}
}

func TestCoordinator_DuplicateSeatInRequestConflicts(t *testing.T) {
	store := repository.NewMemorySeatStore()
	seatGrid(store, 1, 1, 2)
	c := newTestCoordinator(store)

	_, err := c.Claim(context.Background(), 1, []uint64{1, 1}, "R")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uint64{1}, conflict.SeatIDs)
}

// racingStore simulates a writer outside this process booking seats between
// the check and the conditional update.
type racingStore struct {
	*repository.MemorySeatStore
	steal []uint64
}

func (r *racingStore) BookSeats(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) ([]uint64, error) {
	if _, err := r.MemorySeatStore.BookSeats(ctx, screeningID, r.steal, "outsider"); err != nil {
		return nil, err
	}
	return r.MemorySeatStore.BookSeats(ctx, screeningID, seatIDs, reservationID)
}

func TestCoordinator_LostConditionalUpdateIsConflict(t *testing.T) {
	mem := repository.NewMemorySeatStore()
	seatGrid(mem, 1, 1, 3)
	log, hook := test.NewNullLogger()
	c := NewCoordinator(&racingStore{MemorySeatStore: mem, steal: []uint64{2}}, log)

	_, err := c.Claim(context.Background(), 1, []uint64{1, 2, 3}, "R")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uint64{2}, conflict.SeatIDs)
	require.NotNil(t, hook.LastEntry())

	seats, _ := mem.SeatsByID(context.Background(), 1, []uint64{1, 3})
	assert.True(t, seats[1].Available())
	assert.True(t, seats[3].Available())
}

func TestCoordinator_ScreeningsDoNotBlockEachOther(t *testing.T) {
	store := repository.NewMemorySeatStore()
	seatGrid(store, 1, 1, 1)
	seatGrid(store, 2, 1, 1)
	c := newTestCoordinator(store)

	release, err := c.lanes.acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.Claim(ctx, 2, []uint64{1}, "other-screening")
	assert.NoError(t, err)

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	_, err = c.Claim(short, 1, []uint64{1}, "blocked")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_ReleaseOnlyTouchesOwnSeats(t *testing.T) {
	store := repository.NewMemorySeatStore()
	seatGrid(store, 1, 1, 2)
	c := newTestCoordinator(store)

	_, err := c.Claim(context.Background(), 1, []uint64{1}, "mine")
	require.NoError(t, err)
	_, err = c.Claim(context.Background(), 1, []uint64{2}, "theirs")
	require.NoError(t, err)

	require.NoError(t, c.Release(context.Background(), 1, []uint64{1, 2}, "mine"))
	seats, _ := store.SeatsByID(context.Background(), 1, []uint64{1, 2})
	assert.True(t, seats[1].Available())
	assert.Equal(t, model.SeatBooked, seats[2].Status)
}
