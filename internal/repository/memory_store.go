package repository

// In-memory stores back the engine when STORE_DRIVER=memory and in tests.
// They honour the same contracts as the MySQL repositories: BookSeats is
// all-or-nothing, reservations are append only and listed newest first.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// MemorySeatStore keeps seats per screening behind a single RWMutex. The
// mutex only protects the maps; claim serialization is the coordinator's job.
type MemorySeatStore struct {
	mu    sync.RWMutex
	seats map[uint64]map[uint64]model.Seat // screening id -> seat id -> seat
}

// NewMemorySeatStore returns an empty seat store.
func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{seats: make(map[uint64]map[uint64]model.Seat)}
}

// AddSeats registers seats for a screening. Seats are stored AVAILABLE
// unless they already carry a status.
func (m *MemorySeatStore) AddSeats(screeningID uint64, seats ...model.Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.seats[screeningID]
	if !ok {
		byID = make(map[uint64]model.Seat)
		m.seats[screeningID] = byID
	}
	for _, s := range seats {
		s.ScreeningID = screeningID
		if s.Status == "" {
			s.Status = model.SeatAvailable
		}
		byID[s.ID] = s
	}
}

// ListSeats returns all seats of a screening in row-major order.
func (m *MemorySeatStore) ListSeats(_ context.Context, screeningID uint64) ([]model.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Seat, 0, len(m.seats[screeningID]))
	for _, s := range m.seats[screeningID] {
		out = append(out, s)
	}
	model.SortSeats(out)
	return out, nil
}

// SeatsByID returns the requested seats of the screening keyed by id.
func (m *MemorySeatStore) SeatsByID(_ context.Context, screeningID uint64, seatIDs []uint64) (map[uint64]model.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]model.Seat, len(seatIDs))
	byID := m.seats[screeningID]
	for _, id := range seatIDs {
		if s, ok := byID[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// BookSeats books every seat or none, returning the ids that were not
// AVAILABLE in request order.
func (m *MemorySeatStore) BookSeats(_ context.Context, screeningID uint64, seatIDs []uint64, reservationID string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := m.seats[screeningID]
	var lost []uint64
	for _, id := range seatIDs {
		if s, ok := byID[id]; !ok || s.Status != model.SeatAvailable {
			lost = append(lost, id)
		}
	}
	if len(lost) > 0 {
		return lost, nil
	}
	for _, id := range seatIDs {
		s := byID[id]
		s.Status = model.SeatBooked
		s.ReservationID = reservationID
		byID[id] = s
	}
	return nil, nil
}

// ReleaseSeats returns seats booked by reservationID to AVAILABLE.
func (m *MemorySeatStore) ReleaseSeats(_ context.Context, screeningID uint64, seatIDs []uint64, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := m.seats[screeningID]
	for _, id := range seatIDs {
		s, ok := byID[id]
		if !ok || s.ReservationID != reservationID {
			continue
		}
		s.Status = model.SeatAvailable
		s.ReservationID = ""
		byID[id] = s
	}
	return nil
}

// MemoryReservationStore is an append-only reservation log.
type MemoryReservationStore struct {
	mu    sync.RWMutex
	byID  map[string]model.Reservation
	order []string
}

// NewMemoryReservationStore returns an empty reservation store.
func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{byID: make(map[string]model.Reservation)}
}

// Create appends a reservation. Duplicate ids and duplicate (user, key)
// pairs are rejected with ErrDuplicateReservation.
func (m *MemoryReservationStore) Create(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[res.ID]; ok {
		return ErrDuplicateReservation
	}
	if res.IdempotencyKey != "" {
		for _, existing := range m.byID {
			if existing.UserID == res.UserID && existing.IdempotencyKey == res.IdempotencyKey {
				return ErrDuplicateReservation
			}
		}
	}
	m.byID[res.ID] = cloneReservation(*res)
	m.order = append(m.order, res.ID)
	return nil
}

// GetByID returns a copy of the reservation with the given id.
func (m *MemoryReservationStore) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.byID[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	out := cloneReservation(res)
	return &out, nil
}

// GetByIdempotencyKey returns the reservation recorded by userID under key.
func (m *MemoryReservationStore) GetByIdempotencyKey(_ context.Context, userID uint64, key string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, res := range m.byID {
		if res.UserID == userID && res.IdempotencyKey == key {
			out := cloneReservation(res)
			return &out, nil
		}
	}
	return nil, ErrReservationNotFound
}

// ListByUser returns the user's reservations, newest first. Reservations
// created at the same instant are returned in reverse insertion order.
func (m *MemoryReservationStore) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		res := m.byID[m.order[i]]
		if res.UserID == userID {
			out = append(out, cloneReservation(res))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Len reports how many reservations have been recorded.
func (m *MemoryReservationStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

func cloneReservation(r model.Reservation) model.Reservation {
	r.SeatIDs = append([]uint64(nil), r.SeatIDs...)
	r.SeatLabels = append([]string(nil), r.SeatLabels...)
	return r
}

// MemoryCatalog serves screenings and movies from maps.
type MemoryCatalog struct {
	mu         sync.RWMutex
	screenings map[uint64]model.Screening
	movies     map[uint64]model.Movie
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		screenings: make(map[uint64]model.Screening),
		movies:     make(map[uint64]model.Movie),
	}
}

// AddMovie registers a movie.
func (m *MemoryCatalog) AddMovie(mv model.Movie) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movies[mv.ID] = mv
}

// AddScreening registers a screening.
func (m *MemoryCatalog) AddScreening(s model.Screening) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.screenings[s.ID] = s
}

// GetScreening returns the screening or ErrScreeningNotFound.
func (m *MemoryCatalog) GetScreening(_ context.Context, id uint64) (*model.Screening, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.screenings[id]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	return &s, nil
}

// GetMovie returns the movie or ErrMovieNotFound.
func (m *MemoryCatalog) GetMovie(_ context.Context, id uint64) (*model.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mv, ok := m.movies[id]
	if !ok {
		return nil, ErrMovieNotFound
	}
	return &mv, nil
}

// SeedDemo fills the in-memory stores with one movie and one screening of
// rows A-E with ten seats each, priced at 12.50. Seat ids are 1..50.
func SeedDemo(catalog *MemoryCatalog, seats *MemorySeatStore, startsAt time.Time) {
	catalog.AddMovie(model.Movie{ID: 1, Title: "The Projectionist", ImgURL: "https://img.example.com/projectionist.jpg"})
	catalog.AddScreening(model.Screening{ID: 1, MovieID: 1, StartsAt: startsAt.UTC(), PricePerSeatCents: 1250})
	var id uint64
	for row := 0; row < 5; row++ {
		for num := uint32(1); num <= 10; num++ {
			id++
			seats.AddSeats(1, model.Seat{
				ID:         id,
				RowLabel:   fmt.Sprintf("%c", 'A'+row),
				SeatNumber: num,
			})
		}
	}
}
