package model

import (
    "sort"
    "strconv"
    "strings"
)

// SeatStatus is the availability state of a seat within one screening.
type SeatStatus string

const (
    // SeatAvailable seats can be claimed by a reservation.
    SeatAvailable SeatStatus = "AVAILABLE"
    // SeatHeld marks a seat inside an in-flight claim. It only ever exists
    // on in-memory copies while the screening's lane is held and is never
    // written to storage or returned to callers.
    SeatHeld SeatStatus = "HELD"
    // SeatBooked seats belong to exactly one reservation. Terminal.
    SeatBooked SeatStatus = "BOOKED"
)

// Seat is a bookable unit belonging to exactly one screening.
//
// Fields:
//  ID            – primary key identifier.
//  ScreeningID   – screening the seat belongs to.
//  RowLabel      – row designation (A, B, ... AA).
//  SeatNumber    – 1-based position within the row.
//  Status        – AVAILABLE or BOOKED.
//  ReservationID – owning reservation; empty unless booked.
type Seat struct {
    ID            uint64     // seats.id
    ScreeningID   uint64     // seats.screening_id
    RowLabel      string     // seats.row_label
    SeatNumber    uint32     // seats.seat_number
    Status        SeatStatus // seats.status
    ReservationID string     // seats.reservation_id (nullable)
}

// Label renders the seat the way tickets print it, e.g. "C12".
func (s Seat) Label() string {
    return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}

// Available reports whether the seat can be claimed.
func (s Seat) Available() bool { return s.Status == SeatAvailable }

// RowIndex converts a row label like A or AA into its zero-based index so
// that "Z" sorts before "AA". Labels with characters outside A-Z return false.
func RowIndex(label string) (int, bool) {
    s := strings.ToUpper(strings.TrimSpace(label))
    if s == "" {
        return -1, false
    }
    n := 0
    for i := 0; i < len(s); i++ {
        ch := s[i]
        if ch < 'A' || ch > 'Z' {
            return -1, false
        }
        n = n*26 + int(ch-'A'+1)
    }
    return n - 1, true
}

// SortSeats orders seats row-major: by row, then seat number, then id.
// Rows with non alphabetic labels sort after alphabetic ones, lexically.
func SortSeats(seats []Seat) {
    sort.SliceStable(seats, func(i, j int) bool {
        a, b := seats[i], seats[j]
        if a.RowLabel != b.RowLabel {
            ai, aok := RowIndex(a.RowLabel)
            bi, bok := RowIndex(b.RowLabel)
            switch {
            case aok && bok:
                return ai < bi
            case aok != bok:
                return aok
            default:
                return a.RowLabel < b.RowLabel
            }
        }
        if a.SeatNumber != b.SeatNumber {
            return a.SeatNumber < b.SeatNumber
        }
        return a.ID < b.ID
    })
}
