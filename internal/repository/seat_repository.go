package repository // repository defines data access for screening seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// SeatRepo provides access to the seats table. Every row belongs to exactly
// one screening and carries its own status, so a claim only ever touches
// rows of the screening being booked.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `id, screening_id, row_label, seat_number, status, reservation_id`

// ListSeats returns every seat of a screening in row-major order. Ordering by
// CHAR_LENGTH first keeps row "Z" ahead of row "AA".
func (r *SeatRepo) ListSeats(ctx context.Context, screeningID uint64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + `
	           FROM seats
	           WHERE screening_id = ?
	           ORDER BY CHAR_LENGTH(row_label), row_label, seat_number, id`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// SeatsByID loads the requested seats of one screening keyed by id. Ids that
// do not exist, or that belong to another screening, are simply absent.
func (r *SeatRepo) SeatsByID(ctx context.Context, screeningID uint64, seatIDs []uint64) (map[uint64]model.Seat, error) {
	out := make(map[uint64]model.Seat, len(seatIDs))
	if len(seatIDs) == 0 {
		return out, nil
	}
	q := `SELECT ` + seatColumns + ` FROM seats WHERE screening_id = ? AND id IN (` + placeholders(len(seatIDs)) + `)`
	rows, err := r.db.QueryContext(ctx, q, seatArgs(screeningID, seatIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BookSeats is the conditional multi-row update behind a claim. Inside one
// transaction it locks the requested rows that are still AVAILABLE; if any
// requested seat is missing from that set nothing is written and the missing
// ids are returned in request order. Otherwise every seat is set to BOOKED
// under reservationID and the transaction commits.
func (r *SeatRepo) BookSeats(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	lockQ := `SELECT id FROM seats WHERE screening_id = ? AND status = 'AVAILABLE' AND id IN (` +
		placeholders(len(seatIDs)) + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, lockQ, seatArgs(screeningID, seatIDs)...)
	if err != nil {
		return nil, err
	}
	free := make(map[uint64]struct{}, len(seatIDs))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		free[id] = struct{}{}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	var lost []uint64
	for _, id := range seatIDs {
		if _, ok := free[id]; !ok {
			lost = append(lost, id)
		}
	}
	if len(lost) > 0 {
		return lost, nil
	}

	updQ := `UPDATE seats SET status = 'BOOKED', reservation_id = ?
	         WHERE screening_id = ? AND status = 'AVAILABLE' AND id IN (` + placeholders(len(seatIDs)) + `)`
	args := append([]interface{}{reservationID}, seatArgs(screeningID, seatIDs)...)
	res, err := tx.ExecContext(ctx, updQ, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != int64(len(seatIDs)) {
		return nil, fmt.Errorf("booked %d of %d locked seats", n, len(seatIDs))
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return nil, nil
}

// ReleaseSeats returns seats booked by reservationID to AVAILABLE. Seats that
// are not booked by that reservation are left untouched, so repeating the
// call is harmless.
func (r *SeatRepo) ReleaseSeats(ctx context.Context, screeningID uint64, seatIDs []uint64, reservationID string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	q := `UPDATE seats SET status = 'AVAILABLE', reservation_id = NULL
	      WHERE reservation_id = ? AND screening_id = ? AND id IN (` + placeholders(len(seatIDs)) + `)`
	args := append([]interface{}{reservationID}, seatArgs(screeningID, seatIDs)...)
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeat(row rowScanner) (model.Seat, error) {
	var s model.Seat
	var status string
	var resID sql.NullString
	if err := row.Scan(&s.ID, &s.ScreeningID, &s.RowLabel, &s.SeatNumber, &status, &resID); err != nil {
		return model.Seat{}, err
	}
	s.Status = model.SeatStatus(status)
	if resID.Valid {
		s.ReservationID = resID.String
	}
	return s, nil
}

// placeholders builds "?,?,?" for an IN clause of n values.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func seatArgs(screeningID uint64, seatIDs []uint64) []interface{} {
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, screeningID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	return args
}
