package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/cinema-booking/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ReservationRepo is the durable side of the reservation ledger. Rows are
// only ever inserted: there is no update or delete path. Seats reserved
// under a reservation are stored in reservation_seats together with their
// position in the original request. All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a reservation and its seats in one transaction. A duplicate
// id or a duplicate (user_id, idempotency_key) pair yields
// ErrDuplicateReservation and nothing is written.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const q = `INSERT INTO reservations
               (id, user_id, screening_id, amount_cents, movie_id, movie_title, movie_img_url, screening_time, idempotency_key, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var key interface{}
    if res.IdempotencyKey != "" {
        key = res.IdempotencyKey
    }
    if _, err := tx.ExecContext(ctx, q,
        res.ID, res.UserID, res.ScreeningID, res.AmountCents, res.MovieID,
        res.MovieTitle, res.MovieImgURL, res.ScreeningTime.UTC(), key, res.CreatedAt.UTC(),
    ); err != nil {
        return mapDuplicate(err)
    }

    if len(res.SeatIDs) > 0 {
        query := `INSERT INTO reservation_seats (reservation_id, position, seat_id, label) VALUES `
        args := make([]interface{}, 0, len(res.SeatIDs)*4)
        for i, sid := range res.SeatIDs {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?)"
            label := ""
            if i < len(res.SeatLabels) {
                label = res.SeatLabels[i]
            }
            args = append(args, res.ID, i, sid, label)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return mapDuplicate(err)
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

const reservationSelect = `SELECT id, user_id, screening_id, amount_cents, movie_id, movie_title, movie_img_url,
                                  screening_time, idempotency_key, created_at
                           FROM reservations`

// GetByID returns a single reservation with its seats. It returns
// ErrReservationNotFound when no row exists.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
    return r.getOne(ctx, reservationSelect+` WHERE id = ?`, id)
}

// GetByIdempotencyKey returns the reservation a user recorded under key. It
// returns ErrReservationNotFound when the key has not been used.
func (r *ReservationRepo) GetByIdempotencyKey(ctx context.Context, userID uint64, key string) (*model.Reservation, error) {
    return r.getOne(ctx, reservationSelect+` WHERE user_id = ? AND idempotency_key = ?`, userID, key)
}

func (r *ReservationRepo) getOne(ctx context.Context, q string, args ...interface{}) (*model.Reservation, error) {
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, args...))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrReservationNotFound
        }
        return nil, err
    }
    out := []model.Reservation{*res}
    if err := r.loadSeats(ctx, out); err != nil {
        return nil, err
    }
    return &out[0], nil
}

// ListByUser returns all reservations for the given user ordered by
// creation time descending (newest first). When no reservations exist, an
// empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx, reservationSelect+` WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Reservation, 0)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if err := r.loadSeats(ctx, out); err != nil {
        return nil, err
    }
    return out, nil
}

// loadSeats populates SeatIDs and SeatLabels for all reservations in a
// single query.
func (r *ReservationRepo) loadSeats(ctx context.Context, list []model.Reservation) error {
    if len(list) == 0 {
        return nil
    }
    index := make(map[string]int, len(list))
    ids := make([]interface{}, 0, len(list))
    for i := range list {
        index[list[i].ID] = i
        ids = append(ids, list[i].ID)
        list[i].SeatIDs = []uint64{}
        list[i].SeatLabels = []string{}
    }
    q := `SELECT reservation_id, seat_id, label
          FROM reservation_seats
          WHERE reservation_id IN (` + placeholders(len(ids)) + `)
          ORDER BY reservation_id, position`
    rows, err := r.db.QueryContext(ctx, q, ids...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var resID, label string
        var sid uint64
        if err := rows.Scan(&resID, &sid, &label); err != nil {
            return err
        }
        idx, ok := index[resID]
        if !ok {
            continue
        }
        list[idx].SeatIDs = append(list[idx].SeatIDs, sid)
        list[idx].SeatLabels = append(list[idx].SeatLabels, label)
    }
    return rows.Err()
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
    var res model.Reservation
    var key sql.NullString
    var screeningTime, createdAt time.Time
    if err := row.Scan(
        &res.ID, &res.UserID, &res.ScreeningID, &res.AmountCents, &res.MovieID, &res.MovieTitle, &res.MovieImgURL,
        &screeningTime, &key, &createdAt,
    ); err != nil {
        return nil, err
    }
    if key.Valid {
        res.IdempotencyKey = strings.TrimSpace(key.String)
    }
    res.ScreeningTime = screeningTime.UTC()
    res.CreatedAt = createdAt.UTC()
    return &res, nil
}

func mapDuplicate(err error) error {
    var me *mysql.MySQLError
    if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
        return ErrDuplicateReservation
    }
    return err
}
