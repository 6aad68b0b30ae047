package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/model"
)

func newMockDB(t *testing.T) (*SeatRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSeatRepo(db), mock
}

func seatRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "screening_id", "row_label", "seat_number", "status", "reservation_id"})
}

func TestSeatRepo_ListSeats(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE screening_id = ? ORDER BY CHAR_LENGTH(row_label)")).
		WithArgs(int64(7)).
		WillReturnRows(seatRows().
			AddRow(1, 7, "A", 1, "AVAILABLE", nil).
			AddRow(2, 7, "A", 2, "BOOKED", "res-1"))

	seats, err := repo.ListSeats(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, model.SeatAvailable, seats[0].Status)
	assert.Empty(t, seats[0].ReservationID)
	assert.Equal(t, model.SeatBooked, seats[1].Status)
	assert.Equal(t, "res-1", seats[1].ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_SeatsByID(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE screening_id = ? AND id IN (?,?,?)")).
		WithArgs(int64(7), int64(1), int64(2), int64(99)).
		WillReturnRows(seatRows().
			AddRow(1, 7, "A", 1, "AVAILABLE", nil).
			AddRow(2, 7, "A", 2, "AVAILABLE", nil))

	seats, err := repo.SeatsByID(context.Background(), 7, []uint64{1, 2, 99})
	require.NoError(t, err)
	assert.Len(t, seats, 2)
	_, ok := seats[99]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_BookSeats_AllAvailable(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM seats WHERE screening_id = ? AND status = 'AVAILABLE' AND id IN (?,?) FOR UPDATE")).
		WithArgs(int64(7), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET status = 'BOOKED', reservation_id = ?")).
		WithArgs("res-1", int64(7), int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	lost, err := repo.BookSeats(context.Background(), 7, []uint64{1, 2}, "res-1")
	require.NoError(t, err)
	assert.Empty(t, lost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_BookSeats_ReportsLostSeatsAndWritesNothing(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(7), int64(3), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	lost, err := repo.BookSeats(context.Background(), 7, []uint64{3, 1, 2}, "res-1")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, lost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_ReleaseSeats(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET status = 'AVAILABLE', reservation_id = NULL WHERE reservation_id = ? AND screening_id = ? AND id IN (?,?)")).
		WithArgs("res-1", int64(7), int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.ReleaseSeats(context.Background(), 7, []uint64{1, 2}, "res-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
