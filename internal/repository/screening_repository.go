// Package repository contains data access logic for the booking engine. This
// file resolves screenings and their movies, the two catalog lookups that a
// reservation needs. The catalog itself is maintained by another service;
// these queries are read only.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// CatalogRepo reads screenings and movies from the shared catalog tables.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the given DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// GetScreening retrieves a screening by its ID. It returns
// ErrScreeningNotFound if there is no matching row.
func (r *CatalogRepo) GetScreening(ctx context.Context, id uint64) (*model.Screening, error) {
	const q = `SELECT id, movie_id, starts_at, price_per_seat_cents FROM screenings WHERE id = ?`
	var s model.Screening
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.MovieID, &s.StartsAt, &s.PricePerSeatCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScreeningNotFound
		}
		return nil, err
	}
	s.StartsAt = s.StartsAt.UTC()
	return &s, nil
}

// GetMovie retrieves the display fields of a movie. It returns
// ErrMovieNotFound if there is no matching row.
func (r *CatalogRepo) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	const q = `SELECT id, title, COALESCE(img_url, '') FROM movies WHERE id = ?`
	var m model.Movie
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.Title, &m.ImgURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &m, nil
}
