package model

import "time"

// Screening is a scheduled showing of a movie with a fixed seat price. It is
// owned by the catalog and immutable as far as booking is concerned.
//
// Fields:
//  ID                – primary key identifier.
//  MovieID           – movie being shown.
//  StartsAt          – when the screening begins (UTC).
//  PricePerSeatCents – flat price of every seat in cents.
type Screening struct {
    ID                uint64    // screenings.id
    MovieID           uint64    // screenings.movie_id
    StartsAt          time.Time // screenings.starts_at
    PricePerSeatCents int64     // screenings.price_per_seat_cents
}

// Movie carries the display fields copied onto reservations.
type Movie struct {
    ID     uint64 // movies.id
    Title  string // movies.title
    ImgURL string // movies.img_url
}
