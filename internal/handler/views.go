package handler

import (
    "encoding/json"
    "time"

    "github.com/iliyamo/cinema-booking/internal/model"
)

// seatView is the seat shape the mobile client reads.
type seatView struct {
    ID          uint64 `json:"id"`
    Row         string `json:"row"`
    SeatNumber  uint32 `json:"seatNumber"`
    Label       string `json:"label"`
    Status      string `json:"status"`
    IsAvailable bool   `json:"isAvailable"`
}

func toSeatView(s model.Seat) seatView {
    return seatView{
        ID:          s.ID,
        Row:         s.RowLabel,
        SeatNumber:  s.SeatNumber,
        Label:       s.Label(),
        Status:      string(s.Status),
        IsAvailable: s.Available(),
    }
}

// reservationView mirrors the ticket the client renders. Amount is a JSON
// number with two decimals, e.g. 37.50. movieId, movieName, screeningDate
// and seats are the reserve confirmation fields the client reads.
type reservationView struct {
    ID              string      `json:"id"`
    UserID          uint64      `json:"user_id"`
    ScreeningID     uint64      `json:"screening_id"`
    SeatIDs         []uint64    `json:"seat_ids"`
    SeatNumbers     []string    `json:"seat_numbers"`
    NumberOfSeats   int         `json:"number_of_seats"`
    Amount          json.Number `json:"amount"`
    AmountCents     int64       `json:"amount_cents"`
    MovieTitle      string      `json:"movie_title"`
    MovieImgURL     string      `json:"movie_img_url"`
    ScreeningTime   string      `json:"screening_time"`
    ReservationDate string      `json:"reservation_date"`
    IdempotencyKey  string      `json:"idempotency_key,omitempty"`

    MovieID       uint64   `json:"movieId"`
    MovieName     string   `json:"movieName"`
    ScreeningDate string   `json:"screeningDate"`
    Seats         []string `json:"seats"`
}

func toReservationView(r model.Reservation) reservationView {
    seatIDs := r.SeatIDs
    if seatIDs == nil {
        seatIDs = []uint64{}
    }
    labels := r.SeatLabels
    if labels == nil {
        labels = []string{}
    }
    screeningTime := r.ScreeningTime.UTC().Format(time.RFC3339)
    return reservationView{
        ID:              r.ID,
        UserID:          r.UserID,
        ScreeningID:     r.ScreeningID,
        SeatIDs:         seatIDs,
        SeatNumbers:     labels,
        NumberOfSeats:   r.NumberOfSeats(),
        Amount:          json.Number(r.Amount()),
        AmountCents:     r.AmountCents,
        MovieTitle:      r.MovieTitle,
        MovieImgURL:     r.MovieImgURL,
        ScreeningTime:   screeningTime,
        ReservationDate: r.CreatedAt.UTC().Format(time.RFC3339),
        IdempotencyKey:  r.IdempotencyKey,
        MovieID:         r.MovieID,
        MovieName:       r.MovieTitle,
        ScreeningDate:   screeningTime,
        Seats:           labels,
    }
}

// screeningView carries what the client needs before seat selection.
type screeningView struct {
    ID            uint64      `json:"id"`
    ScreeningTime string      `json:"screeningTime"`
    PricePerSeat  json.Number `json:"pricePerSeat"`
    MovieID       uint64      `json:"movieId"`
    MovieTitle    string      `json:"movieTitle"`
    MovieImgURL   string      `json:"movieImgUrl"`
}

func toScreeningView(s model.Screening, m model.Movie) screeningView {
    return screeningView{
        ID:            s.ID,
        ScreeningTime: s.StartsAt.UTC().Format(time.RFC3339),
        PricePerSeat:  json.Number(model.FormatCents(s.PricePerSeatCents)),
        MovieID:       s.MovieID,
        MovieTitle:    m.Title,
        MovieImgURL:   m.ImgURL,
    }
}
