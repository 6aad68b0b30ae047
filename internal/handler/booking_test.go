package handler

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "net/url"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus/hooks/test"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/cinema-booking/internal/middleware"
    "github.com/iliyamo/cinema-booking/internal/model"
    "github.com/iliyamo/cinema-booking/internal/repository"
    "github.com/iliyamo/cinema-booking/internal/service"
    "github.com/iliyamo/cinema-booking/internal/utils"
)

const testSecret = "test-secret"

type fixture struct {
    e     *echo.Echo
    seats *repository.MemorySeatStore
}

func newFixture(t *testing.T, svc BookingService) *fixture {
    t.Helper()
    log, _ := test.NewNullLogger()
    seats := repository.NewMemorySeatStore()
    if svc == nil {
        catalog := repository.NewMemoryCatalog()
        repository.SeedDemo(catalog, seats, time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC))
        coord := service.NewCoordinator(seats, log)
        svc = service.NewReservationService(
            service.NewInventory(seats, catalog, coord),
            service.NewLedger(repository.NewMemoryReservationStore()),
            catalog,
            service.WithLogger(log),
        )
    }
    h := NewBookingHandler(svc, log)
    e := echo.New()
    g := e.Group("/v1", middleware.JWTAuth(testSecret))
    g.GET("/seats/:screeningId", h.GetSeats)
    g.GET("/screenings/:id", h.GetScreening)
    g.GET("/reservations/by-user/:userId", h.ListUserReservations)
    g.GET("/reservations/:id", h.GetReservation)
    g.POST("/reservations/reserve", h.Reserve)
    g.GET("/reservations/reserve", h.Reserve)
    return &fixture{e: e, seats: seats}
}

func (f *fixture) do(t *testing.T, uid uint64, req *http.Request) *httptest.ResponseRecorder {
    t.Helper()
    if uid != 0 {
        tok, err := utils.NewAccessToken(testSecret, uid, time.Minute)
        require.NoError(t, err)
        req.Header.Set("Authorization", "Bearer "+tok.Token)
    }
    rec := httptest.NewRecorder()
    f.e.ServeHTTP(rec, req)
    return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
    t.Helper()
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestGetSeats(t *testing.T) {
    f := newFixture(t, nil)
    rec := f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/seats/1", nil))
    require.Equal(t, http.StatusOK, rec.Code)

    var items []seatView
    decode(t, rec, &items)
    require.Len(t, items, 50)
    assert.Equal(t, "A1", items[0].Label)
    assert.True(t, items[0].IsAvailable)
    assert.Equal(t, "AVAILABLE", items[0].Status)
    assert.True(t, strings.HasPrefix(rec.Body.String(), "["))

    assert.Equal(t, http.StatusNotFound, f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/seats/99", nil)).Code)
    assert.Equal(t, http.StatusBadRequest, f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/seats/abc", nil)).Code)
    assert.Equal(t, http.StatusUnauthorized, f.do(t, 0, httptest.NewRequest(http.MethodGet, "/v1/seats/1", nil)).Code)
}

func TestGetScreening(t *testing.T) {
    f := newFixture(t, nil)
    rec := f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/screenings/1", nil))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), `"pricePerSeat":12.50`)
    assert.Contains(t, rec.Body.String(), `"screeningTime":"2026-07-01T19:00:00Z"`)
}

func TestReserve_QueryParamsCreateReservation(t *testing.T) {
    f := newFixture(t, nil)
    q := url.Values{"userId": {"5"}, "screeningId": {"1"}, "seatIds": {"1", "2", "3"}}
    rec := f.do(t, 5, httptest.NewRequest(http.MethodPost, "/v1/reservations/reserve?"+q.Encode(), nil))
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

    assert.Contains(t, rec.Body.String(), `"amount":37.50`)
    var view reservationView
    decode(t, rec, &view)
    assert.Equal(t, int64(3750), view.AmountCents)
    assert.Equal(t, 3, view.NumberOfSeats)
    assert.Equal(t, []string{"A1", "A2", "A3"}, view.SeatNumbers)
    assert.Equal(t, "The Projectionist", view.MovieTitle)
    assert.Equal(t, "The Projectionist", view.MovieName)
    assert.Equal(t, uint64(1), view.MovieID)
    assert.Equal(t, []string{"A1", "A2", "A3"}, view.Seats)
    assert.Equal(t, "2026-07-01T19:00:00Z", view.ScreeningDate)

    seats := f.do(t, 5, httptest.NewRequest(http.MethodGet, "/v1/seats/1", nil))
    var seatItems []seatView
    decode(t, seats, &seatItems)
    assert.False(t, seatItems[0].IsAvailable)
    assert.True(t, seatItems[3].IsAvailable)

    list := f.do(t, 5, httptest.NewRequest(http.MethodGet, "/v1/reservations/by-user/5", nil))
    require.Equal(t, http.StatusOK, list.Code)
    var mine []reservationView
    decode(t, list, &mine)
    require.Len(t, mine, 1)
    assert.Equal(t, view.ID, mine[0].ID)
    assert.Equal(t, []uint64{1, 2, 3}, mine[0].SeatIDs)

    one := f.do(t, 5, httptest.NewRequest(http.MethodGet, "/v1/reservations/"+view.ID, nil))
    assert.Equal(t, http.StatusOK, one.Code)
    other := f.do(t, 6, httptest.NewRequest(http.MethodGet, "/v1/reservations/"+view.ID, nil))
    assert.Equal(t, http.StatusNotFound, other.Code)
}

func TestReserve_JSONAndFormBodies(t *testing.T) {
    f := newFixture(t, nil)

    req := httptest.NewRequest(http.MethodPost, "/v1/reservations/reserve", strings.NewReader(`{"screeningId":1,"seatIds":[11,12]}`))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := f.do(t, 2, req)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

    form := url.Values{"screeningId": {"1"}, "seatIds": {"21", "22"}}
    req = httptest.NewRequest(http.MethodPost, "/v1/reservations/reserve", strings.NewReader(form.Encode()))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
    rec = f.do(t, 2, req)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestReserve_ConflictListsUnavailableSeats(t *testing.T) {
    f := newFixture(t, nil)
    first := f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/reservations/reserve?screeningId=1&seatIds=11", nil))
    require.Equal(t, http.StatusCreated, first.Code)

    rec := f.do(t, 2, httptest.NewRequest(http.MethodGet, "/v1/reservations/reserve?screeningId=1&seatIds=11&seatIds=12", nil))
    require.Equal(t, http.StatusConflict, rec.Code)
    assert.JSONEq(t, `{"error":"seats unavailable","unavailable":[11]}`, rec.Body.String())
}

func TestReserve_ErrorMapping(t *testing.T) {
    f := newFixture(t, nil)
    cases := []struct {
        name   string
        uid    uint64
        target string
        status int
    }{
        {"no seats", 1, "/v1/reservations/reserve?screeningId=1", http.StatusBadRequest},
        {"duplicate seats", 1, "/v1/reservations/reserve?screeningId=1&seatIds=4&seatIds=4", http.StatusBadRequest},
        {"bad seat id", 1, "/v1/reservations/reserve?screeningId=1&seatIds=x", http.StatusBadRequest},
        {"unknown screening", 1, "/v1/reservations/reserve?screeningId=77&seatIds=4", http.StatusNotFound},
        {"other user", 1, "/v1/reservations/reserve?userId=2&screeningId=1&seatIds=4", http.StatusForbidden},
        {"no token", 0, "/v1/reservations/reserve?screeningId=1&seatIds=4", http.StatusUnauthorized},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rec := f.do(t, tc.uid, httptest.NewRequest(http.MethodPost, tc.target, nil))
            assert.Equal(t, tc.status, rec.Code, rec.Body.String())
        })
    }
}

func TestReserve_IdempotencyHeaderWins(t *testing.T) {
    f := newFixture(t, nil)
    send := func() reservationView {
        req := httptest.NewRequest(http.MethodPost, "/v1/reservations/reserve?screeningId=1&seatIds=30&idempotencyKey=ignored", nil)
        req.Header.Set("Idempotency-Key", "order-77")
        rec := f.do(t, 9, req)
        require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
        var v reservationView
        decode(t, rec, &v)
        return v
    }
    a, b := send(), send()
    assert.Equal(t, a.ID, b.ID)
    assert.Equal(t, "order-77", a.IdempotencyKey)
}

func TestListUserReservations_Forbidden(t *testing.T) {
    f := newFixture(t, nil)
    rec := f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/reservations/by-user/2", nil))
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec = f.do(t, 1, httptest.NewRequest(http.MethodGet, "/v1/reservations/by-user/1", nil))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `[]`, rec.Body.String())
}

// stubService returns a fixed error from Reserve.
type stubService struct {
    BookingService
    err error
}

func (s stubService) Reserve(context.Context, service.ReserveInput) (*model.Reservation, error) {
    return nil, s.err
}

func TestReserve_EngineFailures(t *testing.T) {
    cases := map[string]struct {
        err    error
        status int
    }{
        "timeout":      {service.ErrOutcomeUnknown, http.StatusGatewayTimeout},
        "compensation": {&service.CompensationError{ReservationID: "r", Cause: errors.New("disk")}, http.StatusInternalServerError},
        "mismatch":     {service.ErrIdempotencyMismatch, http.StatusBadRequest},
        "cancelled":    {fmt.Errorf("%w: %w", service.ErrOutcomeUnknown, context.Canceled), statusClientClosedRequest},
        "other":        {errors.New("boom"), http.StatusInternalServerError},
    }
    for name, tc := range cases {
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, stubService{err: tc.err})
            rec := f.do(t, 1, httptest.NewRequest(http.MethodPost, "/v1/reservations/reserve?screeningId=1&seatIds=1", nil))
            assert.Equal(t, tc.status, rec.Code)
        })
    }
}
