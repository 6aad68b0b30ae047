package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/cinema-booking/internal/model"
    "github.com/iliyamo/cinema-booking/internal/repository"
    "github.com/iliyamo/cinema-booking/internal/service"
)

// statusClientClosedRequest is the nginx convention for a caller that hung
// up before the response was ready.
const statusClientClosedRequest = 499

// BookingService is the engine surface the booking endpoints need.
type BookingService interface {
    Reserve(ctx context.Context, in service.ReserveInput) (*model.Reservation, error)
    Seats(ctx context.Context, screeningID uint64) ([]model.Seat, error)
    ReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
    Reservation(ctx context.Context, id string) (*model.Reservation, error)
    Screening(ctx context.Context, id uint64) (*model.Screening, *model.Movie, error)
}

// BookingHandler serves seat maps, reservations and the reserve call. All
// routes except health run behind JWTAuth.
type BookingHandler struct {
    Svc BookingService
    Log logrus.FieldLogger
}

// NewBookingHandler constructs a BookingHandler and panics on a nil service.
func NewBookingHandler(svc BookingService, log logrus.FieldLogger) *BookingHandler {
    if svc == nil {
        panic("nil service passed to NewBookingHandler")
    }
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &BookingHandler{Svc: svc, Log: log}
}

// GetSeats handles GET /v1/seats/:screeningId and returns every seat of the
// screening row-major with its current status as a bare JSON array.
func (h *BookingHandler) GetSeats(c echo.Context) error {
    screeningID, ok := parseID(c, "screeningId")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
    }
    seats, err := h.Svc.Seats(c.Request().Context(), screeningID)
    if err != nil {
        if errors.Is(err, repository.ErrScreeningNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
        }
        h.Log.WithError(err).WithField("screening_id", screeningID).Error("list seats failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
    }
    items := make([]seatView, 0, len(seats))
    for _, s := range seats {
        items = append(items, toSeatView(s))
    }
    return c.JSON(http.StatusOK, items)
}

// GetScreening handles GET /v1/screenings/:id.
func (h *BookingHandler) GetScreening(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
    }
    screening, movie, err := h.Svc.Screening(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrScreeningNotFound) || errors.Is(err, repository.ErrMovieNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
        }
        h.Log.WithError(err).WithField("screening_id", id).Error("load screening failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load screening"})
    }
    return c.JSON(http.StatusOK, toScreeningView(*screening, *movie))
}

// ListUserReservations handles GET /v1/reservations/by-user/:userId. Users
// can only list their own reservations. The body is a JSON array, newest
// first.
func (h *BookingHandler) ListUserReservations(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    pathUID, ok := parseID(c, "userId")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
    }
    if pathUID != uid {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    list, err := h.Svc.ReservationsByUser(c.Request().Context(), uid)
    if err != nil {
        h.Log.WithError(err).WithField("user_id", uid).Error("list reservations failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
    }
    items := make([]reservationView, 0, len(list))
    for _, r := range list {
        items = append(items, toReservationView(r))
    }
    return c.JSON(http.StatusOK, items)
}

// GetReservation handles GET /v1/reservations/:id. Reservations of other
// users are reported as not found.
func (h *BookingHandler) GetReservation(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    res, err := h.Svc.Reservation(c.Request().Context(), c.Param("id"))
    if err != nil {
        if errors.Is(err, repository.ErrReservationNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        }
        h.Log.WithError(err).Error("load reservation failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
    }
    if res.UserID != uid {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
    }
    return c.JSON(http.StatusOK, toReservationView(*res))
}

// reserveRequest accepts the reserve parameters from the query string, a
// form body or a JSON body.
type reserveRequest struct {
    UserID         uint64   `query:"userId" form:"userId" json:"userId"`
    ScreeningID    uint64   `query:"screeningId" form:"screeningId" json:"screeningId"`
    SeatIDs        []uint64 `query:"seatIds" form:"seatIds" json:"seatIds"`
    IdempotencyKey string   `query:"idempotencyKey" form:"idempotencyKey" json:"idempotencyKey"`
}

// Reserve handles POST|GET /v1/reservations/reserve. userId may be omitted;
// when present it must match the token. The Idempotency-Key header wins
// over the idempotencyKey parameter.
func (h *BookingHandler) Reserve(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    var req reserveRequest
    binder := &echo.DefaultBinder{}
    if err := binder.BindQueryParams(c, &req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request parameters"})
    }
    if err := binder.BindBody(c, &req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if req.UserID != 0 && req.UserID != uid {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "userId does not match token"})
    }
    key := strings.TrimSpace(req.IdempotencyKey)
    if hk := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key")); hk != "" {
        key = hk
    }

    res, err := h.Svc.Reserve(c.Request().Context(), service.ReserveInput{
        UserID:         uid,
        ScreeningID:    req.ScreeningID,
        SeatIDs:        req.SeatIDs,
        IdempotencyKey: key,
    })
    if err != nil {
        return h.reserveError(c, err)
    }
    return c.JSON(http.StatusCreated, toReservationView(*res))
}

// reserveError maps engine errors onto status codes. Conflicts are kept
// distinct from validation failures so clients know to re-select seats.
func (h *BookingHandler) reserveError(c echo.Context, err error) error {
    var conflict *service.ConflictError
    var comp *service.CompensationError
    switch {
    case errors.As(err, &conflict):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":       "seats unavailable",
            "unavailable": conflict.SeatIDs,
        })
    case errors.Is(err, service.ErrInvalidRequest):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrScreeningNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
    case errors.Is(err, context.Canceled):
        return c.JSON(statusClientClosedRequest, echo.Map{
            "error":   "request cancelled",
            "message": "retry with the same Idempotency-Key",
        })
    case errors.Is(err, service.ErrOutcomeUnknown):
        return c.JSON(http.StatusGatewayTimeout, echo.Map{
            "error":   "outcome unknown",
            "message": "retry with the same Idempotency-Key",
        })
    case errors.As(err, &comp):
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation could not be recorded"})
    default:
        h.Log.WithError(err).Error("reserve failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
