package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cinema-booking/internal/handler"    // handlers that serve the booking API
	"github.com/iliyamo/cinema-booking/internal/middleware" // JWT auth, rate limit and response cache
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// Booking bundles what the protected booking routes need.  Cache and
// RateLimit may be pass-through middleware when Redis is unavailable.
type Booking struct {
	Handler   *handler.BookingHandler
	JWTSecret string
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// RegisterBooking mounts the booking API under /v1.  Every route requires a
// valid access token.  Only screening details are cached: seat maps and
// reservations must reflect writes immediately.
func RegisterBooking(e *echo.Echo, b Booking) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(b.JWTSecret))

	g.GET("/seats/:screeningId", b.Handler.GetSeats)
	g.GET("/screenings/:id", b.Handler.GetScreening, orPass(b.Cache))
	g.GET("/reservations/by-user/:userId", b.Handler.ListUserReservations)
	g.GET("/reservations/:id", b.Handler.GetReservation)

	reserve := []echo.MiddlewareFunc{orPass(b.RateLimit)}
	g.POST("/reservations/reserve", b.Handler.Reserve, reserve...)
	g.GET("/reservations/reserve", b.Handler.Reserve, reserve...)
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}
