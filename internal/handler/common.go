package handler // handler defines http handlers

import (
    "errors"  // errors provides sentinel values used in getUserID
    "strconv" // strconv converts path parameters to numeric ids

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/cinema-booking/internal/middleware"
)

var errNoUser = errors.New("no authenticated user in context")

// getUserID returns the verified user id JWTAuth stored on the context.
func getUserID(c echo.Context) (uint64, error) {
    if id, ok := middleware.UserID(c); ok {
        return id, nil
    }
    return 0, errNoUser
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}
