package middleware

// identity.go holds the accessors for the authenticated user that JWTAuth
// stores in the echo context.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// UserID returns the verified user id, or false when the request is not
// authenticated.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(userIDKey).(uint64)
    return id, ok && id != 0
}

// userKey renders the user id for cache and rate limit keys; anonymous
// callers share the "guest" bucket.
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
