package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for splitting and trimming the header

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/cinema-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the verified user id under "user_id" in the request context.  The
// secret must match the one the authentication service signs with.  The
// engine trusts this id as given.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }

            uid, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(userIDKey, uid)
            return next(c)
        }
    }
}

// bearerToken extracts the credentials of a Bearer Authorization header. The
// scheme is matched case-insensitively ("bearer" is as good as "Bearer").
func bearerToken(header string) (string, bool) {
    scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
    if !found || !strings.EqualFold(scheme, "Bearer") {
        return "", false
    }
    token = strings.TrimSpace(token)
    return token, token != ""
}
