package handler // handler defines http handlers

import (
    "errors" // errors provides the sentinel value used in getUserID

    "github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id stored in the echo.Context by the JWT
// middleware.  User identifiers are opaque strings (UUIDs).
func getUserID(c echo.Context) (string, error) {
    if s, ok := c.Get("user_id").(string); ok && s != "" {
        return s, nil
    }
    return "", errors.New("invalid user_id in context")
}
