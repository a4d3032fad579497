package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/utils"
)

// Context keys set by RequireSession.
const (
	ctxAuthID = "auth_id"
	ctxArea   = "area"
)

// RequireSession validates the Bearer session token and stores its subject
// and area in the echo context.
func RequireSession(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return apperr.Unauthorized("Missing session token")
			}
			claims, err := utils.ParseSessionToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return apperr.Unauthorized("Invalid session token")
			}
			authID, err := claims.AuthID()
			if err != nil {
				return apperr.Unauthorized("Invalid session token")
			}
			c.Set(ctxAuthID, authID)
			c.Set(ctxArea, string(claims.Area))
			return next(c)
		}
	}
}

// SessionAuthID returns the authenticated auth_id, if any.
func SessionAuthID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxAuthID).(uint64)
	return id, ok
}

// currentUserID is the session subject as a key segment, "anon" without one.
func currentUserID(c echo.Context) string {
	if id, ok := SessionAuthID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
