package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/model"
)

// RequireArea rejects sessions whose area is not in areas. It must run after
// RequireSession.
func RequireArea(areas ...model.Area) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(areas))
	for _, a := range areas {
		allowed[string(a)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			area, ok := c.Get(ctxArea).(string)
			if !ok || !allowed[area] {
				return apperr.Forbidden("Forbidden")
			}
			return next(c)
		}
	}
}

// RequireSubject rejects requests whose query parameter param names another
// account than the session's. A missing or malformed value passes through so
// the handler can report it.
func RequireSubject(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.QueryParam(param)
			want, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return next(c)
			}
			if got, ok := SessionAuthID(c); !ok || got != want {
				return apperr.Forbidden("Forbidden")
			}
			return next(c)
		}
	}
}
