package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/apperr"
)

type failureResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorHandler renders every error that reaches echo:
//   - *apperr.Error       -> its status with {success:false, message}
//   - unknown route/method -> 404 text/plain "URL not found"
//   - other echo errors    -> their status with {success:false, message}
//   - anything else        -> 500 {error, message}, details only logged
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		req := c.Request()

		var ae *apperr.Error
		if errors.As(err, &ae) {
			if ae.HTTPStatus() >= http.StatusInternalServerError {
				log.Error("request failed", "kind", ae.Kind.String(), "method", req.Method,
					"path", req.URL.Path, "err", err)
			}
			respond(c, ae.HTTPStatus(), failureResp{Success: false, Message: ae.Message})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusNotFound, http.StatusMethodNotAllowed:
				if req.Method == http.MethodHead {
					_ = c.NoContent(http.StatusNotFound)
					return
				}
				_ = c.String(http.StatusNotFound, "URL not found")
				return
			}
			if he.Code < 500 {
				msg := http.StatusText(he.Code)
				if s, ok := he.Message.(string); ok {
					msg = s
				}
				respond(c, he.Code, failureResp{Success: false, Message: msg})
				return
			}
		}

		log.Error("unhandled error", "method", req.Method, "path", req.URL.Path, "err", err)
		respond(c, http.StatusInternalServerError, echo.Map{
			"error":   "Internal server error",
			"message": "unexpected error",
		})
	}
}

func respond(c echo.Context, status int, body any) {
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
