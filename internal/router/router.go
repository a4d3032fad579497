// Package router builds the echo instance and mounts the HTTP API.
package router

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Spycrab06/snailmail/internal/config"
	"github.com/Spycrab06/snailmail/internal/handler"
	"github.com/Spycrab06/snailmail/internal/middleware"
	"github.com/Spycrab06/snailmail/internal/model"
)

// New returns an echo instance with the shared middleware stack and error
// handler installed. Routes are added by Register.
func New(log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.RequestLogger(log))
	// Recover sits inside the logger so a panic is logged with its 500.
	e.Use(echomw.Recover())
	// CORS answers every OPTIONS with 204 itself, preflight or not, known
	// path or not.
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("1M"))
	return e
}

// Deps is everything Register mounts. Nil middlewares are skipped.
type Deps struct {
	BasePath        string
	JWTSecret       string
	SessionRequired bool

	DB        handler.Pinger
	Accounts  *handler.AccountHandler
	Customers *handler.CustomerHandler

	RateLimit func(bucket string) echo.MiddlewareFunc
	ReadCache echo.MiddlewareFunc
	Log       *slog.Logger
}

// Register mounts every route under d.BasePath.
func Register(e *echo.Echo, d Deps) {
	g := e.Group(d.BasePath)
	RegisterRoutes(g, d.DB, d.Log)
	RegisterAccount(g, d.Accounts, d.RateLimit)
	RegisterCustomer(g, d.Customers, d.customerGuards()...)
}

func (d Deps) customerGuards() []echo.MiddlewareFunc {
	var mws []echo.MiddlewareFunc
	if d.SessionRequired {
		mws = append(mws,
			middleware.RequireSession(d.JWTSecret),
			middleware.RequireArea(model.AreaCustomer),
			middleware.RequireSubject("authId"),
		)
	}
	// Cache after the guards so a cached profile is never served to a
	// caller that fails them.
	if d.ReadCache != nil {
		mws = append(mws, d.ReadCache)
	}
	return mws
}

// RegisterRoutes mounts the unauthenticated operational endpoints.
func RegisterRoutes(g *echo.Group, db handler.Pinger, log *slog.Logger) {
	g.GET("/healthz", handler.Health(db, log))
}

// RegisterAccount mounts the credential endpoints. limit, when set, gives
// each endpoint its own rate-limit bucket.
func RegisterAccount(g *echo.Group, a *handler.AccountHandler, limit func(bucket string) echo.MiddlewareFunc) {
	guard := func(bucket string) []echo.MiddlewareFunc {
		if limit == nil {
			return nil
		}
		return []echo.MiddlewareFunc{limit(bucket)}
	}
	g.POST("/checkEmail", a.CheckEmail, guard(config.BucketCheckEmail)...)
	g.POST("/login", a.Login, guard(config.BucketLogin)...)
	g.POST("/userSignUp", a.SignUp, guard(config.BucketSignUp)...)
}

// RegisterCustomer mounts the customer profile read behind guards.
func RegisterCustomer(g *echo.Group, h *handler.CustomerHandler, guards ...echo.MiddlewareFunc) {
	g.GET("/getCustomerData", h.GetCustomerData, guards...)
}
