package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/service"
)

// requestTimeout bounds one request end to end. The pool applies its own,
// tighter acquire and transaction deadlines inside it.
const requestTimeout = 10 * time.Second

// AccountHandler serves the credential endpoints.
type AccountHandler struct {
	Accounts *service.AccountService
}

func NewAccountHandler(a *service.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: a}
}

// ----- DTOs -----

type emailReq struct {
	Email string `json:"email"`
}

type emailResp struct {
	Exists  bool   `json:"exists"`
	Message string `json:"message"`
}

type sessionResp struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	AuthID      uint64            `json:"auth_id"`
	AccountType model.AccountType `json:"account_type"`
	Area        model.Area        `json:"area"`
	Token       string            `json:"token"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

func newSessionResp(msg string, s service.Session) sessionResp {
	return sessionResp{
		Success:     true,
		Message:     msg,
		AuthID:      s.AuthID,
		AccountType: s.AccountType,
		Area:        s.Area,
		Token:       s.Token,
		ExpiresAt:   s.ExpiresAt,
	}
}

// CheckEmail: 200 when the address is free, 401 when it is taken.
func (h *AccountHandler) CheckEmail(c echo.Context) error {
	var req emailReq
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	exists, err := h.Accounts.EmailExists(ctx, req.Email)
	if err != nil {
		return err
	}
	if exists {
		return c.JSON(http.StatusUnauthorized, emailResp{Exists: true, Message: service.MsgEmailTaken})
	}
	return c.JSON(http.StatusOK, emailResp{Exists: false, Message: service.MsgEmailFree})
}

// Login verifies credentials and returns the account's role and a session.
func (h *AccountHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Accounts.Login(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResp(service.MsgLoginSuccess, sess))
}

// SignUp creates the credential, address and customer in one transaction.
func (h *AccountHandler) SignUp(c echo.Context) error {
	var req service.SignUpInput
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Accounts.Register(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResp(service.MsgSignUpSuccess, sess))
}

// decodeJSON reads the body as JSON whatever the Content-Type header says.
func decodeJSON(c echo.Context, v any) error {
	if err := c.Echo().JSONSerializer.Deserialize(c, v); err != nil {
		return apperr.Client("Invalid JSON")
	}
	return nil
}
