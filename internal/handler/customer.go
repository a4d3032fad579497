package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/service"
)

type CustomerHandler struct {
	Customers *service.CustomerService
}

func NewCustomerHandler(s *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{Customers: s}
}

type customerResp struct {
	Success  bool                 `json:"success"`
	Customer model.CustomerRecord `json:"customer"`
}

// GetCustomerData returns the profile named by ?authId=.
func (h *CustomerHandler) GetCustomerData(c echo.Context) error {
	authID, err := service.ParseAuthID(c.QueryParam("authId"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rec, err := h.Customers.Get(ctx, authID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customerResp{Success: true, Customer: rec})
}
