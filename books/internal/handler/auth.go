package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/book-rating-service/pkg/validate"
)

type credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Signup(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return invalid(validate.Fields(err))
	}
	if _, err := h.usersSvc.Signup(c.Request().Context(), req.Email, req.Password); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, messageResponse{Message: "User created"})
}

func (h *Handler) Login(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return invalid(validate.Fields(err))
	}
	sess, err := h.usersSvc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}
