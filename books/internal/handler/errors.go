package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
)

const internalMessage = "internal server error"

type validationResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func invalid(fields map[string]string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, validationResponse{
		Message: errs.ErrValidation.Error(),
		Errors:  fields,
	})
}

// httpError maps service errors to stable status codes. Storage and
// unknown failures are logged and answered without detail.
func (h *Handler) httpError(c echo.Context, err error) *echo.HTTPError {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		return invalid(verr.Fields)
	case errors.Is(err, errs.ErrInvalidGrade),
		errors.Is(err, errs.ErrDuplicateRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "book not found")
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication failed")
	case errors.Is(err, errs.ErrInvalidLogin):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		h.log.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Request().Method),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, internalMessage)
	}
}
