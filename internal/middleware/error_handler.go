package middleware

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"schoolfees_app/internal/services"
)

// CustomErrorHandler translates service errors into the JSON envelope.
// Validation failures map to 400, missing entities to 404, lost races to 409;
// anything else is a 500 with a generic message so storage details never leak.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "something went wrong, please try again later"

	var notFound *services.NotFoundError
	var conflict *services.ConcurrencyConflictError
	var storage *services.StorageError
	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &notFound):
		code = http.StatusNotFound
		message = notFound.Error()
	case services.IsValidationError(err):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.As(err, &validationErrs):
		code = http.StatusBadRequest
		message = validationErrs.Error()
	case errors.As(err, &conflict):
		code = http.StatusConflict
		message = conflict.Error()
	case errors.As(err, &storage):
		c.Logger().Error(err)
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	default:
		c.Logger().Error(err)
	}

	if err := c.JSON(code, map[string]interface{}{
		"success": false,
		"message": message,
	}); err != nil {
		c.Logger().Error(err)
	}
}
