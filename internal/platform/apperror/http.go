package apperror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTP maps a service error onto an echo HTTP error. Application errors keep
// their status and message; anything else is an opaque 500.
func HTTP(err error) *echo.HTTPError {
	var appErr *Error
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.Status, appErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
