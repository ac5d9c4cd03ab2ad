package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/store"
)

// httpError maps a pipeline error to the echo.HTTPError the teacher's
// handlers return, picking a status code from the typed apperrors
// taxonomy instead of string-matching an error message.
func httpError(err error) error {
	if err == nil {
		return nil
	}

	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Message)
	}

	var changeSourceErr *apperrors.ChangeSourceError
	if errors.As(err, &changeSourceErr) {
		switch changeSourceErr.Kind {
		case apperrors.ChangeSourceNotFound:
			return echo.NewHTTPError(http.StatusNotFound, changeSourceErr.Message)
		case apperrors.ChangeSourceAuth:
			return echo.NewHTTPError(http.StatusUnauthorized, changeSourceErr.Message)
		case apperrors.ChangeSourceRateLimited:
			return echo.NewHTTPError(http.StatusTooManyRequests, changeSourceErr.Message)
		case apperrors.ChangeSourceURLFormat:
			return echo.NewHTTPError(http.StatusBadRequest, changeSourceErr.Message)
		default:
			return echo.NewHTTPError(http.StatusBadGateway, changeSourceErr.Message)
		}
	}

	var parseErr *apperrors.ParseError
	if errors.As(err, &parseErr) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, parseErr.Message)
	}

	var cancelledErr *apperrors.Cancelled
	if errors.As(err, &cancelledErr) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, cancelledErr.Message)
	}

	var storageErr *apperrors.StorageError
	if errors.As(err, &storageErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, storageErr.Message)
	}

	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "review not found")
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
