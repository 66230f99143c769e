package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/aggregation"
	"github.com/smukkama/farm-carbon/internal/carbon"
	"github.com/smukkama/farm-carbon/internal/database"
	"github.com/smukkama/farm-carbon/internal/reference"
	"github.com/smukkama/farm-carbon/internal/species"
	"github.com/smukkama/farm-carbon/internal/units"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, aggregation.ErrFarmNotFound),
		errors.Is(err, database.ErrNFTNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrNFTExists):
		return http.StatusConflict
	case errors.Is(err, species.ErrUnresolvedSpecies),
		errors.Is(err, carbon.ErrInvalidDivisor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reference.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, aggregation.ErrMissingPricingEntry),
		errors.Is(err, units.ErrUnsupportedConversion):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return msg
		}
		return http.StatusText(httpErr.Code)
	}
	return err.Error()
}

// ErrorHandler writes errors as ErrorResponse and logs server-side failures
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", code),
				zap.Error(err))
		}

		body := ErrorResponse{Error: true, Message: messageFor(err)}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, body)
		}
		if writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
	}
}

func badRequest(msg string, err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg).SetInternal(err)
}
