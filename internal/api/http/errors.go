package httpapi

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agri-weather-dashboard/internal/export"
	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/selection"
	"github.com/i474232898/agri-weather-dashboard/internal/store"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

// errSuperseded is returned when a session query finished after a newer one started.
var errSuperseded = errors.New("result superseded by a newer query")

// statusFor maps domain errors to a status code and a user-facing message.
// Transport details never reach the client.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, err.Error()

	case errors.Is(err, weather.ErrTransport),
		errors.Is(err, weather.ErrUpstreamStatus),
		errors.Is(err, weather.ErrInvalidPayload):
		return fiber.StatusBadGateway, weather.ErrTransport.Error()
	case errors.Is(err, weather.ErrDownloadTimeout):
		return fiber.StatusGatewayTimeout, weather.ErrDownloadTimeout.Error()
	case errors.Is(err, weather.ErrNoData):
		return fiber.StatusNotFound, weather.ErrNoData.Error()
	case errors.Is(err, period.ErrBoundsUnavailable):
		return fiber.StatusUnprocessableEntity, "bounds unavailable"

	case errors.Is(err, weather.ErrStationNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, weather.ErrUnknownInstitution),
		errors.Is(err, weather.ErrUnsupported),
		errors.Is(err, period.ErrInvalidWindow),
		errors.Is(err, selection.ErrOptionOutOfRange),
		errors.Is(err, selection.ErrInvalidEvent):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, selection.ErrNotReady),
		errors.Is(err, export.ErrEmpty),
		errors.Is(err, errSuperseded),
		errors.Is(err, store.ErrStateConflict):
		return fiber.StatusConflict, err.Error()
	}
	return fiber.StatusInternalServerError, "internal server error"
}

// ErrorHandler is the centralized fiber error handler.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code, msg := statusFor(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
		}
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": msg,
		})
	}
}
