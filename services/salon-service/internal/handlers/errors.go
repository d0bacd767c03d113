package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
)

// writeBookingError maps booking errors onto HTTP status codes.
func writeBookingError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *booking.ValidationError
	var gerr *booking.GatewayError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, verr.Error(), map[string]any{"field": verr.Field})
	case errors.Is(err, booking.ErrServiceUnavailable):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "service unavailable", nil)
	case errors.Is(err, booking.ErrSlotNoLongerAvailable):
		httpx.WriteError(w, http.StatusConflict, "slot no longer available", nil)
	case errors.Is(err, booking.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, booking.ErrAppointmentMissing):
		httpx.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.Is(err, booking.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", nil)
	case errors.As(err, &gerr):
		logger.Warn("payment gateway unavailable", "appointment_id", gerr.AppointmentID, "error", gerr.Err)
		httpx.WriteError(w, http.StatusBadGateway, "payment provider unavailable, retry the booking", map[string]any{"appointment_id": gerr.AppointmentID})
	default:
		logger.Error("request failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
