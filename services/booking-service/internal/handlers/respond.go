package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

type errorResponse struct {
	Error string `json:"error"`
}

// conflictResponse is what a client gets instead of a generic failure when
// its slot is gone: the stage that caught it and where it could book instead.
type conflictResponse struct {
	Error        string                    `json:"error"`
	Stage        booking.Stage             `json:"stage"`
	Date         availability.CalendarDate `json:"date"`
	StartTime    availability.LocalTime    `json:"start_time"`
	Alternatives []availability.LocalTime  `json:"alternatives"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps booking errors onto status codes. Anything it does
// not recognise is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var cerr *booking.ConflictError
	switch {
	case errors.As(err, &cerr):
		alts := cerr.Alternatives
		if alts == nil {
			alts = []availability.LocalTime{}
		}
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:        booking.ErrSlotTaken.Error(),
			Stage:        cerr.Stage,
			Date:         cerr.Date,
			StartTime:    cerr.StartTime,
			Alternatives: alts,
		})
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
