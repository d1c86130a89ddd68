package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

// BookingService is the booking core every surface goes through.
type BookingService interface {
	AvailableSlots(ctx context.Context, req booking.SlotRequest) (booking.SlotsResult, error)
	Suggest(ctx context.Context, req booking.SuggestRequest) ([]availability.LocalTime, error)
	Book(ctx context.Context, req booking.BookRequest) (booking.Appointment, error)
	BookFromIntent(ctx context.Context, in booking.Intent) (booking.Appointment, error)
	Cancel(ctx context.Context, shopID, appointmentID, reason string) (booking.Appointment, error)
	Complete(ctx context.Context, shopID, appointmentID string) (booking.Appointment, error)
	List(ctx context.Context, shopID string, limit int) ([]booking.Appointment, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *slog.Logger
	loc    *time.Location
}

func NewBookingHandler(svc BookingService, logger *slog.Logger, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = availability.FixedZone(availability.DefaultOffsetMinutes)
	}
	return &BookingHandler{svc: svc, logger: logger, loc: loc}
}

type createBookingRequest struct {
	ServiceID      string         `json:"service_id"`
	ProfessionalID string         `json:"professional_id"`
	Date           string         `json:"date"`
	StartTime      string         `json:"start_time"`
	CustomerName   string         `json:"customer_name"`
	CustomerEmail  string         `json:"customer_email"`
	CustomerPhone  string         `json:"customer_phone"`
	Source         booking.Source `json:"source"`
}

type intentRequest struct {
	Service       string `json:"service"`
	Professional  string `json:"professional"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

type slotsResponse struct {
	ShopID          string                    `json:"shop_id"`
	ProfessionalID  string                    `json:"professional_id"`
	ServiceID       string                    `json:"service_id,omitempty"`
	Date            availability.CalendarDate `json:"date"`
	DurationMinutes int                       `json:"duration_minutes"`
	Mode            availability.Mode         `json:"mode"`
	Slots           []availability.LocalTime  `json:"slots"`
}

type suggestionsResponse struct {
	Desired     availability.LocalTime   `json:"desired"`
	Suggestions []availability.LocalTime `json:"suggestions"`
}

type appointmentResponse struct {
	AppointmentID      string                    `json:"appointment_id"`
	ShopID             string                    `json:"shop_id"`
	ServiceID          string                    `json:"service_id"`
	ProfessionalID     string                    `json:"professional_id"`
	CustomerName       string                    `json:"customer_name"`
	Date               availability.CalendarDate `json:"date"`
	StartTime          availability.LocalTime    `json:"start_time"`
	EndTime            availability.LocalTime    `json:"end_time"`
	DurationMinutes    int                       `json:"duration_minutes"`
	StartsAt           string                    `json:"starts_at"`
	Status             availability.Status       `json:"status"`
	Source             booking.Source            `json:"source"`
	CancelledAt        string                    `json:"cancelled_at,omitempty"`
	CancellationReason string                    `json:"cancellation_reason,omitempty"`
	CreatedAt          string                    `json:"created_at"`
}

func (h *BookingHandler) toResponse(a booking.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID:      a.ID,
		ShopID:             a.ShopID,
		ServiceID:          a.ServiceID,
		ProfessionalID:     a.ProfessionalID,
		CustomerName:       a.CustomerName,
		Date:               a.Date,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime(),
		DurationMinutes:    a.DurationMinutes,
		StartsAt:           a.StartsAt(h.loc).Format(time.RFC3339),
		Status:             a.Status,
		Source:             a.Source,
		CancellationReason: a.CancelReason,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// Slots serves both the public page and the staff views. Staff may leave
// service_id out; the result is then start-time-only and the response's mode
// says so.
func (h *BookingHandler) Slots(surface booking.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.slotRequest(w, r, surface)
		if !ok {
			return
		}
		if surface == booking.SourcePublic && req.ServiceID == "" {
			writeError(w, http.StatusBadRequest, "service_id is required")
			return
		}
		if s := booking.Source(strings.TrimSpace(r.URL.Query().Get("surface"))); surface != booking.SourcePublic && s == booking.SourceQuickModal {
			req.Surface = s
		}
		res, err := h.svc.AvailableSlots(r.Context(), req)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		slots := res.Slots
		if slots == nil {
			slots = []availability.LocalTime{}
		}
		writeJSON(w, http.StatusOK, slotsResponse{
			ShopID:          res.ShopID,
			ProfessionalID:  res.ProfessionalID,
			ServiceID:       res.ServiceID,
			Date:            res.Date,
			DurationMinutes: res.DurationMinutes,
			Mode:            res.Mode,
			Slots:           slots,
		})
	}
}

func (h *BookingHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	req, ok := h.slotRequest(w, r, booking.SourcePublic)
	if !ok {
		return
	}
	q := r.URL.Query()
	desired, err := availability.ParseLocalTime(strings.TrimSpace(q.Get("desired")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid desired time")
		return
	}
	count := 0
	if raw := strings.TrimSpace(q.Get("count")); raw != "" {
		if count, err = strconv.Atoi(raw); err != nil || count < 0 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
	}

	out, err := h.svc.Suggest(r.Context(), booking.SuggestRequest{SlotRequest: req, Desired: desired, Count: count})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if out == nil {
		out = []availability.LocalTime{}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Desired: desired, Suggestions: out})
}

// CreatePublic books from the public page; the status is always pending.
func (h *BookingHandler) CreatePublic(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, func(src booking.Source) (booking.Source, bool) {
		return booking.SourcePublic, src == "" || src == booking.SourcePublic
	})
}

// CreateStaff books from the admin form or the quick modal.
func (h *BookingHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, func(src booking.Source) (booking.Source, bool) {
		switch src {
		case "":
			return booking.SourceAdminForm, true
		case booking.SourceAdminForm, booking.SourceQuickModal:
			return src, true
		}
		return "", false
	})
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request, source func(booking.Source) (booking.Source, bool)) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	src, ok := source(booking.Source(strings.TrimSpace(string(req.Source))))
	if !ok {
		writeError(w, http.StatusBadRequest, "source not allowed on this endpoint")
		return
	}
	date, err := availability.ParseCalendarDate(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	start, err := availability.ParseLocalTime(strings.TrimSpace(req.StartTime))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time")
		return
	}

	appt, err := h.svc.Book(r.Context(), booking.BookRequest{
		ShopID:         chi.URLParam(r, "shopID"),
		ServiceID:      req.ServiceID,
		ProfessionalID: req.ProfessionalID,
		Date:           date,
		StartTime:      start,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Source:         src,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(appt))
}

// CreateFromIntent takes the assistant's already-extracted intent. Names are
// resolved against the shop's catalog.
func (h *BookingHandler) CreateFromIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	appt, err := h.svc.BookFromIntent(r.Context(), booking.Intent{
		ShopID:           chi.URLParam(r, "shopID"),
		ServiceName:      req.Service,
		ProfessionalName: req.Professional,
		Date:             req.Date,
		Time:             req.Time,
		CustomerName:     req.CustomerName,
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelBookingRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	appt, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "shopID"), chi.URLParam(r, "appointmentID"), req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(appt))
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Complete(r.Context(), chi.URLParam(r, "shopID"), chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	appts, err := h.svc.List(r.Context(), chi.URLParam(r, "shopID"), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, h.toResponse(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) slotRequest(w http.ResponseWriter, r *http.Request, surface booking.Source) (booking.SlotRequest, bool) {
	q := r.URL.Query()
	date, err := availability.ParseCalendarDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return booking.SlotRequest{}, false
	}
	professionalID := strings.TrimSpace(q.Get("professional_id"))
	if professionalID == "" {
		writeError(w, http.StatusBadRequest, "professional_id is required")
		return booking.SlotRequest{}, false
	}
	return booking.SlotRequest{
		ShopID:         chi.URLParam(r, "shopID"),
		ProfessionalID: professionalID,
		ServiceID:      strings.TrimSpace(q.Get("service_id")),
		Date:           date,
		Surface:        surface,
	}, true
}
