package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/metrics"
)

var tracer = otel.Tracer("navalha.booking")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Config struct {
	// Suggestions is how many alternatives a conflict offers; <= 0 means
	// availability.DefaultSuggestions.
	Suggestions int
}

// Service is the single entry point every caller surface books through.
type Service struct {
	store   Store
	catalog Catalog
	clock   availability.Clock
	guard   *Guard
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
	cfg     Config
	newID   func() string
}

func NewService(store Store, catalog Catalog, clock availability.Clock, logger *slog.Logger, m *metrics.BookingMetrics, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		clock:   clock,
		guard:   NewGuard(store, logger, m),
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		newID:   uuid.NewString,
	}
}

type SlotRequest struct {
	ShopID         string
	ProfessionalID string
	// ServiceID may be empty when the caller has not picked a service yet;
	// the filter then only excludes exact start-time matches.
	ServiceID string
	Date      availability.CalendarDate
	Surface   Source
}

type SlotsResult struct {
	ShopID          string
	ProfessionalID  string
	ServiceID       string
	Date            availability.CalendarDate
	DurationMinutes int
	Mode            availability.Mode
	Slots           []availability.LocalTime
}

type SuggestRequest struct {
	SlotRequest
	Desired availability.LocalTime
	Count   int
}

type BookRequest struct {
	ShopID         string
	ServiceID      string
	ProfessionalID string
	Date           availability.CalendarDate
	StartTime      availability.LocalTime
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Source         Source
}

// Intent is a structured booking request from the assistant. Names are
// resolved through the catalog; Date is YYYY-MM-DD and Time is HH:MM.
type Intent struct {
	ShopID           string
	ServiceName      string
	ProfessionalName string
	Date             string
	Time             string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
}

// computed is one evaluation of the availability filter plus the raw grid
// it ran over.
type computed struct {
	result SlotsResult
	grid   []availability.LocalTime
}

func (c computed) free() availability.Result {
	return availability.Result{Mode: c.result.Mode, Slots: c.result.Slots}
}

func (s *Service) AvailableSlots(ctx context.Context, req SlotRequest) (SlotsResult, error) {
	ctx, span := tracer.Start(ctx, "booking.available_slots", trace.WithAttributes(slotAttrs(req)...))
	defer span.End()

	c, err := s.compute(ctx, req)
	if err != nil {
		span.RecordError(err)
		return SlotsResult{}, err
	}
	return c.result, nil
}

// Suggest ranks free grid slots by distance from req.Desired. Slots blocked by
// an overlap, or already past today, count as occupied.
func (s *Service) Suggest(ctx context.Context, req SuggestRequest) ([]availability.LocalTime, error) {
	ctx, span := tracer.Start(ctx, "booking.suggest", trace.WithAttributes(slotAttrs(req.SlotRequest)...))
	defer span.End()

	c, err := s.compute(ctx, req.SlotRequest)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := s.nearest(c, req.Desired, req.Count)
	s.metrics.ObserveSuggestions(surfaceOf(req.Surface), len(out))
	return out, nil
}

func (s *Service) Book(ctx context.Context, req BookRequest) (Appointment, error) {
	req = trimBookRequest(req)
	if err := validateBookRequest(req); err != nil {
		return Appointment{}, err
	}
	if today := availability.DateOf(s.clock.Now()); req.Date.Compare(today) < 0 {
		return Appointment{}, invalid("date %s is in the past", req.Date)
	}

	ctx, span := tracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("navalha.shop_id", req.ShopID),
		attribute.String("navalha.professional_id", req.ProfessionalID),
		attribute.String("navalha.source", string(req.Source)),
	))
	defer span.End()

	slotReq := SlotRequest{
		ShopID:         req.ShopID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		Date:           req.Date,
		Surface:        req.Source,
	}
	c, err := s.compute(ctx, slotReq)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}
	if c.result.DurationMinutes <= 0 || !c.free().Contains(req.StartTime) {
		cerr := &ConflictError{
			Stage:          StageQuery,
			ProfessionalID: req.ProfessionalID,
			Date:           req.Date,
			StartTime:      req.StartTime,
			Alternatives:   s.nearest(c, req.StartTime, 0),
		}
		s.metrics.ObserveSuggestions(surfaceOf(req.Source), len(cerr.Alternatives))
		return Appointment{}, cerr
	}

	appt := Appointment{
		ID:              s.newID(),
		ShopID:          req.ShopID,
		ServiceID:       req.ServiceID,
		ProfessionalID:  req.ProfessionalID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: c.result.DurationMinutes,
		Status:          req.Source.InitialStatus(),
		Source:          req.Source,
		CreatedAt:       s.clock.Now().UTC(),
	}

	att, err := s.guard.Commit(ctx, appt)
	if err != nil {
		var cerr *ConflictError
		if errors.As(err, &cerr) {
			// the first computation is stale by definition; offer what is free now
			if fresh, ferr := s.compute(ctx, slotReq); ferr == nil {
				cerr.Alternatives = s.nearest(fresh, req.StartTime, 0)
			} else {
				s.logger.Warn("alternatives lookup failed", "err", ferr)
			}
			s.metrics.ObserveSuggestions(surfaceOf(req.Source), len(cerr.Alternatives))
			return Appointment{}, cerr
		}
		span.RecordError(err)
		return Appointment{}, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", att.Appointment.ID,
		"shop_id", att.Appointment.ShopID,
		"professional_id", att.Appointment.ProfessionalID,
		"date", att.Appointment.Date.String(),
		"start_time", att.Appointment.StartTime.String(),
		"source", att.Appointment.Source,
	)
	return att.Appointment, nil
}

// BookFromIntent resolves an assistant intent by name and books it. The
// intent's date and time are untrusted and go through the same validation
// and guard as every other surface.
func (s *Service) BookFromIntent(ctx context.Context, in Intent) (Appointment, error) {
	in.ShopID = strings.TrimSpace(in.ShopID)
	in.ServiceName = strings.TrimSpace(in.ServiceName)
	in.ProfessionalName = strings.TrimSpace(in.ProfessionalName)
	if in.ShopID == "" || in.ServiceName == "" || in.ProfessionalName == "" {
		return Appointment{}, invalid("shop, service name, and professional name are required")
	}

	date, err := availability.ParseCalendarDate(strings.TrimSpace(in.Date))
	if err != nil {
		return Appointment{}, normalizeInput(err)
	}
	start, err := availability.ParseLocalTime(strings.TrimSpace(in.Time))
	if err != nil {
		return Appointment{}, normalizeInput(err)
	}

	svc, err := s.catalog.FindService(ctx, in.ShopID, in.ServiceName)
	if err != nil {
		return Appointment{}, fmt.Errorf("resolve service %q: %w", in.ServiceName, err)
	}
	prof, err := s.catalog.FindProfessional(ctx, in.ShopID, in.ProfessionalName)
	if err != nil {
		return Appointment{}, fmt.Errorf("resolve professional %q: %w", in.ProfessionalName, err)
	}

	return s.Book(ctx, BookRequest{
		ShopID:         in.ShopID,
		ServiceID:      svc.ID,
		ProfessionalID: prof.ID,
		Date:           date,
		StartTime:      start,
		CustomerName:   in.CustomerName,
		CustomerEmail:  in.CustomerEmail,
		CustomerPhone:  in.CustomerPhone,
		Source:         SourceAssistant,
	})
}

func (s *Service) Cancel(ctx context.Context, shopID, appointmentID, reason string) (Appointment, error) {
	shopID = strings.TrimSpace(shopID)
	appointmentID = strings.TrimSpace(appointmentID)
	if shopID == "" || appointmentID == "" {
		return Appointment{}, invalid("shop id and appointment id are required")
	}

	ctx, span := tracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.String("navalha.shop_id", shopID),
		attribute.String("navalha.appointment_id", appointmentID),
	))
	defer span.End()

	appt, err := s.store.Cancel(ctx, shopID, appointmentID, strings.TrimSpace(reason))
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNotCancellable) {
			span.RecordError(err)
		}
		return Appointment{}, err
	}
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "shop_id", shopID)
	return appt, nil
}

// Complete marks a booking as done. Completed bookings stop occupying their
// interval and can no longer be cancelled.
func (s *Service) Complete(ctx context.Context, shopID, appointmentID string) (Appointment, error) {
	shopID = strings.TrimSpace(shopID)
	appointmentID = strings.TrimSpace(appointmentID)
	if shopID == "" || appointmentID == "" {
		return Appointment{}, invalid("shop id and appointment id are required")
	}

	ctx, span := tracer.Start(ctx, "booking.complete", trace.WithAttributes(
		attribute.String("navalha.shop_id", shopID),
		attribute.String("navalha.appointment_id", appointmentID),
	))
	defer span.End()

	appt, err := s.store.Complete(ctx, shopID, appointmentID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNotCancellable) {
			span.RecordError(err)
		}
		return Appointment{}, err
	}
	s.logger.Info("appointment completed", "appointment_id", appt.ID, "shop_id", shopID)
	return appt, nil
}

func (s *Service) List(ctx context.Context, shopID string, limit int) ([]Appointment, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, invalid("shop id is required")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return s.store.ListByShop(ctx, shopID, limit)
}

func (s *Service) compute(ctx context.Context, req SlotRequest) (computed, error) {
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ShopID == "" || req.ProfessionalID == "" {
		return computed{}, invalid("shop id and professional id are required")
	}
	if req.Date.IsZero() {
		return computed{}, invalid("date is required")
	}

	settings, err := s.catalog.ShopSettings(ctx, req.ShopID)
	if err != nil {
		return computed{}, fmt.Errorf("load shop settings: %w", err)
	}
	prof, err := s.catalog.Professional(ctx, req.ShopID, req.ProfessionalID)
	if err != nil {
		return computed{}, fmt.Errorf("load professional: %w", err)
	}

	out := computed{result: SlotsResult{
		ShopID:         req.ShopID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		Date:           req.Date,
		Mode:           availability.ModeStartTimeOnly,
	}}

	if req.ServiceID != "" {
		svc, err := s.catalog.Service(ctx, req.ShopID, req.ServiceID)
		if err != nil {
			return computed{}, fmt.Errorf("load service: %w", err)
		}
		out.result.Mode = availability.ModeDurationAware
		if svc.DurationMinutes <= 0 {
			s.logger.Warn("service has no usable duration; no slots offered",
				"shop_id", req.ShopID, "service_id", svc.ID, "duration_minutes", svc.DurationMinutes)
			return out, nil
		}
		out.result.DurationMinutes = svc.DurationMinutes
	}
	if !prof.IsActive {
		return out, nil
	}

	bookings, err := s.store.ListOccupying(ctx, req.ShopID, req.ProfessionalID, req.Date)
	if err != nil {
		return computed{}, fmt.Errorf("load bookings: %w", err)
	}

	res, err := availability.Filter(availability.SlotQuery{
		ProfessionalID:           req.ProfessionalID,
		Date:                     req.Date,
		Window:                   settings.Window,
		GranularityMinutes:       settings.GranularityMinutes,
		RequestedDurationMinutes: out.result.DurationMinutes,
		Bookings:                 bookings,
		Now:                      s.clock.Now(),
	})
	if err != nil {
		return computed{}, normalizeInput(err)
	}

	s.metrics.ObserveSlotQuery(string(res.Mode), surfaceOf(req.Surface))
	if res.Degraded() {
		s.logger.Info("slot query without service duration; only exact start times excluded",
			"shop_id", req.ShopID, "professional_id", req.ProfessionalID, "date", req.Date.String())
	}

	out.result.Mode = res.Mode
	out.result.Slots = res.Slots
	out.grid = availability.GenerateSlots(settings.Window, settings.GranularityMinutes)
	return out, nil
}

// nearest treats every grid slot the filter dropped as occupied. The desired
// time itself is never offered back.
func (s *Service) nearest(c computed, desired availability.LocalTime, k int) []availability.LocalTime {
	if len(c.grid) == 0 {
		return nil
	}
	if k <= 0 {
		k = s.cfg.Suggestions
	}
	free := c.free()
	occupied := make([]availability.LocalTime, 0, len(c.grid)+1)
	occupied = append(occupied, desired)
	for _, t := range c.grid {
		if !free.Contains(t) {
			occupied = append(occupied, t)
		}
	}
	return availability.Nearest(desired, occupied, c.grid, k)
}

func trimBookRequest(req BookRequest) BookRequest {
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	if req.Source == "" {
		req.Source = SourcePublic
	}
	return req
}

func validateBookRequest(req BookRequest) error {
	if req.ShopID == "" || req.ServiceID == "" || req.ProfessionalID == "" || req.CustomerName == "" {
		return invalid("shop, service, professional, and customer name are required")
	}
	if req.Date.IsZero() {
		return invalid("date is required")
	}
	if !req.Source.Valid() {
		return invalid("unknown source %q", req.Source)
	}
	if req.StartTime < 0 || req.StartTime.Minutes() >= 24*60 {
		return invalid("start time out of range")
	}
	return nil
}

func surfaceOf(src Source) string {
	if src == "" {
		return string(SourcePublic)
	}
	return string(src)
}

func slotAttrs(req SlotRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("navalha.shop_id", req.ShopID),
		attribute.String("navalha.professional_id", req.ProfessionalID),
		attribute.String("navalha.date", req.Date.String()),
	}
}
