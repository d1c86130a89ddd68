package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

// MemoryStore is an in-process booking.Store. Insert holds the lock across
// the overlap check and the write, which is what makes it atomic.
type MemoryStore struct {
	mu    sync.Mutex
	appts map[string]booking.Appointment
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: map[string]booking.Appointment{}, now: time.Now}
}

func (s *MemoryStore) ListOccupying(_ context.Context, shopID, professionalID string, date availability.CalendarDate) ([]availability.ExistingBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupyingLocked(shopID, professionalID, date), nil
}

func (s *MemoryStore) occupyingLocked(shopID, professionalID string, date availability.CalendarDate) []availability.ExistingBooking {
	var out []availability.ExistingBooking
	for _, a := range s.appts {
		if a.ShopID != shopID || a.ProfessionalID != professionalID || a.Date != date || !a.Status.Occupying() {
			continue
		}
		out = append(out, a.Existing())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (s *MemoryStore) Insert(_ context.Context, appt booking.Appointment) (booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if _, exists := s.appts[appt.ID]; exists {
		return booking.Appointment{}, fmt.Errorf("appointment %s already exists", appt.ID)
	}
	if appt.Status.Occupying() {
		busy := s.occupyingLocked(appt.ShopID, appt.ProfessionalID, appt.Date)
		if len(availability.Conflicts(appt.Proposal(), busy)) > 0 {
			return booking.Appointment{}, booking.ErrSlotTaken
		}
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = s.now().UTC()
	}
	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *MemoryStore) Get(_ context.Context, shopID, appointmentID string) (booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[appointmentID]
	if !ok || a.ShopID != shopID {
		return booking.Appointment{}, booking.ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) Cancel(_ context.Context, shopID, appointmentID, reason string) (booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[appointmentID]
	if !ok || a.ShopID != shopID {
		return booking.Appointment{}, booking.ErrNotFound
	}
	if a.Status == availability.StatusCancelled {
		return a, nil
	}
	if !a.Status.Occupying() {
		return booking.Appointment{}, booking.ErrNotCancellable
	}
	now := s.now().UTC()
	a.Status = availability.StatusCancelled
	a.CancelledAt = &now
	a.CancelReason = reason
	s.appts[a.ID] = a
	return a, nil
}

// Complete marks a booking as done; it stops occupying its interval.
func (s *MemoryStore) Complete(_ context.Context, shopID, appointmentID string) (booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[appointmentID]
	if !ok || a.ShopID != shopID {
		return booking.Appointment{}, booking.ErrNotFound
	}
	if a.Status == availability.StatusCompleted {
		return a, nil
	}
	if !a.Status.Occupying() {
		return booking.Appointment{}, booking.ErrNotCancellable
	}
	a.Status = availability.StatusCompleted
	s.appts[a.ID] = a
	return a, nil
}

func (s *MemoryStore) ListByShop(_ context.Context, shopID string, limit int) ([]booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []booking.Appointment
	for _, a := range s.appts {
		if a.ShopID == shopID {
			out = append(out, a)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(appts []booking.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c > 0
		}
		return a.StartTime > b.StartTime
	})
}

// MemoryCatalog is an in-process booking.Catalog.
type MemoryCatalog struct {
	mu            sync.RWMutex
	shops         map[string]booking.ShopSettings
	services      map[string]map[string]availability.ServiceSpec
	professionals map[string]map[string]booking.Professional
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		shops:         map[string]booking.ShopSettings{},
		services:      map[string]map[string]availability.ServiceSpec{},
		professionals: map[string]map[string]booking.Professional{},
	}
}

// PutShop adds or replaces a shop. A zero granularity means the default.
func (c *MemoryCatalog) PutShop(s booking.ShopSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.GranularityMinutes == 0 {
		s.GranularityMinutes = availability.DefaultGranularityMinutes
	}
	c.shops[s.ShopID] = s
}

func (c *MemoryCatalog) PutService(shopID string, svc availability.ServiceSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.services[shopID] == nil {
		c.services[shopID] = map[string]availability.ServiceSpec{}
	}
	c.services[shopID][svc.ID] = svc
}

func (c *MemoryCatalog) PutProfessional(p booking.Professional) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.professionals[p.ShopID] == nil {
		c.professionals[p.ShopID] = map[string]booking.Professional{}
	}
	c.professionals[p.ShopID][p.ID] = p
}

func (c *MemoryCatalog) CreateShop(_ context.Context, name string, window availability.OperatingWindow, granularity int) (string, error) {
	id := uuid.NewString()
	c.PutShop(booking.ShopSettings{ShopID: id, Name: name, Window: window, GranularityMinutes: granularity})
	return id, nil
}

func (c *MemoryCatalog) CreateService(_ context.Context, shopID, name string, durationMinutes int) (string, error) {
	if !c.hasShop(shopID) {
		return "", booking.ErrNotFound
	}
	id := uuid.NewString()
	c.PutService(shopID, availability.ServiceSpec{ID: id, Name: name, DurationMinutes: durationMinutes})
	return id, nil
}

func (c *MemoryCatalog) CreateProfessional(_ context.Context, shopID, name string) (string, error) {
	if !c.hasShop(shopID) {
		return "", booking.ErrNotFound
	}
	id := uuid.NewString()
	c.PutProfessional(booking.Professional{ID: id, ShopID: shopID, Name: name, IsActive: true})
	return id, nil
}

func (c *MemoryCatalog) hasShop(shopID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.shops[shopID]
	return ok
}

func (c *MemoryCatalog) ShopSettings(_ context.Context, shopID string) (booking.ShopSettings, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.shops[shopID]
	if !ok {
		return booking.ShopSettings{}, booking.ErrNotFound
	}
	return s, nil
}

func (c *MemoryCatalog) Service(_ context.Context, shopID, serviceID string) (availability.ServiceSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[shopID][serviceID]
	if !ok {
		return availability.ServiceSpec{}, booking.ErrNotFound
	}
	return svc, nil
}

func (c *MemoryCatalog) FindService(_ context.Context, shopID, name string) (availability.ServiceSpec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, svc := range sortedServices(c.services[shopID]) {
		if strings.EqualFold(svc.Name, strings.TrimSpace(name)) {
			return svc, nil
		}
	}
	return availability.ServiceSpec{}, booking.ErrNotFound
}

func (c *MemoryCatalog) Professional(_ context.Context, shopID, professionalID string) (booking.Professional, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.professionals[shopID][professionalID]
	if !ok {
		return booking.Professional{}, booking.ErrNotFound
	}
	return p, nil
}

func (c *MemoryCatalog) FindProfessional(_ context.Context, shopID, name string) (booking.Professional, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range sortedProfessionals(c.professionals[shopID]) {
		if p.IsActive && strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return booking.Professional{}, booking.ErrNotFound
}

// Name lookups must not depend on map iteration order.
func sortedServices(m map[string]availability.ServiceSpec) []availability.ServiceSpec {
	out := make([]availability.ServiceSpec, 0, len(m))
	for _, svc := range m {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedProfessionals(m map[string]booking.Professional) []booking.Professional {
	out := make([]booking.Professional, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
