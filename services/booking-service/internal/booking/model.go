package booking

import (
	"time"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
)

// Source names the caller surface that created a booking.
type Source string

const (
	SourcePublic     Source = "public"
	SourceAdminForm  Source = "admin_form"
	SourceQuickModal Source = "quick_modal"
	SourceAssistant  Source = "assistant"
)

func (s Source) Valid() bool {
	switch s {
	case SourcePublic, SourceAdminForm, SourceQuickModal, SourceAssistant:
		return true
	}
	return false
}

// InitialStatus is the status a new booking gets: staff-created bookings are
// confirmed, client-created ones wait for the shop.
func (s Source) InitialStatus() availability.Status {
	if s == SourceAdminForm || s == SourceQuickModal {
		return availability.StatusConfirmed
	}
	return availability.StatusPending
}

type Appointment struct {
	ID              string
	ShopID          string
	ServiceID       string
	ProfessionalID  string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Date            availability.CalendarDate
	StartTime       availability.LocalTime
	DurationMinutes int
	Status          availability.Status
	Source          Source
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
}

func (a Appointment) EndTime() availability.LocalTime {
	return a.StartTime.Add(a.DurationMinutes)
}

func (a Appointment) Existing() availability.ExistingBooking {
	return availability.ExistingBooking{
		ID:              a.ID,
		ProfessionalID:  a.ProfessionalID,
		Date:            a.Date,
		StartTime:       a.StartTime,
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
	}
}

func (a Appointment) Proposal() availability.Proposal {
	return availability.Proposal{
		ProfessionalID:  a.ProfessionalID,
		Date:            a.Date,
		StartTime:       a.StartTime,
		DurationMinutes: a.DurationMinutes,
	}
}

// StartsAt is the booking's start instant in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.StartTime, loc)
}

type ShopSettings struct {
	ShopID             string
	Name               string
	Window             availability.OperatingWindow
	GranularityMinutes int
}

type Professional struct {
	ID       string
	ShopID   string
	Name     string
	IsActive bool
}
