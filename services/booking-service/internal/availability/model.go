package availability

import (
	"errors"
	"time"
)

// ErrInvalidInput marks malformed caller input (a caller bug), as opposed to a
// misconfiguration, which simply yields no slots.
var ErrInvalidInput = errors.New("invalid availability input")

// DefaultGranularityMinutes is the system-wide slot spacing.
const DefaultGranularityMinutes = 30

type OperatingWindow struct {
	Opens  LocalTime
	Closes LocalTime
}

func (w OperatingWindow) Valid() bool {
	return w.Opens < w.Closes
}

type ServiceSpec struct {
	ID              string
	Name            string
	DurationMinutes int
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Occupying reports whether a booking in this status reserves calendar time.
func (s Status) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

type ExistingBooking struct {
	ID              string
	ProfessionalID  string
	Date            CalendarDate
	StartTime       LocalTime
	DurationMinutes int
	Status          Status
}

func (b ExistingBooking) End() LocalTime {
	return b.StartTime.Add(b.DurationMinutes)
}

// SlotQuery is the Filter's input. RequestedDurationMinutes == 0 means the
// service duration is unknown and the filter runs in start-time-only mode.
type SlotQuery struct {
	ProfessionalID           string
	Date                     CalendarDate
	Window                   OperatingWindow
	GranularityMinutes       int
	RequestedDurationMinutes int
	Bookings                 []ExistingBooking
	Now                      time.Time
}

type Mode string

const (
	ModeDurationAware Mode = "duration_aware"
	ModeStartTimeOnly Mode = "start_time_only"
)

type Result struct {
	Slots []LocalTime
	Mode  Mode
}

// Degraded reports whether conflict detection ran without a service duration.
func (r Result) Degraded() bool {
	return r.Mode == ModeStartTimeOnly
}

// Contains reports whether t is one of the surviving slots.
func (r Result) Contains(t LocalTime) bool {
	for _, s := range r.Slots {
		if s == t {
			return true
		}
	}
	return false
}
