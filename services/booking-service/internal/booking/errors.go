package booking

import (
	"errors"
	"fmt"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
)

var (
	ErrInvalidInput   = errors.New("invalid booking request")
	ErrSlotTaken      = errors.New("time slot already booked")
	ErrNotFound       = errors.New("not found")
	ErrNotCancellable = errors.New("appointment cannot be cancelled")
)

// Stage is where a conflict was detected.
type Stage string

const (
	// StageQuery: the requested time was not among the available slots.
	StageQuery Stage = "query"
	// StageRevalidate: the guard's write-time re-read found an overlap.
	StageRevalidate Stage = "revalidate"
	// StagePersist: the store's atomic constraint fired after the guard passed.
	StagePersist Stage = "persist"
)

// ConflictError is a stale-read or persistence conflict. Callers should offer
// Alternatives instead of a generic failure.
type ConflictError struct {
	Stage          Stage
	ProfessionalID string
	Date           availability.CalendarDate
	StartTime      availability.LocalTime
	Conflicting    []availability.ExistingBooking
	Alternatives   []availability.LocalTime
	Err            error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s for professional %s is not available (%s)", e.Date, e.StartTime, e.ProfessionalID, e.Stage)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotTaken
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// normalizeInput maps availability's malformed-input errors onto ErrInvalidInput.
func normalizeInput(err error) error {
	if err == nil || errors.Is(err, ErrInvalidInput) {
		return err
	}
	if errors.Is(err, availability.ErrInvalidInput) ||
		errors.Is(err, availability.ErrInvalidTime) ||
		errors.Is(err, availability.ErrInvalidDate) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
