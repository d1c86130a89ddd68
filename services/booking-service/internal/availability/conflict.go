package availability

import "fmt"

// Proposal is the interval a client is about to commit.
type Proposal struct {
	ProfessionalID  string
	Date            CalendarDate
	StartTime       LocalTime
	DurationMinutes int
}

func (p Proposal) End() LocalTime {
	return p.StartTime.Add(p.DurationMinutes)
}

func (p Proposal) Validate() error {
	if p.ProfessionalID == "" {
		return fmt.Errorf("%w: professional id is required", ErrInvalidInput)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive (got %d)", ErrInvalidInput, p.DurationMinutes)
	}
	if p.StartTime < 0 || p.StartTime >= minutesPerDay {
		return fmt.Errorf("%w: start time out of range", ErrInvalidInput)
	}
	return nil
}

// Conflicts returns the occupying bookings of the same professional and date
// whose interval overlaps the proposal. Back-to-back bookings do not conflict.
func Conflicts(p Proposal, bookings []ExistingBooking) []ExistingBooking {
	var out []ExistingBooking
	for _, b := range relevantBookings(bookings, p.ProfessionalID, p.Date) {
		if overlaps(p.StartTime, p.End(), b.StartTime, b.End()) {
			out = append(out, b)
		}
	}
	return out
}
