package availability

import "fmt"

// GenerateSlots returns every grid start time in [window.Opens, window.Closes)
// spaced granularity minutes apart. A trailing partial period is dropped. An
// inverted or empty window, or a non-positive granularity, yields no slots.
func GenerateSlots(window OperatingWindow, granularity int) []LocalTime {
	if granularity <= 0 || !window.Valid() {
		return nil
	}
	n := (window.Closes.Minutes() - window.Opens.Minutes()) / granularity
	slots := make([]LocalTime, 0, n)
	for t := window.Opens; t < window.Closes; t = t.Add(granularity) {
		slots = append(slots, t)
	}
	return slots
}

// Filter turns the raw grid into bookable start times for one professional on
// one date: slots already started today are dropped, then slots whose tentative
// interval overlaps an occupying booking.
//
// q.Now must carry the shop's regional offset; "today" is the calendar date of
// q.Now in that offset.
func Filter(q SlotQuery) (Result, error) {
	if err := validateQuery(q); err != nil {
		return Result{}, err
	}

	mode := ModeDurationAware
	if q.RequestedDurationMinutes == 0 {
		mode = ModeStartTimeOnly
	}

	grid := GenerateSlots(q.Window, q.GranularityMinutes)
	if len(grid) == 0 {
		return Result{Mode: mode}, nil
	}

	busy := relevantBookings(q.Bookings, q.ProfessionalID, q.Date)
	today := DateOf(q.Now) == q.Date
	cutoff := TimeOf(q.Now)

	slots := make([]LocalTime, 0, len(grid))
	for _, s := range grid {
		if today && s <= cutoff {
			continue
		}
		if mode == ModeStartTimeOnly {
			if startsAtAny(s, busy) {
				continue
			}
		} else if overlapsAny(s, s.Add(q.RequestedDurationMinutes), busy) {
			continue
		}
		slots = append(slots, s)
	}
	return Result{Slots: slots, Mode: mode}, nil
}

func validateQuery(q SlotQuery) error {
	if q.ProfessionalID == "" {
		return fmt.Errorf("%w: professional id is required", ErrInvalidInput)
	}
	if q.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if q.RequestedDurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration %d", ErrInvalidInput, q.RequestedDurationMinutes)
	}
	if q.Now.IsZero() {
		return fmt.Errorf("%w: current time is required", ErrInvalidInput)
	}
	return nil
}

// relevantBookings keeps occupying bookings of the professional on the date.
func relevantBookings(bookings []ExistingBooking, professionalID string, date CalendarDate) []ExistingBooking {
	out := make([]ExistingBooking, 0, len(bookings))
	for _, b := range bookings {
		if b.ProfessionalID != professionalID || b.Date != date || !b.Status.Occupying() {
			continue
		}
		out = append(out, b)
	}
	return out
}

func overlapsAny(start, end LocalTime, busy []ExistingBooking) bool {
	for _, b := range busy {
		if overlaps(start, end, b.StartTime, b.End()) {
			return true
		}
	}
	return false
}

// Half-open intervals: [start,end) overlaps [bStart,bEnd) iff start < bEnd && end > bStart.
func overlaps(start, end, bStart, bEnd LocalTime) bool {
	return start < bEnd && end > bStart
}

func startsAtAny(t LocalTime, busy []ExistingBooking) bool {
	for _, b := range busy {
		if b.StartTime == t {
			return true
		}
	}
	return false
}
