package availability

import (
	"slices"
	"testing"
)

func TestNearest_TieGoesToEarlierSlot(t *testing.T) {
	grid := times("08:00", "08:30", "09:00", "09:30", "10:00", "10:30")

	got := Nearest(MustLocalTime("09:00"), times("09:00"), grid, 2)
	want := times("08:30", "09:30")
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// 08:00 and 10:00 are both an hour away once 09:30 is gone too.
	got = Nearest(MustLocalTime("09:00"), times("09:00", "09:30"), grid, 2)
	want = times("08:30", "08:00")
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNearest_SortedByDistanceWithoutOccupiedOrDuplicates(t *testing.T) {
	grid := GenerateSlots(OperatingWindow{Opens: MustLocalTime("08:00"), Closes: MustLocalTime("18:00")}, 30)
	grid = append(grid, MustLocalTime("12:00"), MustLocalTime("12:30"))
	occupied := times("12:00", "11:30", "13:00")
	desired := MustLocalTime("12:00")

	got := Nearest(desired, occupied, grid, 10)
	if len(got) != 10 {
		t.Fatalf("expected 10 suggestions, got %d", len(got))
	}
	seen := map[LocalTime]bool{}
	for i, s := range got {
		if slices.Contains(occupied, s) {
			t.Fatalf("suggested occupied slot %s", s)
		}
		if seen[s] {
			t.Fatalf("duplicate suggestion %s", s)
		}
		seen[s] = true
		if i > 0 && distance(got[i-1], desired) > distance(s, desired) {
			t.Fatalf("suggestions not sorted by distance: %v", got)
		}
	}
	if got[0] != MustLocalTime("12:30") {
		t.Fatalf("expected 12:30 first, got %s", got[0])
	}
}

func TestNearest_FewerThanK(t *testing.T) {
	grid := times("08:00", "08:30", "09:00")
	got := Nearest(MustLocalTime("08:30"), times("08:30"), grid, 5)
	want := times("08:00", "09:00")
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNearest_NothingAvailable(t *testing.T) {
	grid := times("08:00", "08:30")
	got := Nearest(MustLocalTime("08:00"), grid, grid, 3)
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %v", got)
	}
}

func TestNearest_DefaultCount(t *testing.T) {
	grid := GenerateSlots(morning(), 30)
	got := Nearest(MustLocalTime("10:00"), times("10:00"), grid, 0)
	if len(got) != DefaultSuggestions {
		t.Fatalf("expected %d suggestions, got %v", DefaultSuggestions, got)
	}
}

func TestNearest_FromFilteredGrid(t *testing.T) {
	q := baseQuery()
	q.Window = OperatingWindow{Opens: MustLocalTime("08:00"), Closes: MustLocalTime("11:00")}
	q.Bookings = []ExistingBooking{{
		ProfessionalID: "pro-1", Date: q.Date,
		StartTime: MustLocalTime("09:00"), DurationMinutes: 60, Status: StatusConfirmed,
	}}
	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	grid := GenerateSlots(q.Window, q.GranularityMinutes)
	var occupied []LocalTime
	for _, s := range grid {
		if !res.Contains(s) {
			occupied = append(occupied, s)
		}
	}

	got := Nearest(MustLocalTime("09:00"), occupied, grid, 3)
	want := times("08:30", "08:00", "10:00")
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
