package availability

import (
	"errors"
	"slices"
	"testing"
	"time"
)

var shopZone = FixedZone(DefaultOffsetMinutes)

func times(values ...string) []LocalTime {
	out := make([]LocalTime, 0, len(values))
	for _, v := range values {
		out = append(out, MustLocalTime(v))
	}
	return out
}

func morning() OperatingWindow {
	return OperatingWindow{Opens: MustLocalTime("08:00"), Closes: MustLocalTime("12:00")}
}

func TestGenerateSlots_Grid(t *testing.T) {
	got := GenerateSlots(morning(), 30)
	want := times("08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30")
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGenerateSlots_BoundsAndStep(t *testing.T) {
	windows := []OperatingWindow{
		morning(),
		{Opens: MustLocalTime("09:15"), Closes: MustLocalTime("18:40")},
		{Opens: MustLocalTime("00:00"), Closes: MustLocalTime("23:59")},
	}
	for _, w := range windows {
		for _, g := range []int{5, 15, 30, 45, 60, 90} {
			slots := GenerateSlots(w, g)
			for i, s := range slots {
				if s < w.Opens || s >= w.Closes {
					t.Fatalf("slot %s outside [%s,%s)", s, w.Opens, w.Closes)
				}
				if i > 0 && s-slots[i-1] != LocalTime(g) {
					t.Fatalf("expected step %d between %s and %s", g, slots[i-1], s)
				}
			}
			if len(slots) == 0 || slots[0] != w.Opens {
				t.Fatalf("expected grid to start at %s", w.Opens)
			}
		}
	}
}

func TestGenerateSlots_DropsPartialPeriod(t *testing.T) {
	w := OperatingWindow{Opens: MustLocalTime("08:00"), Closes: MustLocalTime("09:45")}
	got := GenerateSlots(w, 30)
	want := times("08:00", "08:30", "09:00", "09:30")
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGenerateSlots_Misconfigured(t *testing.T) {
	cases := []struct {
		name   string
		window OperatingWindow
		step   int
	}{
		{"equal", OperatingWindow{Opens: MustLocalTime("09:00"), Closes: MustLocalTime("09:00")}, 30},
		{"inverted", OperatingWindow{Opens: MustLocalTime("18:00"), Closes: MustLocalTime("09:00")}, 30},
		{"zero step", morning(), 0},
		{"negative step", morning(), -15},
	}
	for _, tc := range cases {
		if got := GenerateSlots(tc.window, tc.step); len(got) != 0 {
			t.Fatalf("%s: expected no slots, got %v", tc.name, got)
		}
	}
}

func baseQuery() SlotQuery {
	return SlotQuery{
		ProfessionalID:           "pro-1",
		Date:                     MustCalendarDate("2026-03-10"),
		Window:                   morning(),
		GranularityMinutes:       30,
		RequestedDurationMinutes: 30,
		Now:                      time.Date(2026, 3, 1, 9, 0, 0, 0, shopZone),
	}
}

func TestFilter_OverlapWithLongBooking(t *testing.T) {
	q := baseQuery()
	q.Bookings = []ExistingBooking{{
		ID: "b1", ProfessionalID: "pro-1", Date: q.Date,
		StartTime: MustLocalTime("09:00"), DurationMinutes: 60, Status: StatusConfirmed,
	}}

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	want := times("08:00", "08:30", "10:00", "10:30", "11:00", "11:30")
	if !slices.Equal(res.Slots, want) {
		t.Fatalf("expected %v, got %v", want, res.Slots)
	}
	if res.Degraded() {
		t.Fatal("expected duration-aware mode")
	}
}

func TestFilter_RequestedDurationReachesIntoBooking(t *testing.T) {
	q := baseQuery()
	q.RequestedDurationMinutes = 60
	q.Bookings = []ExistingBooking{{
		ProfessionalID: "pro-1", Date: q.Date,
		StartTime: MustLocalTime("10:00"), DurationMinutes: 30, Status: StatusPending,
	}}

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	// 09:30 + 60 overlaps [10:00,10:30); 09:00 + 60 ends exactly at 10:00.
	if res.Contains(MustLocalTime("09:30")) || res.Contains(MustLocalTime("10:00")) {
		t.Fatalf("expected 09:30 and 10:00 excluded, got %v", res.Slots)
	}
	if !res.Contains(MustLocalTime("09:00")) || !res.Contains(MustLocalTime("10:30")) {
		t.Fatalf("expected 09:00 and 10:30 kept, got %v", res.Slots)
	}
}

func TestFilter_BackToBackIsNotAConflict(t *testing.T) {
	q := baseQuery()
	q.Bookings = []ExistingBooking{
		{ProfessionalID: "pro-1", Date: q.Date, StartTime: MustLocalTime("08:30"), DurationMinutes: 30, Status: StatusConfirmed},
	}

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !res.Contains(MustLocalTime("08:00")) {
		t.Fatal("slot ending when the booking starts must stay available")
	}
	if !res.Contains(MustLocalTime("09:00")) {
		t.Fatal("slot starting when the booking ends must stay available")
	}
	if res.Contains(MustLocalTime("08:30")) {
		t.Fatal("occupied slot must be excluded")
	}
}

func TestFilter_IgnoresNonOccupyingAndOtherCalendars(t *testing.T) {
	q := baseQuery()
	at := MustLocalTime("09:00")
	q.Bookings = []ExistingBooking{
		{ProfessionalID: "pro-1", Date: q.Date, StartTime: at, DurationMinutes: 30, Status: StatusCancelled},
		{ProfessionalID: "pro-1", Date: q.Date, StartTime: at, DurationMinutes: 30, Status: StatusCompleted},
		{ProfessionalID: "pro-2", Date: q.Date, StartTime: at, DurationMinutes: 30, Status: StatusConfirmed},
		{ProfessionalID: "pro-1", Date: MustCalendarDate("2026-03-11"), StartTime: at, DurationMinutes: 30, Status: StatusConfirmed},
	}

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(res.Slots) != 8 {
		t.Fatalf("expected the full grid, got %v", res.Slots)
	}
}

func TestFilter_TodayCutoff(t *testing.T) {
	q := baseQuery()
	q.Window = OperatingWindow{Opens: MustLocalTime("14:00"), Closes: MustLocalTime("16:00")}
	q.Date = MustCalendarDate("2026-03-10")
	q.Now = time.Date(2026, 3, 10, 14, 37, 12, 0, shopZone)

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	want := times("15:00", "15:30")
	if !slices.Equal(res.Slots, want) {
		t.Fatalf("expected %v, got %v", want, res.Slots)
	}
}

func TestFilter_SlotAtNowIsExcludedNextMinuteKept(t *testing.T) {
	q := baseQuery()
	q.GranularityMinutes = 1
	q.Window = OperatingWindow{Opens: MustLocalTime("10:00"), Closes: MustLocalTime("10:05")}
	q.Now = time.Date(2026, 3, 10, 10, 2, 59, 0, shopZone)

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if res.Contains(MustLocalTime("10:02")) {
		t.Fatal("slot starting at the current minute must be excluded")
	}
	if !res.Contains(MustLocalTime("10:03")) {
		t.Fatal("slot one minute after now must be kept")
	}
}

func TestFilter_TodayUsesShopOffset(t *testing.T) {
	q := baseQuery()
	q.Date = MustCalendarDate("2026-03-10")
	// 02:00 UTC on the 11th is still 23:00 on the 10th in UTC-3.
	q.Now = time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC).In(shopZone)

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(res.Slots) != 0 {
		t.Fatalf("expected every slot of the day to be past, got %v", res.Slots)
	}
}

func TestFilter_OtherDatesNeverCutOff(t *testing.T) {
	q := baseQuery()
	for _, now := range []time.Time{
		time.Date(2026, 3, 9, 23, 59, 0, 0, shopZone),
		time.Date(2026, 3, 11, 12, 0, 0, 0, shopZone),
		time.Date(2030, 1, 1, 11, 0, 0, 0, shopZone),
	} {
		q.Now = now
		res, err := Filter(q)
		if err != nil {
			t.Fatalf("Filter failed: %v", err)
		}
		if len(res.Slots) != 8 {
			t.Fatalf("now=%s: expected full grid, got %v", now, res.Slots)
		}
	}
}

func TestFilter_StartTimeOnlyMode(t *testing.T) {
	q := baseQuery()
	q.RequestedDurationMinutes = 0
	q.Bookings = []ExistingBooking{{
		ProfessionalID: "pro-1", Date: q.Date,
		StartTime: MustLocalTime("09:00"), DurationMinutes: 60, Status: StatusConfirmed,
	}}

	res, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !res.Degraded() {
		t.Fatalf("expected degraded mode, got %s", res.Mode)
	}
	if res.Contains(MustLocalTime("09:00")) {
		t.Fatal("exact start time must be excluded")
	}
	if !res.Contains(MustLocalTime("09:30")) {
		t.Fatal("start-time-only mode does not look at durations")
	}
}

func TestFilter_MisconfiguredWindowYieldsNoSlots(t *testing.T) {
	q := baseQuery()
	q.Window = OperatingWindow{Opens: MustLocalTime("12:00"), Closes: MustLocalTime("08:00")}
	res, err := Filter(q)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(res.Slots) != 0 {
		t.Fatalf("expected no slots, got %v", res.Slots)
	}
}

func TestFilter_RejectsMalformedInput(t *testing.T) {
	cases := map[string]func(*SlotQuery){
		"missing professional": func(q *SlotQuery) { q.ProfessionalID = "" },
		"negative duration":    func(q *SlotQuery) { q.RequestedDurationMinutes = -30 },
		"missing date":         func(q *SlotQuery) { q.Date = CalendarDate{} },
		"missing now":          func(q *SlotQuery) { q.Now = time.Time{} },
	}
	for name, mutate := range cases {
		q := baseQuery()
		mutate(&q)
		if _, err := Filter(q); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestFilter_Idempotent(t *testing.T) {
	q := baseQuery()
	q.Bookings = []ExistingBooking{
		{ProfessionalID: "pro-1", Date: q.Date, StartTime: MustLocalTime("10:00"), DurationMinutes: 45, Status: StatusConfirmed},
	}
	first, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	second, err := Filter(q)
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if !slices.Equal(first.Slots, second.Slots) || first.Mode != second.Mode {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
}
