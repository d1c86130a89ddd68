package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
	"github.com/navalha-app/navalha/services/booking-service/internal/metrics"
	"github.com/navalha-app/navalha/services/booking-service/internal/storage"
)

var shopZone = availability.FixedZone(availability.DefaultOffsetMinutes)

const (
	shopID = "shop-1"
	proID  = "pro-1"
	corte  = "svc-corte"
	barba  = "svc-barba"
)

var (
	today    = availability.MustCalendarDate("2025-03-10")
	tomorrow = availability.MustCalendarDate("2025-03-11")
	lt       = availability.MustLocalTime
)

type fixture struct {
	store   *storage.MemoryStore
	catalog *storage.MemoryCatalog
	svc     *booking.Service
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture opens a 09:00-12:00 shop with a 30 minute grid. "Now" is 14:37
// on the 10th in the shop's offset.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, storage.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, store booking.Store) *fixture {
	t.Helper()
	catalog := storage.NewMemoryCatalog()
	catalog.PutShop(booking.ShopSettings{
		ShopID:             shopID,
		Name:               "Navalha Centro",
		Window:             availability.OperatingWindow{Opens: lt("09:00"), Closes: lt("12:00")},
		GranularityMinutes: 30,
	})
	catalog.PutService(shopID, availability.ServiceSpec{ID: corte, Name: "Corte", DurationMinutes: 30})
	catalog.PutService(shopID, availability.ServiceSpec{ID: barba, Name: "Barba", DurationMinutes: 60})
	catalog.PutService(shopID, availability.ServiceSpec{ID: "svc-broken", Name: "Broken", DurationMinutes: 0})
	catalog.PutProfessional(booking.Professional{ID: proID, ShopID: shopID, Name: "João", IsActive: true})
	catalog.PutProfessional(booking.Professional{ID: "pro-off", ShopID: shopID, Name: "Pedro", IsActive: false})

	now := time.Date(2025, 3, 10, 14, 37, 0, 0, shopZone)
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	svc := booking.NewService(store, catalog, availability.StaticClock(now), quietLogger(), m, booking.Config{})

	f := &fixture{catalog: catalog, svc: svc}
	if ms, ok := store.(*storage.MemoryStore); ok {
		f.store = ms
	}
	return f
}

func seed(t *testing.T, store booking.Store, date availability.CalendarDate, start string, minutes int, status availability.Status) booking.Appointment {
	t.Helper()
	appt, err := store.Insert(context.Background(), booking.Appointment{
		ShopID:          shopID,
		ServiceID:       corte,
		ProfessionalID:  proID,
		CustomerName:    "Existing",
		Date:            date,
		StartTime:       lt(start),
		DurationMinutes: minutes,
		Status:          status,
		Source:          booking.SourceAdminForm,
	})
	require.NoError(t, err)
	return appt
}

func times(ss ...string) []availability.LocalTime {
	out := make([]availability.LocalTime, 0, len(ss))
	for _, s := range ss {
		out = append(out, lt(s))
	}
	return out
}

func TestAvailableSlots_ExcludesOverlappingBooking(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, tomorrow, "10:00", 30, availability.StatusConfirmed)

	res, err := f.svc.AvailableSlots(context.Background(), booking.SlotRequest{
		ShopID: shopID, ProfessionalID: proID, ServiceID: corte, Date: tomorrow,
	})
	require.NoError(t, err)
	assert.Equal(t, availability.ModeDurationAware, res.Mode)
	assert.Equal(t, 30, res.DurationMinutes)
	assert.Equal(t, times("09:00", "09:30", "10:30", "11:00", "11:30"), res.Slots)
}

func TestAvailableSlots_LongServiceBlockedByLaterBooking(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, tomorrow, "10:00", 30, availability.StatusPending)

	res, err := f.svc.AvailableSlots(context.Background(), booking.SlotRequest{
		ShopID: shopID, ProfessionalID: proID, ServiceID: barba, Date: tomorrow,
	})
	require.NoError(t, err)
	// 09:30 would run into the 10:00 booking; slots may run past closing.
	assert.Equal(t, times("09:00", "10:30", "11:00", "11:30"), res.Slots)
}

func TestAvailableSlots_TodayCutoff(t *testing.T) {
	f := newFixture(t)
	f.catalog.PutShop(booking.ShopSettings{
		ShopID:             shopID,
		Window:             availability.OperatingWindow{Opens: lt("09:00"), Closes: lt("18:00")},
		GranularityMinutes: 30,
	})

	res, err := f.svc.AvailableSlots(context.Background(), booking.SlotRequest{
		ShopID: shopID, ProfessionalID: proID, ServiceID: corte, Date: today,
	})
	require.NoError(t, err)
	assert.Equal(t, times("15:00", "15:30", "16:00", "16:30", "17:00", "17:30"), res.Slots)
}

func TestAvailableSlots_WithoutServiceIsDegraded(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, tomorrow, "10:00", 60, availability.StatusConfirmed)

	res, err := f.svc.AvailableSlots(context.Background(), booking.SlotRequest{
		ShopID: shopID, ProfessionalID: proID, Date: tomorrow, Surface: booking.SourceQuickModal,
	})
	require.NoError(t, err)
	assert.Equal(t, availability.ModeStartTimeOnly, res.Mode)
	// only the exact start is excluded; 10:30 sits inside the booking but survives
	assert.Equal(t, times("09:00", "09:30", "10:30", "11:00", "11:30"), res.Slots)
}

func TestAvailableSlots_MisconfiguredServiceYieldsNothing(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.AvailableSlots(context.Background(), booking.SlotRequest{
		ShopID: shopID, ProfessionalID: proID, ServiceID: "svc-broken", Date: tomorrow,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
}

func TestAvailableSlots_InactiveProfessionalYieldsNothing(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.AvailableSlots(context.Background(), booking.SlotRequest{
		ShopID: shopID, ProfessionalID: "pro-off", ServiceID: corte, Date: tomorrow,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
}

func TestAvailableSlots_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AvailableSlots(ctx, booking.SlotRequest{ShopID: shopID, Date: tomorrow})
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.AvailableSlots(ctx, booking.SlotRequest{ShopID: "nope", ProfessionalID: proID, Date: tomorrow})
	require.ErrorIs(t, err, booking.ErrNotFound)

	_, err = f.svc.AvailableSlots(ctx, booking.SlotRequest{ShopID: shopID, ProfessionalID: proID, ServiceID: "nope", Date: tomorrow})
	require.ErrorIs(t, err, booking.ErrNotFound)
}

func TestSuggest_NearestFreeSlots(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, tomorrow, "09:00", 60, availability.StatusConfirmed)

	got, err := f.svc.Suggest(context.Background(), booking.SuggestRequest{
		SlotRequest: booking.SlotRequest{ShopID: shopID, ProfessionalID: proID, ServiceID: corte, Date: tomorrow},
		Desired:     lt("09:00"),
		Count:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, times("10:00", "10:30"), got)
}

func TestSuggest_NeverOffersTheDesiredTime(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Suggest(context.Background(), booking.SuggestRequest{
		SlotRequest: booking.SlotRequest{ShopID: shopID, ProfessionalID: proID, ServiceID: corte, Date: tomorrow},
		Desired:     lt("10:00"),
		Count:       3,
	})
	require.NoError(t, err)
	assert.Equal(t, times("09:30", "10:30", "09:00"), got)
	assert.NotContains(t, got, lt("10:00"))
}

func TestBook_PublicIsPendingAdminIsConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pub, err := f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:00"),
		CustomerName: " Ana ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pub.ID)
	assert.Equal(t, "Ana", pub.CustomerName)
	assert.Equal(t, availability.StatusPending, pub.Status)
	assert.Equal(t, booking.SourcePublic, pub.Source)
	assert.Equal(t, 30, pub.DurationMinutes)

	adm, err := f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:30"),
		CustomerName: "Bia", Source: booking.SourceAdminForm,
	})
	require.NoError(t, err)
	assert.Equal(t, availability.StatusConfirmed, adm.Status)
}

func TestBook_UnavailableTimeOffersAlternatives(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, tomorrow, "09:00", 60, availability.StatusConfirmed)

	_, err := f.svc.Book(context.Background(), booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:30"),
		CustomerName: "Ana",
	})
	require.ErrorIs(t, err, booking.ErrSlotTaken)

	var cerr *booking.ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, booking.StageQuery, cerr.Stage)
	assert.Equal(t, times("10:00", "10:30", "11:00"), cerr.Alternatives)
}

func TestBook_OffGridAndPastTimesAreRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:15"),
		CustomerName: "Ana",
	})
	require.ErrorIs(t, err, booking.ErrSlotTaken)

	_, err = f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: today, StartTime: lt("11:00"),
		CustomerName: "Ana",
	})
	var cerr *booking.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, booking.StageQuery, cerr.Stage)
	assert.Empty(t, cerr.Alternatives)
}

func TestBook_PastDateIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID,
		Date: availability.MustCalendarDate("2020-01-01"), StartTime: lt("09:00"),
		CustomerName: "Ana", Source: booking.SourcePublic,
	})
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID,
		Date: availability.MustCalendarDate("2025-03-09"), StartTime: lt("11:00"),
		CustomerName: "Ana", Source: booking.SourceAdminForm,
	})
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	list, err := f.svc.List(ctx, shopID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, booking.BookRequest{ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:00")})
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:00"),
		CustomerName: "Ana", Source: "fax",
	})
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.Book(ctx, booking.BookRequest{
		ShopID: shopID, ServiceID: "nope", ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:00"),
		CustomerName: "Ana",
	})
	require.ErrorIs(t, err, booking.ErrNotFound)
}

// staleStore hides existing bookings from the first `hide` reads, which is
// what a client sees when its slot list was fetched before someone else booked.
type staleStore struct {
	booking.Store
	mu   sync.Mutex
	hide int
}

func (s *staleStore) ListOccupying(ctx context.Context, shopID, professionalID string, date availability.CalendarDate) ([]availability.ExistingBooking, error) {
	s.mu.Lock()
	hidden := s.hide > 0
	if hidden {
		s.hide--
	}
	s.mu.Unlock()
	if hidden {
		return nil, nil
	}
	return s.Store.ListOccupying(ctx, shopID, professionalID, date)
}

func TestBook_StaleReadIsCaughtByRevalidation(t *testing.T) {
	mem := storage.NewMemoryStore()
	seed(t, mem, tomorrow, "09:30", 30, availability.StatusConfirmed)
	f := newFixtureWithStore(t, &staleStore{Store: mem, hide: 1})

	_, err := f.svc.Book(context.Background(), booking.BookRequest{
		ShopID: shopID, ServiceID: barba, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:00"),
		CustomerName: "Ana",
	})
	var cerr *booking.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, booking.StageRevalidate, cerr.Stage)
	require.Len(t, cerr.Conflicting, 1)
	assert.Equal(t, lt("09:30"), cerr.Conflicting[0].StartTime)
	assert.Equal(t, times("10:00", "10:30", "11:00"), cerr.Alternatives)
}

func TestBook_PersistConflictIsReportedLikeStaleRead(t *testing.T) {
	mem := storage.NewMemoryStore()
	seed(t, mem, tomorrow, "09:00", 30, availability.StatusConfirmed)
	f := newFixtureWithStore(t, &staleStore{Store: mem, hide: 2})

	_, err := f.svc.Book(context.Background(), booking.BookRequest{
		ShopID: shopID, ServiceID: corte, ProfessionalID: proID, Date: tomorrow, StartTime: lt("09:00"),
		CustomerName: "Ana",
	})
	var cerr *booking.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, booking.StagePersist, cerr.Stage)
	assert.ErrorIs(t, err, booking.ErrSlotTaken)
	assert.Equal(t, times("09:30", "10:00", "10:30"), cerr.Alternatives)
}

func TestBookFromIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookFromIntent(ctx, booking.Intent{
		ShopID: shopID, ServiceName: "corte", ProfessionalName: "joão",
		Date: "2025-03-11", Time: "10:00", CustomerName: "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, booking.SourceAssistant, appt.Source)
	assert.Equal(t, corte, appt.ServiceID)
	assert.Equal(t, proID, appt.ProfessionalID)
	assert.Equal(t, lt("10:00"), appt.StartTime)

	_, err = f.svc.BookFromIntent(ctx, booking.Intent{
		ShopID: shopID, ServiceName: "corte", ProfessionalName: "joão",
		Date: "2025-03-11", Time: "25:99", CustomerName: "Ana",
	})
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = f.svc.BookFromIntent(ctx, booking.Intent{
		ShopID: shopID, ServiceName: "corte", ProfessionalName: "Pedro",
		Date: "2025-03-11", Time: "10:00", CustomerName: "Ana",
	})
	require.ErrorIs(t, err, booking.ErrNotFound)

	_, err = f.svc.BookFromIntent(ctx, booking.Intent{
		ShopID: shopID, ServiceName: "corte", ProfessionalName: "joão",
		Date: "2025-03-11", Time: "10:00", CustomerName: "Bia",
	})
	require.ErrorIs(t, err, booking.ErrSlotTaken)
}

func TestCancelAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := seed(t, f.store, tomorrow, "09:00", 30, availability.StatusConfirmed)

	cancelled, err := f.svc.Cancel(ctx, shopID, appt.ID, " no-show ")
	require.NoError(t, err)
	assert.Equal(t, availability.StatusCancelled, cancelled.Status)
	assert.Equal(t, "no-show", cancelled.CancelReason)

	_, err = f.svc.Cancel(ctx, shopID, "missing", "")
	require.ErrorIs(t, err, booking.ErrNotFound)
	_, err = f.svc.Cancel(ctx, "", appt.ID, "")
	require.ErrorIs(t, err, booking.ErrInvalidInput)

	res, err := f.svc.AvailableSlots(ctx, booking.SlotRequest{ShopID: shopID, ProfessionalID: proID, ServiceID: corte, Date: tomorrow})
	require.NoError(t, err)
	assert.Contains(t, res.Slots, lt("09:00"))

	list, err := f.svc.List(ctx, shopID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.List(ctx, " ", 10)
	require.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := seed(t, f.store, tomorrow, "09:00", 30, availability.StatusConfirmed)

	done, err := f.svc.Complete(ctx, shopID, " "+appt.ID+" ")
	require.NoError(t, err)
	assert.Equal(t, availability.StatusCompleted, done.Status)

	again, err := f.svc.Complete(ctx, shopID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, availability.StatusCompleted, again.Status)

	_, err = f.svc.Cancel(ctx, shopID, appt.ID, "")
	require.ErrorIs(t, err, booking.ErrNotCancellable)

	cancelled := seed(t, f.store, tomorrow, "10:00", 30, availability.StatusCancelled)
	_, err = f.svc.Complete(ctx, shopID, cancelled.ID)
	require.ErrorIs(t, err, booking.ErrNotCancellable)

	_, err = f.svc.Complete(ctx, shopID, "missing")
	require.ErrorIs(t, err, booking.ErrNotFound)
	_, err = f.svc.Complete(ctx, shopID, "")
	require.ErrorIs(t, err, booking.ErrInvalidInput)
}
