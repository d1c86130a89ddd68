package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

func sampleAppointment(id, start string, duration int) booking.Appointment {
	return booking.Appointment{
		ID:              id,
		ShopID:          "shop-1",
		ServiceID:       "svc-1",
		ProfessionalID:  "pro-1",
		CustomerName:    "Ana",
		Date:            availability.MustCalendarDate("2025-03-10"),
		StartTime:       availability.MustLocalTime(start),
		DurationMinutes: duration,
		Status:          availability.StatusPending,
		Source:          booking.SourcePublic,
	}
}

// storeContract runs the booking.Store behaviour every implementation shares.
func storeContract(t *testing.T, store booking.Store) {
	ctx := context.Background()

	_, err := store.Insert(ctx, sampleAppointment("a1", "09:00", 60))
	require.NoError(t, err)

	t.Run("overlap is rejected", func(t *testing.T) {
		_, err := store.Insert(ctx, sampleAppointment("a2", "09:30", 30))
		require.ErrorIs(t, err, booking.ErrSlotTaken)
	})

	t.Run("back-to-back is accepted", func(t *testing.T) {
		_, err := store.Insert(ctx, sampleAppointment("a3", "10:00", 30))
		require.NoError(t, err)
	})

	t.Run("other professional is independent", func(t *testing.T) {
		other := sampleAppointment("a4", "09:00", 60)
		other.ProfessionalID = "pro-2"
		_, err := store.Insert(ctx, other)
		require.NoError(t, err)
	})

	t.Run("list occupying", func(t *testing.T) {
		busy, err := store.ListOccupying(ctx, "shop-1", "pro-1", availability.MustCalendarDate("2025-03-10"))
		require.NoError(t, err)
		require.Len(t, busy, 2)
		assert.Equal(t, "a1", busy[0].ID)
		assert.Equal(t, availability.MustLocalTime("10:00"), busy[1].StartTime)
	})

	t.Run("cancel frees the interval and is idempotent", func(t *testing.T) {
		cancelled, err := store.Cancel(ctx, "shop-1", "a1", "client asked")
		require.NoError(t, err)
		assert.Equal(t, availability.StatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, "client asked", cancelled.CancelReason)

		again, err := store.Cancel(ctx, "shop-1", "a1", "")
		require.NoError(t, err)
		assert.Equal(t, availability.StatusCancelled, again.Status)

		_, err = store.Insert(ctx, sampleAppointment("a5", "09:00", 60))
		require.NoError(t, err)
	})

	t.Run("completed cannot be cancelled", func(t *testing.T) {
		_, err := store.Complete(ctx, "shop-1", "a3")
		require.NoError(t, err)
		_, err = store.Cancel(ctx, "shop-1", "a3", "")
		require.ErrorIs(t, err, booking.ErrNotCancellable)
	})

	t.Run("unknown or foreign ids are not found", func(t *testing.T) {
		_, err := store.Cancel(ctx, "shop-1", "missing", "")
		require.ErrorIs(t, err, booking.ErrNotFound)
		_, err = store.Get(ctx, "shop-2", "a1")
		require.ErrorIs(t, err, booking.ErrNotFound)
	})

	t.Run("get round trips fields", func(t *testing.T) {
		got, err := store.Get(ctx, "shop-1", "a5")
		require.NoError(t, err)
		assert.Equal(t, availability.MustCalendarDate("2025-03-10"), got.Date)
		assert.Equal(t, availability.MustLocalTime("09:00"), got.StartTime)
		assert.Equal(t, 60, got.DurationMinutes)
		assert.Equal(t, booking.SourcePublic, got.Source)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("list by shop newest first", func(t *testing.T) {
		later := sampleAppointment("a6", "08:00", 30)
		later.Date = availability.MustCalendarDate("2025-03-11")
		_, err := store.Insert(ctx, later)
		require.NoError(t, err)

		appts, err := store.ListByShop(ctx, "shop-1", 2)
		require.NoError(t, err)
		require.Len(t, appts, 2)
		assert.Equal(t, "a6", appts[0].ID)
		assert.Equal(t, "a3", appts[1].ID)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_AssignsID(t *testing.T) {
	appt, err := NewMemoryStore().Insert(context.Background(), sampleAppointment("", "09:00", 30))
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
}

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()
	c.PutShop(booking.ShopSettings{
		ShopID: "shop-1",
		Window: availability.OperatingWindow{Opens: availability.MustLocalTime("09:00"), Closes: availability.MustLocalTime("18:00")},
	})
	c.PutService("shop-1", availability.ServiceSpec{ID: "svc-1", Name: "Corte", DurationMinutes: 30})
	c.PutProfessional(booking.Professional{ID: "pro-1", ShopID: "shop-1", Name: "João", IsActive: true})
	c.PutProfessional(booking.Professional{ID: "pro-2", ShopID: "shop-1", Name: "Pedro", IsActive: false})

	settings, err := c.ShopSettings(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, availability.DefaultGranularityMinutes, settings.GranularityMinutes)

	svc, err := c.FindService(ctx, "shop-1", " corte ")
	require.NoError(t, err)
	assert.Equal(t, "svc-1", svc.ID)

	p, err := c.FindProfessional(ctx, "shop-1", "JOÃO")
	require.NoError(t, err)
	assert.Equal(t, "pro-1", p.ID)

	_, err = c.FindProfessional(ctx, "shop-1", "Pedro")
	require.ErrorIs(t, err, booking.ErrNotFound)

	inactive, err := c.Professional(ctx, "shop-1", "pro-2")
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)

	_, err = c.ShopSettings(ctx, "nope")
	require.ErrorIs(t, err, booking.ErrNotFound)
	_, err = c.Service(ctx, "shop-1", "nope")
	require.ErrorIs(t, err, booking.ErrNotFound)
}

func TestMemoryCatalog_Create(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog()

	shopID, err := c.CreateShop(ctx, "Navalha", availability.OperatingWindow{
		Opens: availability.MustLocalTime("09:00"), Closes: availability.MustLocalTime("12:00"),
	}, 0)
	require.NoError(t, err)

	svcID, err := c.CreateService(ctx, shopID, "Corte", 30)
	require.NoError(t, err)
	proID, err := c.CreateProfessional(ctx, shopID, "João")
	require.NoError(t, err)

	svc, err := c.Service(ctx, shopID, svcID)
	require.NoError(t, err)
	assert.Equal(t, 30, svc.DurationMinutes)
	p, err := c.Professional(ctx, shopID, proID)
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	_, err = c.CreateService(ctx, "missing", "Corte", 30)
	require.ErrorIs(t, err, booking.ErrNotFound)
	_, err = c.CreateProfessional(ctx, "missing", "João")
	require.ErrorIs(t, err, booking.ErrNotFound)
}
