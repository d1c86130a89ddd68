package booking

import (
	"context"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
)

// Store persists bookings.
//
// Insert must be an atomic check-and-insert: when another occupying booking of
// the same professional and date overlaps the new one, it fails with an error
// matching ErrSlotTaken and writes nothing. The Guard narrows the race window
// but only the store can close it.
//
// Cancel is idempotent for already cancelled bookings and fails with
// ErrNotCancellable for completed ones. Complete mirrors it: repeating it is a
// no-op and a cancelled booking cannot be completed. Unknown ids fail with
// ErrNotFound.
type Store interface {
	ListOccupying(ctx context.Context, shopID, professionalID string, date availability.CalendarDate) ([]availability.ExistingBooking, error)
	Insert(ctx context.Context, appt Appointment) (Appointment, error)
	Get(ctx context.Context, shopID, appointmentID string) (Appointment, error)
	Cancel(ctx context.Context, shopID, appointmentID, reason string) (Appointment, error)
	Complete(ctx context.Context, shopID, appointmentID string) (Appointment, error)
	ListByShop(ctx context.Context, shopID string, limit int) ([]Appointment, error)
}

// Catalog is the shop configuration and service catalog. Lookups of unknown
// records fail with ErrNotFound.
type Catalog interface {
	ShopSettings(ctx context.Context, shopID string) (ShopSettings, error)
	Service(ctx context.Context, shopID, serviceID string) (availability.ServiceSpec, error)
	FindService(ctx context.Context, shopID, name string) (availability.ServiceSpec, error)
	Professional(ctx context.Context, shopID, professionalID string) (Professional, error)
	FindProfessional(ctx context.Context, shopID, name string) (Professional, error)
}
