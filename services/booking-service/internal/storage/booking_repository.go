package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/navalha-app/navalha/libs/db"
	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
	"github.com/navalha-app/navalha/services/booking-service/internal/outbox"
)

// BookingRepository is the Postgres booking.Store. Overlap prevention is the
// appointments_no_overlap exclusion constraint; its violation surfaces as
// booking.ErrSlotTaken. Every write also appends an outbox event in the same
// transaction.
type BookingRepository struct {
	db     db.TxQuerier
	outbox *outbox.Repository
	loc    *time.Location
}

func NewBookingRepository(q db.TxQuerier, outboxRepo *outbox.Repository, loc *time.Location) *BookingRepository {
	if loc == nil {
		loc = availability.FixedZone(availability.DefaultOffsetMinutes)
	}
	return &BookingRepository{db: q, outbox: outboxRepo, loc: loc}
}

const appointmentColumns = `id::text, shop_id::text, service_id::text, professional_id::text,
	customer_name, customer_email, customer_phone, appointment_date, start_minute, duration_minutes,
	status, source, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func (r *BookingRepository) ListOccupying(ctx context.Context, shopID, professionalID string, date availability.CalendarDate) ([]availability.ExistingBooking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, professional_id::text, appointment_date, start_minute, duration_minutes, status
		FROM appointments
		WHERE shop_id = $1
			AND professional_id = $2
			AND appointment_date = $3
			AND status IN ('pending', 'confirmed')
		ORDER BY start_minute ASC
	`, shopID, professionalID, dateParam(date))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []availability.ExistingBooking
	for rows.Next() {
		var (
			b      availability.ExistingBooking
			day    time.Time
			start  int
			status string
		)
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &day, &start, &b.DurationMinutes, &status); err != nil {
			return nil, err
		}
		b.Date = availability.DateOf(day)
		b.StartTime = availability.LocalTime(start)
		b.Status = availability.Status(status)
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BookingRepository) Insert(ctx context.Context, appt booking.Appointment) (booking.Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return booking.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, shop_id, service_id, professional_id, customer_name, customer_email, customer_phone,
			 appointment_date, start_minute, duration_minutes, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, appt.ID, appt.ShopID, appt.ServiceID, appt.ProfessionalID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		dateParam(appt.Date), appt.StartTime.Minutes(), appt.DurationMinutes, string(appt.Status), string(appt.Source)).Scan(&appt.CreatedAt)
	if err != nil {
		return booking.Appointment{}, mapError(err)
	}

	evt, err := outbox.AppointmentBooked(appt, r.loc)
	if err != nil {
		return booking.Appointment{}, fmt.Errorf("build booked event: %w", err)
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return booking.Appointment{}, fmt.Errorf("write outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r *BookingRepository) Get(ctx context.Context, shopID, appointmentID string) (booking.Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND shop_id = $2
	`, appointmentID, shopID)
	appt, err := scanAppointment(row)
	if err != nil {
		return booking.Appointment{}, mapError(err)
	}
	return appt, nil
}

func (r *BookingRepository) Cancel(ctx context.Context, shopID, appointmentID, reason string) (booking.Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return booking.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND shop_id = $2
		FOR UPDATE
	`, appointmentID, shopID))
	if err != nil {
		return booking.Appointment{}, mapError(err)
	}

	if appt.Status == availability.StatusCancelled {
		return appt, nil
	}
	if !appt.Status.Occupying() {
		return booking.Appointment{}, booking.ErrNotCancellable
	}

	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND shop_id = $2
		RETURNING cancelled_at
	`, appt.ID, shopID, reason).Scan(&cancelledAt)
	if err != nil {
		return booking.Appointment{}, mapError(err)
	}
	appt.Status = availability.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancelReason = reason

	evt, err := outbox.AppointmentCancelled(appt, r.loc)
	if err != nil {
		return booking.Appointment{}, fmt.Errorf("build cancelled event: %w", err)
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return booking.Appointment{}, fmt.Errorf("write outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.Appointment{}, err
	}
	return appt, nil
}

// Complete marks a booking as done; it stops occupying its interval.
func (r *BookingRepository) Complete(ctx context.Context, shopID, appointmentID string) (booking.Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return booking.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND shop_id = $2
		FOR UPDATE
	`, appointmentID, shopID))
	if err != nil {
		return booking.Appointment{}, mapError(err)
	}

	if appt.Status == availability.StatusCompleted {
		return appt, nil
	}
	if !appt.Status.Occupying() {
		return booking.Appointment{}, booking.ErrNotCancellable
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed'
		WHERE id = $1 AND shop_id = $2
	`, appt.ID, shopID); err != nil {
		return booking.Appointment{}, mapError(err)
	}
	appt.Status = availability.StatusCompleted

	evt, err := outbox.AppointmentCompleted(appt, r.loc)
	if err != nil {
		return booking.Appointment{}, fmt.Errorf("build completed event: %w", err)
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return booking.Appointment{}, fmt.Errorf("write outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return booking.Appointment{}, err
	}
	return appt, nil
}

func (r *BookingRepository) ListByShop(ctx context.Context, shopID string, limit int) ([]booking.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE shop_id = $1
		ORDER BY appointment_date DESC, start_minute DESC
		LIMIT $2
	`, shopID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appts []booking.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (booking.Appointment, error) {
	var (
		appt        booking.Appointment
		day         time.Time
		start       int
		status      string
		source      string
		cancelledAt *time.Time
	)
	err := row.Scan(
		&appt.ID,
		&appt.ShopID,
		&appt.ServiceID,
		&appt.ProfessionalID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&day,
		&start,
		&appt.DurationMinutes,
		&status,
		&source,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return booking.Appointment{}, err
	}
	appt.Date = availability.DateOf(day)
	appt.StartTime = availability.LocalTime(start)
	appt.Status = availability.Status(status)
	appt.Source = booking.Source(source)
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// dateParam encodes a calendar date for a Postgres date column.
func dateParam(d availability.CalendarDate) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
