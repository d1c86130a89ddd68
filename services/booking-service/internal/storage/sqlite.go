package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS appointments (
	id                  TEXT PRIMARY KEY,
	shop_id             TEXT NOT NULL,
	service_id          TEXT NOT NULL,
	professional_id     TEXT NOT NULL,
	customer_name       TEXT NOT NULL,
	customer_email      TEXT NOT NULL DEFAULT '',
	customer_phone      TEXT NOT NULL DEFAULT '',
	appointment_date    TEXT NOT NULL,
	start_minute        INTEGER NOT NULL,
	duration_minutes    INTEGER NOT NULL CHECK (duration_minutes > 0),
	status              TEXT NOT NULL,
	source              TEXT NOT NULL,
	cancelled_at        TEXT,
	cancellation_reason TEXT NOT NULL DEFAULT '',
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS appointments_day_idx
	ON appointments (shop_id, professional_id, appointment_date);
`

// SQLiteStore is a file-backed booking.Store for single-shop local use.
// Insert runs inside BEGIN IMMEDIATE, so the overlap check and the write hold
// the database write lock together.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the store at path. ":memory:" works
// for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection: an in-memory database is per-connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListOccupying(ctx context.Context, shopID, professionalID string, date availability.CalendarDate) ([]availability.ExistingBooking, error) {
	return listOccupyingSQL(ctx, s.db, shopID, professionalID, date)
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listOccupyingSQL(ctx context.Context, q sqlQuerier, shopID, professionalID string, date availability.CalendarDate) ([]availability.ExistingBooking, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, professional_id, appointment_date, start_minute, duration_minutes, status
		FROM appointments
		WHERE shop_id = ? AND professional_id = ? AND appointment_date = ?
			AND status IN ('pending', 'confirmed')
		ORDER BY start_minute ASC
	`, shopID, professionalID, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.ExistingBooking
	for rows.Next() {
		var (
			b      availability.ExistingBooking
			day    string
			start  int
			status string
		)
		if err := rows.Scan(&b.ID, &b.ProfessionalID, &day, &start, &b.DurationMinutes, &status); err != nil {
			return nil, err
		}
		if b.Date, err = availability.ParseCalendarDate(day); err != nil {
			return nil, err
		}
		b.StartTime = availability.LocalTime(start)
		b.Status = availability.Status(status)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Insert(ctx context.Context, appt booking.Appointment) (out booking.Appointment, err error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = s.now().UTC()
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return booking.Appointment{}, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return booking.Appointment{}, err
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if appt.Status.Occupying() {
		busy, err := listOccupyingSQL(ctx, conn, appt.ShopID, appt.ProfessionalID, appt.Date)
		if err != nil {
			return booking.Appointment{}, err
		}
		if len(availability.Conflicts(appt.Proposal(), busy)) > 0 {
			return booking.Appointment{}, booking.ErrSlotTaken
		}
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO appointments
			(id, shop_id, service_id, professional_id, customer_name, customer_email, customer_phone,
			 appointment_date, start_minute, duration_minutes, status, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, appt.ID, appt.ShopID, appt.ServiceID, appt.ProfessionalID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
		appt.Date.String(), appt.StartTime.Minutes(), appt.DurationMinutes, string(appt.Status), string(appt.Source),
		appt.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return booking.Appointment{}, err
	}
	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return booking.Appointment{}, err
	}
	return appt, nil
}

const sqliteAppointmentColumns = `id, shop_id, service_id, professional_id, customer_name, customer_email,
	customer_phone, appointment_date, start_minute, duration_minutes, status, source, cancelled_at,
	cancellation_reason, created_at`

func (s *SQLiteStore) Get(ctx context.Context, shopID, appointmentID string) (booking.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteAppointmentColumns+`
		FROM appointments
		WHERE id = ? AND shop_id = ?
	`, appointmentID, shopID)
	appt, err := scanSQLiteAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Appointment{}, booking.ErrNotFound
	}
	return appt, err
}

func (s *SQLiteStore) Cancel(ctx context.Context, shopID, appointmentID, reason string) (booking.Appointment, error) {
	return s.transition(ctx, shopID, appointmentID, availability.StatusCancelled, reason)
}

// Complete marks a booking as done; it stops occupying its interval.
func (s *SQLiteStore) Complete(ctx context.Context, shopID, appointmentID string) (booking.Appointment, error) {
	return s.transition(ctx, shopID, appointmentID, availability.StatusCompleted, "")
}

func (s *SQLiteStore) transition(ctx context.Context, shopID, appointmentID string, to availability.Status, reason string) (booking.Appointment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return booking.Appointment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	appt, err := scanSQLiteAppointment(tx.QueryRowContext(ctx, `
		SELECT `+sqliteAppointmentColumns+`
		FROM appointments
		WHERE id = ? AND shop_id = ?
	`, appointmentID, shopID))
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Appointment{}, booking.ErrNotFound
	}
	if err != nil {
		return booking.Appointment{}, err
	}
	if appt.Status == to {
		return appt, nil
	}
	if !appt.Status.Occupying() {
		return booking.Appointment{}, booking.ErrNotCancellable
	}

	appt.Status = to
	var cancelledAt any
	if to == availability.StatusCancelled {
		now := s.now().UTC()
		appt.CancelledAt = &now
		appt.CancelReason = reason
		cancelledAt = now.Format(time.RFC3339Nano)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE appointments
		SET status = ?, cancelled_at = ?, cancellation_reason = ?
		WHERE id = ? AND shop_id = ?
	`, string(to), cancelledAt, appt.CancelReason, appt.ID, shopID); err != nil {
		return booking.Appointment{}, err
	}
	if err := tx.Commit(); err != nil {
		return booking.Appointment{}, err
	}
	return appt, nil
}

func (s *SQLiteStore) ListByShop(ctx context.Context, shopID string, limit int) ([]booking.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteAppointmentColumns+`
		FROM appointments
		WHERE shop_id = ?
		ORDER BY appointment_date DESC, start_minute DESC
		LIMIT ?
	`, shopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Appointment
	for rows.Next() {
		appt, err := scanSQLiteAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAppointment(row rowScanner) (booking.Appointment, error) {
	var (
		appt        booking.Appointment
		day         string
		start       int
		status      string
		source      string
		cancelledAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&appt.ID, &appt.ShopID, &appt.ServiceID, &appt.ProfessionalID, &appt.CustomerName,
		&appt.CustomerEmail, &appt.CustomerPhone, &day, &start, &appt.DurationMinutes, &status, &source,
		&cancelledAt, &appt.CancelReason, &createdAt)
	if err != nil {
		return booking.Appointment{}, err
	}
	if appt.Date, err = availability.ParseCalendarDate(day); err != nil {
		return booking.Appointment{}, err
	}
	appt.StartTime = availability.LocalTime(start)
	appt.Status = availability.Status(status)
	appt.Source = booking.Source(source)
	if appt.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return booking.Appointment{}, err
	}
	if cancelledAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, cancelledAt.String)
		if err != nil {
			return booking.Appointment{}, err
		}
		appt.CancelledAt = &t
	}
	return appt, nil
}
