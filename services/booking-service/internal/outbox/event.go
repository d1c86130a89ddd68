package outbox

import (
	"encoding/json"
	"time"

	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

const (
	AggregateAppointment = "appointment"

	// The Kafka topic name equals the event type.
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentPayload struct {
	AppointmentID   string `json:"appointment_id"`
	ShopID          string `json:"shop_id"`
	ServiceID       string `json:"service_id"`
	ProfessionalID  string `json:"professional_id"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Source          string `json:"source,omitempty"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

func newAppointmentPayload(appt booking.Appointment, loc *time.Location) appointmentPayload {
	p := appointmentPayload{
		AppointmentID:   appt.ID,
		ShopID:          appt.ShopID,
		ServiceID:       appt.ServiceID,
		ProfessionalID:  appt.ProfessionalID,
		CustomerName:    appt.CustomerName,
		CustomerEmail:   appt.CustomerEmail,
		CustomerPhone:   appt.CustomerPhone,
		Date:            appt.Date.String(),
		StartTime:       appt.StartTime.String(),
		EndTime:         appt.EndTime().String(),
		StartsAt:        appt.StartsAt(loc).Format(time.RFC3339),
		DurationMinutes: appt.DurationMinutes,
		Status:          string(appt.Status),
		Source:          string(appt.Source),
	}
	if appt.CancelledAt != nil {
		p.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		p.Reason = appt.CancelReason
	}
	return p
}

// AppointmentBooked builds the event notification fan-out consumes.
func AppointmentBooked(appt booking.Appointment, loc *time.Location) (Event, error) {
	return appointmentEvent(EventAppointmentBooked, appt, loc)
}

func AppointmentCancelled(appt booking.Appointment, loc *time.Location) (Event, error) {
	return appointmentEvent(EventAppointmentCancelled, appt, loc)
}

func AppointmentCompleted(appt booking.Appointment, loc *time.Location) (Event, error) {
	return appointmentEvent(EventAppointmentCompleted, appt, loc)
}

func appointmentEvent(eventType string, appt booking.Appointment, loc *time.Location) (Event, error) {
	payload, err := json.Marshal(newAppointmentPayload(appt, loc))
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
