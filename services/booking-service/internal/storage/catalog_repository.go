package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/navalha-app/navalha/libs/db"
	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

// CatalogRepository serves shop settings, services and professionals from
// Postgres. Inactive services and professionals are invisible to lookups by
// name; lookups by id still return inactive professionals so callers can
// tell "unknown" from "not taking bookings".
type CatalogRepository struct {
	db db.Querier
}

func NewCatalogRepository(q db.Querier) *CatalogRepository {
	return &CatalogRepository{db: q}
}

func (r *CatalogRepository) ShopSettings(ctx context.Context, shopID string) (booking.ShopSettings, error) {
	var (
		s              booking.ShopSettings
		opens, closes  int
		granularityMin int
	)
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, opens_minute, closes_minute, slot_granularity_minutes
		FROM shops
		WHERE id = $1
	`, shopID).Scan(&s.ShopID, &s.Name, &opens, &closes, &granularityMin)
	if err != nil {
		return booking.ShopSettings{}, mapError(err)
	}
	s.Window = availability.OperatingWindow{
		Opens:  availability.LocalTime(opens),
		Closes: availability.LocalTime(closes),
	}
	s.GranularityMinutes = granularityMin
	return s, nil
}

func (r *CatalogRepository) Service(ctx context.Context, shopID, serviceID string) (availability.ServiceSpec, error) {
	var svc availability.ServiceSpec
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes
		FROM services
		WHERE shop_id = $1 AND id = $2 AND is_active
	`, shopID, serviceID).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes)
	if err != nil {
		return availability.ServiceSpec{}, mapError(err)
	}
	return svc, nil
}

func (r *CatalogRepository) FindService(ctx context.Context, shopID, name string) (availability.ServiceSpec, error) {
	var svc availability.ServiceSpec
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes
		FROM services
		WHERE shop_id = $1 AND lower(name) = lower($2) AND is_active
		ORDER BY created_at ASC
		LIMIT 1
	`, shopID, name).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes)
	if err != nil {
		return availability.ServiceSpec{}, mapError(err)
	}
	return svc, nil
}

func (r *CatalogRepository) Professional(ctx context.Context, shopID, professionalID string) (booking.Professional, error) {
	var p booking.Professional
	err := r.db.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, is_active
		FROM professionals
		WHERE shop_id = $1 AND id = $2
	`, shopID, professionalID).Scan(&p.ID, &p.ShopID, &p.Name, &p.IsActive)
	if err != nil {
		return booking.Professional{}, mapError(err)
	}
	return p, nil
}

func (r *CatalogRepository) FindProfessional(ctx context.Context, shopID, name string) (booking.Professional, error) {
	var p booking.Professional
	err := r.db.QueryRow(ctx, `
		SELECT id::text, shop_id::text, name, is_active
		FROM professionals
		WHERE shop_id = $1 AND lower(name) = lower($2) AND is_active
		ORDER BY created_at ASC
		LIMIT 1
	`, shopID, name).Scan(&p.ID, &p.ShopID, &p.Name, &p.IsActive)
	if err != nil {
		return booking.Professional{}, mapError(err)
	}
	return p, nil
}

// CreateShop registers a shop with its operating window. A zero granularity
// stores the system default.
func (r *CatalogRepository) CreateShop(ctx context.Context, name string, window availability.OperatingWindow, granularity int) (string, error) {
	if granularity == 0 {
		granularity = availability.DefaultGranularityMinutes
	}
	id := uuid.NewString()
	_, err := r.db.Exec(ctx, `
		INSERT INTO shops (id, name, opens_minute, closes_minute, slot_granularity_minutes)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, window.Opens.Minutes(), window.Closes.Minutes(), granularity)
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (r *CatalogRepository) CreateService(ctx context.Context, shopID, name string, durationMinutes int) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(ctx, `
		INSERT INTO services (id, shop_id, name, duration_minutes)
		VALUES ($1, $2, $3, $4)
	`, id, shopID, name, durationMinutes)
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (r *CatalogRepository) CreateProfessional(ctx context.Context, shopID, name string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(ctx, `
		INSERT INTO professionals (id, shop_id, name)
		VALUES ($1, $2, $3)
	`, id, shopID, name)
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}
