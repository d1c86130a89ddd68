package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/navalha-app/navalha/libs/httpx"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

// ShopClientKey buckets public traffic per shop and client, so a busy shop
// page does not throttle the others. Only valid under a {shopID} route.
func ShopClientKey(r *http.Request) string {
	return chi.URLParam(r, "shopID") + "|" + httpx.ClientIP(r)
}

// Register mounts every surface under /api/v1. public wraps the
// unauthenticated routes (rate limiting); it may be nil.
func Register(r chi.Router, bookings *BookingHandler, catalog *CatalogHandler, public func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/public/shops/{shopID}", func(r chi.Router) {
			if public != nil {
				r.Use(public)
			}
			r.Get("/slots", bookings.Slots(booking.SourcePublic))
			r.Get("/suggestions", bookings.Suggestions)
			r.Post("/appointments", bookings.CreatePublic)
		})

		r.Post("/shops", catalog.CreateShop)
		r.Route("/shops/{shopID}", func(r chi.Router) {
			r.Post("/services", catalog.CreateService)
			r.Post("/professionals", catalog.CreateProfessional)

			r.Get("/slots", bookings.Slots(booking.SourceAdminForm))
			r.Get("/appointments", bookings.List)
			r.Post("/appointments", bookings.CreateStaff)
			r.Post("/appointments/{appointmentID}/cancel", bookings.Cancel)
			r.Post("/appointments/{appointmentID}/complete", bookings.Complete)
			r.Post("/assistant/appointments", bookings.CreateFromIntent)
		})
	})
}
