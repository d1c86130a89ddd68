package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
)

// CatalogWriter registers shops, services, and professionals.
type CatalogWriter interface {
	CreateShop(ctx context.Context, name string, window availability.OperatingWindow, granularity int) (string, error)
	CreateService(ctx context.Context, shopID, name string, durationMinutes int) (string, error)
	CreateProfessional(ctx context.Context, shopID, name string) (string, error)
}

type CatalogHandler struct {
	catalog CatalogWriter
	logger  *slog.Logger
}

func NewCatalogHandler(catalog CatalogWriter, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

type createShopRequest struct {
	Name                   string `json:"name"`
	Opens                  string `json:"opens"`
	Closes                 string `json:"closes"`
	SlotGranularityMinutes int    `json:"slot_granularity_minutes"`
}

type createServiceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type createProfessionalRequest struct {
	Name string `json:"name"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func (h *CatalogHandler) CreateShop(w http.ResponseWriter, r *http.Request) {
	var req createShopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	opens, err := availability.ParseLocalTime(strings.TrimSpace(req.Opens))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid opens")
		return
	}
	closes, err := availability.ParseLocalTime(strings.TrimSpace(req.Closes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid closes")
		return
	}
	window := availability.OperatingWindow{Opens: opens, Closes: closes}
	if !window.Valid() {
		writeError(w, http.StatusBadRequest, "opens must be before closes")
		return
	}
	if req.SlotGranularityMinutes < 0 {
		writeError(w, http.StatusBadRequest, "slot_granularity_minutes must not be negative")
		return
	}

	id, err := h.catalog.CreateShop(r.Context(), req.Name, window, req.SlotGranularityMinutes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive duration_minutes are required")
		return
	}
	id, err := h.catalog.CreateService(r.Context(), chi.URLParam(r, "shopID"), req.Name, req.DurationMinutes)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *CatalogHandler) CreateProfessional(w http.ResponseWriter, r *http.Request) {
	var req createProfessionalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := h.catalog.CreateProfessional(r.Context(), chi.URLParam(r, "shopID"), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}
