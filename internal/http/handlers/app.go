package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"posterforge/internal/credits"
	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/jobs"
	"posterforge/internal/middleware"
	"posterforge/internal/posters"
	"posterforge/internal/providers/vision"
)

// VisionIdentifier reads a vehicle identity (and plate) out of a photo.
type VisionIdentifier interface {
	Identify(ctx context.Context, imageData []byte, mimeType string) (vision.Identification, error)
}

// Describer produces the poster copy for an identity.
type Describer interface {
	Describe(ctx context.Context, car domain.VehicleIdentity) (string, error)
}

// PlateResolver looks a plate up in the registration registry.
type PlateResolver interface {
	Lookup(ctx context.Context, plate string) (domain.VehicleIdentity, bool, error)
}

// App is the handler container wiring the API surface to its collaborators.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Jobs     *jobs.Store
	Ledger   *credits.Ledger
	Posters  *posters.Store
	Vision   VisionIdentifier
	Describe Describer
	Registry PlateResolver

	// ImageFetcher downloads the uploaded photo bytes for identification.
	// Defaults to a plain HTTP GET; tests script it.
	ImageFetcher func(ctx context.Context, imageURL string) ([]byte, string, error)
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
