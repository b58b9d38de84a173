package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"posterforge/internal/domain"
)

type plateLookupRequest struct {
	Plate string `json:"plate"`
}

type plateLookupResponse struct {
	Make          string `json:"make,omitempty"`
	Model         string `json:"model,omitempty"`
	Year          string `json:"year,omitempty"`
	Status        string `json:"status,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// PlateLookup resolves a plate through the registration registry. The
// registry treats absence as a normal outcome, so a miss is a 200 with an
// embedded status rather than an error response.
func (a *App) PlateLookup(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req plateLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Plate) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "plate required")
		return
	}

	if _, err := a.Ledger.TryDebit(r.Context(), userID, domain.CreditRegistryLookup); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredit) {
			a.error(w, http.StatusForbidden, "credit_exhausted", "no lookup credits remaining")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to reserve credit")
		return
	}

	identity, found, err := a.Registry.Lookup(r.Context(), req.Plate)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("registry lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	if !found {
		a.json(w, http.StatusOK, plateLookupResponse{
			Status:        "vehicle_not_found",
			StatusMessage: "No record for this plate. Enter the details manually.",
		})
		return
	}
	a.json(w, http.StatusOK, plateLookupResponse{
		Make:  identity.Make,
		Model: identity.Model,
		Year:  identity.Year,
	})
}
