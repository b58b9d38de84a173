package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"posterforge/internal/domain"
)

type describeRequest struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

type describeResponse struct {
	Text string `json:"text"`
}

// GenerateDescription produces poster copy for the supplied identity. No
// retry here: the adapter makes one attempt and the wizard simply asks again.
func (a *App) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req describeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	car := domain.VehicleIdentity{
		Make:  strings.TrimSpace(req.Make),
		Model: strings.TrimSpace(req.Model),
		Year:  strings.TrimSpace(req.Year),
	}
	if car.Empty() {
		a.error(w, http.StatusBadRequest, "bad_request", "make, model or year required")
		return
	}

	text, err := a.Describe.Describe(r.Context(), car)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("description generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "description generation failed")
		return
	}
	a.json(w, http.StatusOK, describeResponse{Text: text})
}
