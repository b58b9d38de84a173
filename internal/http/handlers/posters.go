package handlers

import (
	"net/http"
)

// ListPosters returns the user's completed posters, newest first.
func (a *App) ListPosters(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	items, err := a.Posters.ListForUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("poster history load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load posters")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, p := range items {
		out = append(out, map[string]any{
			"id":           p.ID,
			"jobId":        p.JobID,
			"resultUrl":    p.ResultURL,
			"userImageUrl": p.UserImageURL,
			"templateId":   p.TemplateID,
			"description":  p.Description,
			"carDetails":   p.Car,
			"createdAt":    p.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}
