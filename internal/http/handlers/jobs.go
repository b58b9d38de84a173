package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"posterforge/internal/domain"
)

type submitJobRequest struct {
	JobID           string            `json:"jobId"`
	TemplateID      string            `json:"templateId"`
	PSDURL          string            `json:"psdUrl"`
	UserImageURL    string            `json:"userImageUrl"`
	CarDetails      carDetails        `json:"carDetails"`
	Description     string            `json:"description"`
	InstagramHandle string            `json:"instagramHandle"`
	FontsUsed       []string          `json:"fontsUsed"`
	SupportedTexts  []string          `json:"supportedTexts"`
	HexColour       string            `json:"hexColour"`
	HexElements     map[string]string `json:"hexElements"`
}

type carDetails struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

type submitJobResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// SubmitJob writes the queued job record and returns immediately; the render
// itself runs in the worker and is observed by polling the job record.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.JobID = strings.TrimSpace(req.JobID)
	switch {
	case req.JobID == "":
		a.error(w, http.StatusBadRequest, "bad_request", "jobId required")
		return
	case strings.TrimSpace(req.PSDURL) == "":
		a.error(w, http.StatusBadRequest, "bad_request", "psdUrl required")
		return
	case strings.TrimSpace(req.UserImageURL) == "":
		a.error(w, http.StatusBadRequest, "bad_request", "userImageUrl required")
		return
	}

	job := domain.RenderJob{
		ID:              req.JobID,
		UserID:          userID,
		TemplateID:      req.TemplateID,
		PSDURL:          req.PSDURL,
		UserImageURL:    req.UserImageURL,
		Car:             domain.VehicleIdentity{Make: req.CarDetails.Make, Model: req.CarDetails.Model, Year: req.CarDetails.Year},
		Description:     req.Description,
		InstagramHandle: req.InstagramHandle,
		FontsUsed:       req.FontsUsed,
		SupportedTexts:  req.SupportedTexts,
		HexColour:       req.HexColour,
		HexElements:     req.HexElements,
	}
	if err := a.Jobs.Insert(r.Context(), job); err != nil {
		// A replayed submission keeps the original record; acknowledging it
		// again is harmless and keeps the client retry path simple.
		if !errors.Is(err, domain.ErrDuplicateOperation) {
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("job submission failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
			return
		}
	}
	a.json(w, http.StatusOK, submitJobResponse{Status: "Job started", JobID: req.JobID})
}

// JobStatus is the polling surface. Clients must treat status, not the
// progress text, as authoritative for completion.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.GetForUser(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobId":           job.ID,
		"userId":          job.UserID,
		"status":          job.Status,
		"progress":        job.Progress,
		"templateId":      job.TemplateID,
		"psdUrl":          job.PSDURL,
		"userImageUrl":    job.UserImageURL,
		"carDetails":      job.Car,
		"description":     job.Description,
		"instagramHandle": job.InstagramHandle,
		"fontsUsed":       job.FontsUsed,
		"supportedTexts":  job.SupportedTexts,
		"hexColour":       job.HexColour,
		"hexElements":     job.HexElements,
		"resultUrl":       job.ResultURL,
		"error":           job.Error,
		"createdAt":       job.CreatedAt,
	})
}
