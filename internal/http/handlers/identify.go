package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"posterforge/internal/domain"
)

const maxFetchBytes = 8 << 20

const plateNotFoundStatus = "plate_not_found_try_manual_entry"

type identifyRequest struct {
	ImageURL string `json:"imageUrl"`
}

type identifyResponse struct {
	Plate  string `json:"plate,omitempty"`
	Status string `json:"status,omitempty"`
}

// Identify reads the license plate out of an uploaded photo. A photo the
// model cannot read is a 200 with an embedded status, not an error.
func (a *App) Identify(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "imageUrl required")
		return
	}

	if _, err := a.Ledger.TryDebit(r.Context(), userID, domain.CreditAIIdentification); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredit) {
			a.error(w, http.StatusForbidden, "credit_exhausted", "no identification credits remaining")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to reserve credit")
		return
	}

	data, mimeType, err := a.fetchImage(r.Context(), req.ImageURL)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "could not fetch image")
		return
	}

	ident, err := a.Vision.Identify(r.Context(), data, mimeType)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("vision identification failed")
		a.error(w, http.StatusInternalServerError, "internal", "identification failed")
		return
	}
	if ident.Plate == "" {
		a.json(w, http.StatusOK, identifyResponse{Status: plateNotFoundStatus})
		return
	}
	a.json(w, http.StatusOK, identifyResponse{Plate: ident.Plate})
}

func (a *App) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if a.ImageFetcher != nil {
		return a.ImageFetcher(ctx, imageURL)
	}
	return fetchImageHTTP(ctx, imageURL)
}

func fetchImageHTTP(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch image: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, "", err
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
