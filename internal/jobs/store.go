// Package jobs owns the render job lifecycle: the persisted job record and
// the orchestrator that drives one job from claim to a terminal state.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/sqlinline"
)

// Store reads and writes render job records. Status transitions are guarded
// in SQL: terminal rows match no update predicate, so a complete or error
// job can never be written again.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Insert creates the job with status queued. The id is caller-supplied; a
// replayed submission with a known id is rejected with ErrDuplicateOperation
// instead of resetting the existing record.
func (s *Store) Insert(ctx context.Context, job domain.RenderJob) error {
	hexElements, err := json.Marshal(orEmpty(job.HexElements))
	if err != nil {
		return fmt.Errorf("jobs: encode hex elements: %w", err)
	}
	var id string
	row := s.sql.QueryRow(ctx, sqlinline.QInsertRenderJob,
		job.ID,
		job.UserID,
		job.TemplateID,
		job.PSDURL,
		job.UserImageURL,
		job.Car.Make,
		job.Car.Model,
		job.Car.Year,
		job.Description,
		job.InstagramHandle,
		orEmptySlice(job.FontsUsed),
		orEmptySlice(job.SupportedTexts),
		job.HexColour,
		hexElements,
	)
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrDuplicateOperation
		}
		return fmt.Errorf("jobs: insert: %w", err)
	}
	return nil
}

// Claim atomically moves the oldest queued job to in-progress and returns
// its input snapshot. The skip-locked transition is the at-most-once guard:
// two workers can never claim the same job, and a re-delivered trigger for
// an already-claimed job finds nothing to claim. ErrNotFound means the
// queue is empty.
func (s *Store) Claim(ctx context.Context) (domain.RenderJob, error) {
	var (
		job         domain.RenderJob
		hexElements []byte
	)
	row := s.sql.QueryRow(ctx, sqlinline.QClaimRenderJob)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.TemplateID,
		&job.PSDURL,
		&job.UserImageURL,
		&job.Car.Make,
		&job.Car.Model,
		&job.Car.Year,
		&job.Description,
		&job.InstagramHandle,
		&job.FontsUsed,
		&job.SupportedTexts,
		&job.HexColour,
		&hexElements,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.RenderJob{}, domain.ErrNotFound
		}
		return domain.RenderJob{}, fmt.Errorf("jobs: claim: %w", err)
	}
	job.Status = domain.JobStatusInProgress
	if len(hexElements) > 0 {
		if err := json.Unmarshal(hexElements, &job.HexElements); err != nil {
			return domain.RenderJob{}, fmt.Errorf("jobs: decode hex elements: %w", err)
		}
	}
	return job, nil
}

// SetProgress updates the phase label. Writes against a terminal job are
// silently dropped by the status predicate.
func (s *Store) SetProgress(ctx context.Context, jobID, label string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QUpdateJobProgress, jobID, label)
	if err != nil {
		return fmt.Errorf("jobs: set progress: %w", err)
	}
	return nil
}

// Complete writes the terminal success state with the result URL.
func (s *Store) Complete(ctx context.Context, jobID, resultURL string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QCompleteJob, jobID, resultURL); err != nil {
		return fmt.Errorf("jobs: complete: %w", err)
	}
	return nil
}

// Fail writes the terminal error state with a short technical message.
func (s *Store) Fail(ctx context.Context, jobID, message string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QFailJob, jobID, message); err != nil {
		return fmt.Errorf("jobs: fail: %w", err)
	}
	return nil
}

// GetForUser loads the record the polling client observes. Ownership is part
// of the key: another user's job id reads as not found.
func (s *Store) GetForUser(ctx context.Context, jobID, userID string) (domain.RenderJob, error) {
	var (
		job         domain.RenderJob
		hexElements []byte
	)
	row := s.sql.QueryRow(ctx, sqlinline.QSelectJobForUser, jobID, userID)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.Progress,
		&job.TemplateID,
		&job.PSDURL,
		&job.UserImageURL,
		&job.Car.Make,
		&job.Car.Model,
		&job.Car.Year,
		&job.Description,
		&job.InstagramHandle,
		&job.FontsUsed,
		&job.SupportedTexts,
		&job.HexColour,
		&hexElements,
		&job.ResultURL,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.RenderJob{}, domain.ErrNotFound
		}
		return domain.RenderJob{}, fmt.Errorf("jobs: get: %w", err)
	}
	if len(hexElements) > 0 {
		if err := json.Unmarshal(hexElements, &job.HexElements); err != nil {
			return domain.RenderJob{}, fmt.Errorf("jobs: decode hex elements: %w", err)
		}
	}
	return job, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
