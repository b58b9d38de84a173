// Package posters is the append-only history of completed renders.
package posters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"posterforge/internal/domain"
	"posterforge/internal/infra"
	"posterforge/internal/sqlinline"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Record writes the poster metadata once, at job completion. Returns the
// generated poster id.
func (s *Store) Record(ctx context.Context, poster domain.Poster) (string, error) {
	id := poster.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.sql.Exec(ctx, sqlinline.QInsertPoster,
		id,
		poster.UserID,
		poster.JobID,
		poster.ResultURL,
		poster.UserImageURL,
		poster.TemplateID,
		poster.Description,
		poster.Car.Make,
		poster.Car.Model,
		poster.Car.Year,
	)
	if err != nil {
		return "", fmt.Errorf("posters: record: %w", err)
	}
	return id, nil
}

// ListForUser returns the user's posters newest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]domain.Poster, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectUserPosters, userID)
	if err != nil {
		return nil, fmt.Errorf("posters: list: %w", err)
	}
	defer rows.Close()

	var items []domain.Poster
	for rows.Next() {
		var p domain.Poster
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.JobID,
			&p.ResultURL,
			&p.UserImageURL,
			&p.TemplateID,
			&p.Description,
			&p.Car.Make,
			&p.Car.Model,
			&p.Car.Year,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("posters: scan: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("posters: iterate: %w", err)
	}
	return items, nil
}
