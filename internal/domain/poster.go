package domain

import "time"

// Poster is the append-only record of a completed render. Created exactly
// once when a job reaches complete and never mutated afterwards.
type Poster struct {
	ID           string
	UserID       string
	JobID        string
	ResultURL    string
	UserImageURL string
	TemplateID   string
	Description  string
	Car          VehicleIdentity
	CreatedAt    time.Time
}
