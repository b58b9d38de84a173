package domain

import "time"

// JobStatus enumerates render job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// RenderJob is the single mutable record tracking one poster render from
// submission to its terminal state. The id is supplied by the caller at
// submission time and treated as unique. Once Status is terminal the record
// is never written again.
type RenderJob struct {
	ID              string
	UserID          string
	Status          JobStatus
	Progress        string
	TemplateID      string
	PSDURL          string
	UserImageURL    string
	Car             VehicleIdentity
	Description     string
	InstagramHandle string
	FontsUsed       []string
	SupportedTexts  []string
	HexColour       string
	HexElements     map[string]string
	ResultURL       string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
