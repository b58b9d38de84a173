// Package storage persists rendered posters and hands back durable retrieval
// URLs. Object storage is the production path; the filesystem store backs
// development and tests.
package storage

import "context"

// ArtifactStore uploads poster bytes and returns the URL the client fetches
// them from.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
