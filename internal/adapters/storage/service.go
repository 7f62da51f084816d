// Package storage stores generated documents, transcripts and recordings in
// S3-compatible object storage under deterministic keys.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStore is the object storage the domain modules depend on.
type ObjectStore interface {
	// Put writes data under key, replacing any previous object.
	Put(ctx context.Context, key, contentType string, data []byte) error
	// Get reads the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignedGetURL returns a short-lived download URL for key.
	PresignedGetURL(ctx context.Context, key string) (PresignedURL, error)
}
