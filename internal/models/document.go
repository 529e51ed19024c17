package models

import "time"

// StoredDocument represents one accepted user upload on disk.
type StoredDocument struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
