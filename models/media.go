package models

import (
	"time"

	"github.com/google/uuid"
)

type MediaStatus string

const (
	MediaStatusPending  MediaStatus = "pending"
	MediaStatusUploaded MediaStatus = "uploaded"
	MediaStatusFailed   MediaStatus = "failed"
)

// Media is one listing photo queued for mirroring to object storage.
type Media struct {
	ID          int64       `json:"id" db:"id"`
	ListingID   uuid.UUID   `json:"listing_id" db:"listing_id"`
	OriginalURL string      `json:"original_url" db:"original_url"`
	S3Key       string      `json:"s3_key" db:"s3_key"`
	ContentHash string      `json:"content_hash" db:"content_hash"`
	SizeBytes   int64       `json:"size_bytes" db:"size_bytes"`
	Status      MediaStatus `json:"status" db:"status"`
	Attempts    int         `json:"attempts" db:"attempts"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UploadedAt  *time.Time  `json:"uploaded_at" db:"uploaded_at"`
}
