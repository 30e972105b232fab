// Package models defines server-side data models persisted in the database.
package models

import "time"

// MediaRecord describes metadata for one blob in object storage, optionally
// tied to an entry. A record must never exist without its blob; the upload
// workflow enforces that with compensating deletes.
type MediaRecord struct {
	ID string `json:"id"`
	// UserID is the owner of the attachment.
	UserID string `json:"userId"`
	// EntryID links the attachment to its parent entry. Nullable: media may
	// be uploaded before an entry id exists.
	EntryID *string `json:"entryId"`
	// StoragePath is the object-storage key of the blob, unique per upload
	// even for identical file names uploaded concurrently.
	StoragePath string `json:"storagePath"`

	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`

	CreatedAt time.Time `json:"createdAt"`
}
