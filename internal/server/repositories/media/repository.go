// Package media provides PostgreSQL-backed persistence for attachment
// metadata. The blob itself lives in object storage; a row here is only
// written after the blob write succeeded.
package media

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

type Repository interface {
	// Insert records a new attachment and fills CreatedAt from the database.
	Insert(ctx context.Context, record *models.MediaRecord) error

	// GetByID returns the record scoped by id and owner, or
	// common.ErrorNotFound.
	GetByID(ctx context.Context, userID, id string) (*models.MediaRecord, error)

	// ListByEntry returns all attachments of one entry, owner-scoped,
	// oldest first.
	ListByEntry(ctx context.Context, userID, entryID string) ([]*models.MediaRecord, error)

	// Delete removes the record scoped by id and owner. Returns false when
	// nothing was deleted.
	Delete(ctx context.Context, userID, id string) (bool, error)
}
