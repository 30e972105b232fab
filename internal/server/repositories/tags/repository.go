// Package tags keeps the normalized tags and entry_tags relations in sync
// with the tag list embedded in each entry's content document.
package tags

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

type Repository interface {
	// SyncEntryTags replaces the tag links of one entry with the given
	// list, creating missing per-user tag rows on the way. Intended to run
	// inside the same transaction as the entry write.
	SyncEntryTags(ctx context.Context, userID, entryID string, names []string) error

	// ListByUser returns all tag rows of a user ordered by name.
	ListByUser(ctx context.Context, userID string) ([]*models.Tag, error)
}
