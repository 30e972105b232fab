// Package entries provides PostgreSQL-backed persistence for journal
// entries. All operations are scoped to the owning user: a row that exists
// but belongs to someone else behaves exactly like a missing row.
package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

// Patch describes a partial update. Nil fields are left untouched;
// updated_at is always refreshed.
type Patch struct {
	Title          *string
	Content        *models.EntryContent
	EntryDate      *time.Time
	LocationText   *string
	WeatherSummary *string
}

type Repository interface {
	// List returns up to limit entries for userID ordered by entry_date
	// descending. A non-empty search filters rows where title or the
	// content text contains it as a case-insensitive substring.
	List(ctx context.Context, userID string, limit int, search string) ([]*models.Entry, error)

	// Create inserts the entry and fills its CreatedAt/UpdatedAt from the
	// database.
	Create(ctx context.Context, entry *models.Entry) error

	// Update applies the patch to the entry with the given id, scoped by
	// owner, and returns the resulting row. Returns common.ErrorNotFound
	// when the row is missing or owned by another user.
	Update(ctx context.Context, userID, id string, patch *Patch) (*models.Entry, error)

	// Delete removes the entry scoped by id and owner. Returns false when
	// nothing was deleted.
	Delete(ctx context.Context, userID, id string) (bool, error)

	// SelectByDateRange returns entries whose entry_date falls within
	// [from, to], owner-scoped, ordered by entry_date descending.
	SelectByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*models.Entry, error)
}
