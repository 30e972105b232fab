package tags

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

// PostgresRepository implements tag storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SyncEntryTags drops the entry's current links and relinks it to the given
// tag names, upserting tag rows as needed. Names arrive already normalized
// (deduplicated, lowercased) by the caller.
func (r *PostgresRepository) SyncEntryTags(ctx context.Context, userID, entryID string, names []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM entry_tags WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, name := range names {
		var tagID string
		// The no-op DO UPDATE makes RETURNING yield the id on conflict too.
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO tags (user_id, name) VALUES ($1, $2)
			ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			userID, name).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO entry_tags (entry_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			entryID, tagID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// ListByUser returns the user's tags ordered by name.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM tags WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []*models.Tag
	for rows.Next() {
		var item models.Tag
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
