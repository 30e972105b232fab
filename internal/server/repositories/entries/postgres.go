package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

const entryColumns = "id, user_id, title, content, entry_date, location_text, weather_summary, created_at, updated_at"

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// escapeLike escapes LIKE metacharacters so a search string is always
// matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanEntry(scan func(dest ...any) error) (*models.Entry, error) {
	var item models.Entry
	var content []byte
	if err := scan(
		&item.ID, &item.UserID, &item.Title, &content, &item.EntryDate,
		&item.LocationText, &item.WeatherSummary, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &item.Content); err != nil {
		return nil, fmt.Errorf("content decode error: %w", err)
	}
	return &item, nil
}

func collectEntries(rows *sql.Rows) ([]*models.Entry, error) {
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		item, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// List returns up to limit entries for userID, newest entry_date first.
// With a non-empty search the title and the embedded content text are
// matched with ILIKE (literal substring, case-insensitive).
func (r *PostgresRepository) List(ctx context.Context, userID string, limit int, search string) ([]*models.Entry, error) {
	var rows *sql.Rows
	var err error

	if search == "" {
		query := `SELECT ` + entryColumns + ` FROM entries
			WHERE user_id = $1
			ORDER BY entry_date DESC
			LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, userID, limit)
	} else {
		query := `SELECT ` + entryColumns + ` FROM entries
			WHERE user_id = $1
			AND (title ILIKE $3 ESCAPE '\' OR content->>'text' ILIKE $3 ESCAPE '\')
			ORDER BY entry_date DESC
			LIMIT $2`
		pattern := "%" + escapeLike(search) + "%"
		rows, err = r.db.QueryContext(ctx, query, userID, limit, pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	return collectEntries(rows)
}

// Create inserts a new entry row and reads back the database-assigned
// created_at/updated_at timestamps.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) error {
	content, err := json.Marshal(entry.Content)
	if err != nil {
		return fmt.Errorf("content encode error: %w", err)
	}

	query := `INSERT INTO entries (id, user_id, title, content, entry_date, location_text, weather_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if err := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.UserID, entry.Title, content, entry.EntryDate,
		entry.LocationText, entry.WeatherSummary,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update patches only the fields set in patch, always refreshing
// updated_at. The WHERE clause is scoped by id AND user_id, so a cross-user
// target scans no row and is reported as common.ErrorNotFound.
func (r *PostgresRepository) Update(ctx context.Context, userID, id string, patch *Patch) (*models.Entry, error) {
	set := []string{"updated_at = now()"}
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		content, err := json.Marshal(patch.Content)
		if err != nil {
			return nil, fmt.Errorf("content encode error: %w", err)
		}
		add("content", content)
	}
	if patch.EntryDate != nil {
		add("entry_date", *patch.EntryDate)
	}
	if patch.LocationText != nil {
		add("location_text", *patch.LocationText)
	}
	if patch.WeatherSummary != nil {
		add("weather_summary", *patch.WeatherSummary)
	}

	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE entries SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args)-1, len(args), entryColumns)

	item, err := scanEntry(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

// Delete removes the entry scoped by id and owner. The second delete of the
// same id is a no-op returning false.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// SelectByDateRange returns entries with entry_date in [from, to],
// owner-scoped, newest first.
func (r *PostgresRepository) SelectByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id = $1 AND entry_date >= $2 AND entry_date <= $3
		ORDER BY entry_date DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	return collectEntries(rows)
}
