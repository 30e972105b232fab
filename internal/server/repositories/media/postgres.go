package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

const mediaColumns = "id, user_id, entry_id, storage_path, file_name, file_size, mime_type, created_at"

// PostgresRepository implements media storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, record *models.MediaRecord) error {
	query := `INSERT INTO media (id, user_id, entry_id, storage_path, file_name, file_size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if err := r.db.QueryRowContext(ctx, query,
		record.ID, record.UserID, record.EntryID, record.StoragePath,
		record.FileName, record.FileSize, record.MimeType,
	).Scan(&record.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*models.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1 AND user_id = $2`

	record := &models.MediaRecord{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&record.ID, &record.UserID, &record.EntryID, &record.StoragePath,
		&record.FileName, &record.FileSize, &record.MimeType, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}

func (r *PostgresRepository) ListByEntry(ctx context.Context, userID, entryID string) ([]*models.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM media
		WHERE user_id = $1 AND entry_id = $2
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to select media: %w", err)
	}
	defer rows.Close()

	var result []*models.MediaRecord
	for rows.Next() {
		var item models.MediaRecord
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.EntryID, &item.StoragePath,
			&item.FileName, &item.FileSize, &item.MimeType, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}
