// Package users provides PostgreSQL-backed persistence for user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/journalkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByLogin returns the user with the given username or
	// common.ErrorNotFound.
	GetByLogin(ctx context.Context, userName string) (*models.User, error)
}
