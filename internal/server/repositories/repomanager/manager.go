package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/journalkeeper/internal/dbx"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/media"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/tags"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Entries(db dbx.DBTX) entries.Repository
	Media(db dbx.DBTX) media.Repository
	Tags(db dbx.DBTX) tags.Repository
}
