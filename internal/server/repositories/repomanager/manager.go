package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/workflow/internal/dbx"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX and knows how to
// bring the schema up to date.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
}
