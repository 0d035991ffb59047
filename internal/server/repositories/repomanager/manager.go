// Package repomanager vends repository implementations bound to a DBTX and
// runs schema migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	// RefreshTokens returns the refresh token store. When the store is not
	// SQL-backed the db argument is ignored.
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	// TransactionalRefreshTokens reports whether RefreshTokens honors the db
	// argument, i.e. takes part in a transaction passed to it.
	TransactionalRefreshTokens() bool
}
