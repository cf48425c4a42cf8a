package repomanager

import (
	"context"
	"database/sql"

	"github.com/mpereira/finledger/internal/dbx"
	"github.com/mpereira/finledger/internal/server/repositories/transactions"
	"github.com/mpereira/finledger/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Transactions(db dbx.DBTX) transactions.Repository
}
