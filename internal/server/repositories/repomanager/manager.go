package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/birdwatch/internal/dbx"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/chats"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/sightings"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// use the same repositories inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Sightings(db dbx.DBTX) sightings.Repository
	Chats(db dbx.DBTX) chats.Repository
}
