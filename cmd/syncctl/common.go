package main

import (
	"context"
	"errors"

	"github.com/notesync/core/internal/sqlitestore"
	"github.com/notesync/core/internal/sqlkit"
)

func openDB(ctx context.Context) (sqlkit.DB, func(), error) {
	db, err := sqlitestore.Open(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}
	return sqlkit.DBAdapter{DB: db}, func() { db.Close() }, nil
}

// noRefresher is the CLI's TokenRefresher: token issuance/refresh is out
// of this spec's scope (spec §6.3), so a 401 during `syncctl sync` just
// fails with a message telling the operator to `syncctl login` again.
type noRefresher struct{}

func (noRefresher) Refresh(ctx context.Context) (string, error) {
	return "", errors.New("syncctl: no token refresh configured, run `syncctl login` again")
}
