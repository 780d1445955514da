// Package sqlite opens the store on the cgo SQLite driver (mattn/go-sqlite3).
// Schema, migrations and queries are shared with the default pure-Go store.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/ankittk/missionctl/internal/store"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens a SQLite database at home/protected/db.sqlite and runs migrations.
func Open(home string) (store.Store, error) {
	dbPath := store.DBPath(home)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	return OpenDSN("file:" + dbPath)
}

// OpenDSN opens dsn with the sqlite3 driver. A busy timeout is added unless dsn sets one.
func OpenDSN(dsn string) (store.Store, error) {
	db, err := sql.Open("sqlite3", withBusyTimeout(dsn))
	if err != nil {
		return nil, err
	}
	return store.FromDB(context.Background(), db)
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_busy_timeout=5000"
	}
	return dsn + "?_busy_timeout=5000"
}
