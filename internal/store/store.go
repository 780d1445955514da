package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlStore is the database/sql implementation of Store (internal to this package).
// It runs against any SQLite driver; see FromDB.
type sqlStore struct {
	DB *sql.DB
	q  querier
	tx *sql.Tx
	// Prepared statements for hot paths (prepared at open, closed in Close).
	stmtGetTask        *sql.Stmt
	stmtGetAgent       *sql.Stmt
	stmtInsertActivity *sql.Stmt
}

// OpenOptions configures how to open the store (driver and location).
type OpenOptions struct {
	Driver string // "sqlite" (default), "sqlite3" (cgo) or "postgres"
	Home   string // for sqlite: directory containing protected/db.sqlite
	DSN    string // for postgres: connection string; or env DATABASE_URL
}

// Open opens the default SQLite store at home/protected/db.sqlite.
func Open(home string) (Store, error) {
	return OpenWithOptions(OpenOptions{Driver: "sqlite", Home: home})
}

// OpenWithOptions opens a store based on driver and options. Driver "" or "sqlite" uses Home or DSN.
// For drivers "postgres" and "sqlite3" the caller must use the matching subpackage
// (internal/store/postgres, internal/store/sqlite) to avoid import cycles.
func OpenWithOptions(opts OpenOptions) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
	case "postgres":
		return nil, errors.New("for postgres use postgres.Open(dsn) from github.com/ankittk/missionctl/internal/store/postgres")
	case "sqlite3":
		return nil, errors.New("for sqlite3 use sqlite.Open(home) from github.com/ankittk/missionctl/internal/store/sqlite")
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if opts.Home == "" && opts.DSN != "" {
		return openSQLiteDSN(opts.DSN)
	}
	return openSQLite(opts.Home)
}

// DBPath returns the SQLite database path under home.
func DBPath(home string) string {
	return filepath.Join(home, "protected", "db.sqlite")
}

func openSQLiteDSN(dsn string) (Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite DSN required")
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return FromDB(context.Background(), db)
}

// openSQLite opens SQLite at home (used by Open and OpenWithOptions when driver is sqlite).
func openSQLite(home string) (Store, error) {
	dbPath := DBPath(home)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	return FromDB(context.Background(), db)
}

// FromDB wraps an open SQLite *sql.DB: it tunes the pool, applies pragmas, runs
// migrations and prepares hot-path statements. The store owns db from here on.
func FromDB(ctx context.Context, db *sql.DB) (Store, error) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &sqlStore{DB: db, q: db}
	if err := s.initPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) prepareStatements(ctx context.Context) error {
	pairs := []struct {
		dest **sql.Stmt
		q    string
	}{
		{&s.stmtGetTask, `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`},
		{&s.stmtGetAgent, `SELECT ` + agentColumns + ` FROM agents WHERE id = ?`},
		{&s.stmtInsertActivity, `INSERT INTO activities(id, workspace_id, type, agent_id, task_id, message, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`},
	}
	for _, p := range pairs {
		st, err := s.DB.PrepareContext(ctx, p.q)
		if err != nil {
			return err
		}
		*p.dest = st
	}
	return nil
}

// stmt returns st bound to the current transaction, if any.
func (s *sqlStore) stmt(ctx context.Context, st *sql.Stmt) *sql.Stmt {
	if s.tx != nil {
		return s.tx.StmtContext(ctx, st)
	}
	return st
}

// EnsureSchema creates the store at home, runs migrations, and closes it; used to bootstrap the DB.
func EnsureSchema(home string) error {
	s, err := Open(home)
	if err != nil {
		return err
	}
	return s.Close()
}

func (s *sqlStore) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	if s.tx != nil {
		return errors.New("close called inside a transaction")
	}
	for _, st := range []*sql.Stmt{s.stmtGetTask, s.stmtGetAgent, s.stmtInsertActivity} {
		if st != nil {
			_ = st.Close()
		}
	}
	return s.DB.Close()
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	txs := *s
	txs.q = tx
	txs.tx = tx
	if err := fn(&txs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqlStore) initPragmas(ctx context.Context) error {
	// WAL yields much better concurrency for the polling dashboard.
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA temp_store=MEMORY;",
		// Negative cache_size means KB.
		"PRAGMA cache_size=-20000;",
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Migrate applies embedded migrations that are not yet recorded in schema_migrations.
func (s *sqlStore) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store not initialized")
	}

	if _, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at INTEGER NOT NULL
);`); err != nil {
		return err
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	migs, err := LoadMigrations(migrationsFS)
	if err != nil {
		return err
	}
	for _, m := range migs {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

// Migration is one numbered schema file (NNN_name.sql).
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// LoadMigrations reads migrations/*.sql from fsys, sorted by version.
func LoadMigrations(fsys embed.FS) ([]Migration, error) {
	files, err := fsys.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	var migs []Migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		v, err := parseMigrationVersion(name)
		if err != nil {
			return nil, err
		}
		body, err := fsys.ReadFile("migrations/" + name)
		if err != nil {
			return nil, err
		}
		migs = append(migs, Migration{Version: v, Name: name, SQL: string(body)})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}

func (s *sqlStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (s *sqlStore) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`, m.Version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func parseMigrationVersion(filename string) (int, error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	v, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %s", filename)
	}
	return v, nil
}
