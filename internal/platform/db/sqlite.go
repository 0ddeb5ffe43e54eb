package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqlitePrefix = "sqlite:"

// IsSQLiteURL reports whether a DATABASE_URL selects the embedded store.
func IsSQLiteURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, sqlitePrefix)
}

// sqliteDSN turns "sqlite:<path>" or "sqlite://<path>" into a driver DSN with
// foreign keys enforced.
func sqliteDSN(databaseURL string) (dsn string, inMemory bool) {
	path := strings.TrimPrefix(databaseURL, sqlitePrefix)
	path = strings.TrimPrefix(path, "//")
	if path == "" {
		path = ":memory:"
	}
	inMemory = strings.HasPrefix(path, ":memory:") || strings.Contains(path, "mode=memory")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", inMemory
}

// OpenSQLite opens and pings an embedded SQLite database. In-memory
// databases are pinned to one connection so every query sees the same data.
func OpenSQLite(ctx context.Context, databaseURL string) (*sql.DB, error) {
	dsn, inMemory := sqliteDSN(databaseURL)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}
