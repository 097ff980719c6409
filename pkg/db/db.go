package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverCgo  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	return InitDBContext(context.Background(), db)
}

// InitDBContext is InitDB with a caller supplied context.
func InitDBContext(ctx context.Context, db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Open opens the SQLite database at path with the named driver and runs the
// migrations. ":memory:" yields a single-connection in-memory database.
func Open(ctx context.Context, driver, path string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverCgo
	}
	dsn, err := DSN(driver, path)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if path == ":memory:" {
		// Ensure single connection to avoid separate in-memory DBs per connection.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := InitDBContext(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// DSN builds the connection string for driver. File databases get a busy
// timeout, WAL journaling and IMMEDIATE transactions so concurrent writers
// queue instead of failing on lock upgrade.
func DSN(driver, path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	switch driver {
	case DriverCgo:
		return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", nil
	case DriverPure:
		return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}
