package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const DriverName = "sqlite3"

// NewSQLite opens a single-node store. Every transaction begins IMMEDIATE so
// writers are serialised by the database lock; waiting writers give up after
// busyTimeoutMs with SQLITE_BUSY.
//
// Use ":memory:" for a private in-memory database; it is pinned to one
// connection because every new connection would see an empty database.
func NewSQLite(path string, busyTimeoutMs int) (*sqlx.DB, error) {
	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")

	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += fmt.Sprintf("%s_txlock=immediate&_busy_timeout=%d&_foreign_keys=on", sep, busyTimeoutMs)

	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
