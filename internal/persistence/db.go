package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// DefaultBusyTimeout lets `receive` and `watch` share one archive: a writer
// waits this long for the other's lock instead of failing with SQLITE_BUSY.
const DefaultBusyTimeout = 5 * time.Second

// archiveDSN carries the pragmas in the DSN so every pooled connection gets
// them, not just the first one.
func archiveDSN(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "busy_timeout("+strconv.FormatInt(busy.Milliseconds(), 10)+")")

	return path + "?" + q.Encode()
}

// Open opens the dump archive at path, creating its directory, and migrates
// the schema to the latest version.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", archiveDSN(path, DefaultBusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping archive %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}
