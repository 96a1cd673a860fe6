package persistence

import (
	"database/sql"
	"time"
)

// Import and sighting times are stored as unix milliseconds; 0 means unset.

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

// fromNullMillis decodes an aggregate such as MIN(imported_at), which is NULL
// on an empty archive.
func fromNullMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return fromUnixMillis(v.Int64)
}
