package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats summarises the whole archive.
type Stats struct {
	Imports    int
	Files      int
	Sightings  int
	UniqueMACs int
	TotalBytes int64
	FirstSeen  time.Time
	LastSeen   time.Time
}

// MACCount is how many archived scan files contain one address.
type MACCount struct {
	MAC   string
	Files int
}

type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) Summary(ctx context.Context) (Stats, error) {
	var (
		s           Stats
		first, last sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM imports),
			(SELECT COUNT(*) FROM scan_files),
			(SELECT COUNT(*) FROM sightings),
			(SELECT COUNT(DISTINCT mac) FROM sightings),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM scan_files),
			(SELECT MIN(imported_at) FROM imports),
			(SELECT MAX(imported_at) FROM imports)
	`).Scan(&s.Imports, &s.Files, &s.Sightings, &s.UniqueMACs, &s.TotalBytes, &first, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("archive summary: %w", err)
	}
	s.FirstSeen = fromNullMillis(first)
	s.LastSeen = fromNullMillis(last)

	return s, nil
}

// TopMACs lists the addresses seen in the most scan files.
func (r *StatsRepo) TopMACs(ctx context.Context, limit int) ([]MACCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT mac, COUNT(*) AS files
		FROM sightings
		GROUP BY mac
		ORDER BY files DESC, mac ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top macs: %w", err)
	}
	defer rows.Close()

	var out []MACCount
	for rows.Next() {
		var c MACCount
		if err := rows.Scan(&c.MAC, &c.Files); err != nil {
			return nil, fmt.Errorf("scan mac count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mac counts: %w", err)
	}

	return out, nil
}
