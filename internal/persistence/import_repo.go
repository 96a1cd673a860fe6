package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/skobkin/macsniff/internal/capture"
)

// ScanFile is one decoded record file ready to be archived.
type ScanFile struct {
	Name     string
	Declared uint32
	MACs     []capture.MAC
	Raw      []byte
}

// ContentHash identifies the raw file so re-imports of the same dump are skipped.
func (f ScanFile) ContentHash() string {
	sum := sha256.Sum256(f.Raw)
	return hex.EncodeToString(sum[:])
}

// Import is one archived batch: a received dump or an imported directory.
type Import struct {
	ID         string
	Source     string
	ImportedAt time.Time
	Files      int
	Skipped    int
	TotalBytes int64
}

// ImportResult describes what an Import call added.
type ImportResult struct {
	Import
	Sightings int
	NewMACs   int
}

type ImportRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewImportRepo(db *sql.DB) *ImportRepo {
	return &ImportRepo{db: db, now: time.Now}
}

// Import stores files under a fresh batch id in one transaction. Files that
// were archived before with the same name and content are counted as skipped.
func (r *ImportRepo) Import(ctx context.Context, source string, files []ScanFile) (ImportResult, error) {
	res := ImportResult{Import: Import{
		ID:         uuid.NewString(),
		Source:     source,
		ImportedAt: r.now(),
	}}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var knownBefore int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(DISTINCT mac) FROM sightings`).Scan(&knownBefore); err != nil {
		return ImportResult{}, fmt.Errorf("count known macs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO imports(id, source, imported_at)
		VALUES (?, ?, ?)
	`, res.ID, source, toUnixMillis(res.ImportedAt)); err != nil {
		return ImportResult{}, fmt.Errorf("insert import: %w", err)
	}

	for _, f := range files {
		added, err := insertScanFile(ctx, tx, res.ID, f)
		if err != nil {
			return ImportResult{}, err
		}
		if added < 0 {
			res.Skipped++
			continue
		}
		res.Files++
		res.TotalBytes += int64(len(f.Raw))
		res.Sightings += added
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE imports SET files = ?, skipped = ?, total_bytes = ? WHERE id = ?
	`, res.Files, res.Skipped, res.TotalBytes, res.ID); err != nil {
		return ImportResult{}, fmt.Errorf("update import totals: %w", err)
	}

	var knownAfter int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(DISTINCT mac) FROM sightings`).Scan(&knownAfter); err != nil {
		return ImportResult{}, fmt.Errorf("count known macs: %w", err)
	}
	res.NewMACs = knownAfter - knownBefore

	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("commit import tx: %w", err)
	}

	return res, nil
}

// insertScanFile returns the number of sightings added, or -1 when the file
// is already archived.
func insertScanFile(ctx context.Context, tx *sql.Tx, importID string, f ScanFile) (int, error) {
	name := path.Base(f.Name)
	hash := f.ContentHash()

	var existing int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM scan_files WHERE name = ? AND content_hash = ?
	`, name, hash).Scan(&existing)
	switch {
	case err == nil:
		return -1, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("lookup scan file %s: %w", name, err)
	}

	out, err := tx.ExecContext(ctx, `
		INSERT INTO scan_files(import_id, name, content_hash, declared_count, records, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, importID, name, hash, int64(f.Declared), len(f.MACs), len(f.Raw))
	if err != nil {
		return 0, fmt.Errorf("insert scan file %s: %w", name, err)
	}
	fileID, err := out.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("scan file id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sightings(scan_file_id, mac) VALUES (?, ?)
		ON CONFLICT(scan_file_id, mac) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare sighting insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	added := 0
	for _, mac := range f.MACs {
		r, err := stmt.ExecContext(ctx, fileID, mac.String())
		if err != nil {
			return 0, fmt.Errorf("insert sighting %s: %w", mac, err)
		}
		if n, _ := r.RowsAffected(); n > 0 {
			added++
		}
	}

	return added, nil
}

// ListImports returns the most recent batches first.
func (r *ImportRepo) ListImports(ctx context.Context, limit int) ([]Import, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, imported_at, files, skipped, total_bytes
		FROM imports
		ORDER BY imported_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []Import
	for rows.Next() {
		var (
			imp Import
			at  int64
		)
		if err := rows.Scan(&imp.ID, &imp.Source, &at, &imp.Files, &imp.Skipped, &imp.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imp.ImportedAt = fromUnixMillis(at)
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate imports: %w", err)
	}

	return out, nil
}
