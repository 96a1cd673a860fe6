package hostcli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skobkin/macsniff/internal/persistence"
	"github.com/skobkin/macsniff/internal/storage"
)

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|dir>...",
		Short: "Import scan files into the archive",
		Long: `Import binary scan files into the sqlite archive.

Each argument is a scan file or a directory whose .bin files are imported.
A file already archived with the same name and content is skipped, so
importing the same dump twice is harmless.`,
		Example: `  macsniff-host import ./dump_20250101_120000
  macsniff-host import scan_1.bin scan_2.bin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			for _, arg := range args {
				files, err := collectBinFiles(arg)
				if err != nil {
					return err
				}
				paths = append(paths, files...)
			}
			if len(paths) == 0 {
				return errors.New("no .bin files found")
			}

			res, err := e.importFiles(cmd.Context(), "import:"+args[0], paths)
			if err != nil {
				return err
			}
			printImport(out(cmd), res)

			return nil
		},
	}
}

// importFiles decodes paths and archives them as one batch.
func (e *env) importFiles(ctx context.Context, source string, paths []string) (persistence.ImportResult, error) {
	files, err := e.decodeFiles(paths)
	if err != nil {
		return persistence.ImportResult{}, err
	}

	db, err := e.openArchive(ctx)
	if err != nil {
		return persistence.ImportResult{}, err
	}
	defer func() { _ = db.Close() }()

	return e.archive(ctx, persistence.NewImportRepo(db), source, files)
}

// decodeFiles loads every path. Files too short to hold a header are logged
// and left out.
func (e *env) decodeFiles(paths []string) ([]persistence.ScanFile, error) {
	files := make([]persistence.ScanFile, 0, len(paths))
	for _, p := range paths {
		f, err := loadScanFile(p)
		if errors.Is(err, storage.ErrShortHeader) {
			e.logger.Warn("skipping truncated scan file", "path", p)
			continue
		}
		if err != nil {
			return nil, err
		}
		if int(f.Declared) != len(f.MACs) {
			e.logger.Warn("scan file shorter than its header", "path", p, "declared", f.Declared, "records", len(f.MACs))
		}
		files = append(files, f)
	}

	return files, nil
}

func (e *env) archive(ctx context.Context, repo *persistence.ImportRepo, source string, files []persistence.ScanFile) (persistence.ImportResult, error) {
	res, err := repo.Import(ctx, source, files)
	if err != nil {
		return persistence.ImportResult{}, fmt.Errorf("archive import: %w", err)
	}
	e.logger.Info("import finished", "source", source, "files", res.Files, "skipped", res.Skipped, "new_macs", res.NewMACs)

	return res, nil
}
