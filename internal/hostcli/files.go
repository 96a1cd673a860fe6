package hostcli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skobkin/macsniff/internal/persistence"
	"github.com/skobkin/macsniff/internal/storage"
)

// collectBinFiles expands input into the .bin files it names, sorted by name.
func collectBinFiles(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", input, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), storage.FileExt) {
			continue
		}
		files = append(files, filepath.Join(input, e.Name()))
	}
	sort.Strings(files)

	return files, nil
}

func isScanFileName(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, storage.FilePrefix) && strings.HasSuffix(base, storage.FileExt)
}

func loadScanFile(path string) (persistence.ScanFile, error) {
	// #nosec G304 -- path comes from the command line or the watched directory.
	raw, err := os.ReadFile(path)
	if err != nil {
		return persistence.ScanFile{}, err
	}

	return decodeScanFile(path, raw)
}

func decodeScanFile(name string, raw []byte) (persistence.ScanFile, error) {
	macs, declared, err := storage.DecodeRecords(bytes.NewReader(raw))
	if err != nil {
		return persistence.ScanFile{}, fmt.Errorf("decode %s: %w", name, err)
	}

	return persistence.ScanFile{Name: name, Declared: declared, MACs: macs, Raw: raw}, nil
}
