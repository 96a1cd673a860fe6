package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrNotMounted = errors.New("filesystem not mounted")
	ErrNoSpace    = errors.New("no space left on filesystem")
)

// SpaceInfo is the usage reported by the flash driver.
type SpaceInfo struct {
	Total uint64
	Used  uint64
}

func (s SpaceInfo) Free() uint64 {
	if s.Used >= s.Total {
		return 0
	}
	return s.Total - s.Used
}

// UpdateFile is an existing file opened for in-place writes.
type UpdateFile interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Size() (int64, error)
}

// Filesystem is the flat flash partition the store writes into. Names are
// bare file names without directories.
type Filesystem interface {
	Mount(ctx context.Context) error
	Unmount() error
	SpaceInfo() (SpaceInfo, error)
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
	// OpenUpdate fails with fs.ErrNotExist when name does not exist yet.
	OpenUpdate(name string) (UpdateFile, error)
	Remove(name string) error
	ReadDir() ([]fs.DirEntry, error)
}

// DirFS emulates the flash partition with a host directory and a byte quota.
type DirFS struct {
	root     string
	capacity uint64

	mu      sync.Mutex
	mounted bool
}

func NewDirFS(root string, capacity uint64) *DirFS {
	return &DirFS{root: root, capacity: capacity}
}

func (d *DirFS) Root() string {
	return d.root
}

func (d *DirFS) Mount(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create storage root %q: %w", d.root, err)
	}

	d.mu.Lock()
	d.mounted = true
	d.mu.Unlock()

	return nil
}

func (d *DirFS) Unmount() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.mounted {
		return ErrNotMounted
	}
	d.mounted = false

	return nil
}

func (d *DirFS) SpaceInfo() (SpaceInfo, error) {
	if err := d.checkMounted(); err != nil {
		return SpaceInfo{}, err
	}

	used, err := d.used()
	if err != nil {
		return SpaceInfo{}, err
	}

	return SpaceInfo{Total: d.capacity, Used: used}, nil
}

func (d *DirFS) Create(name string) (io.WriteCloser, error) {
	if err := d.checkMounted(); err != nil {
		return nil, err
	}
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}

	used, err := d.used()
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(p); statErr == nil {
		used -= min(used, uint64(info.Size())) // #nosec G115 -- file sizes are non-negative
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- name is validated against the root
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}

	var budget uint64
	if d.capacity > used {
		budget = d.capacity - used
	}

	return &quotaWriter{f: f, budget: budget}, nil
}

func (d *DirFS) Open(name string) (io.ReadCloser, error) {
	if err := d.checkMounted(); err != nil {
		return nil, err
	}
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) // #nosec G304 -- name is validated against the root
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}

	return f, nil
}

func (d *DirFS) OpenUpdate(name string) (UpdateFile, error) {
	if err := d.checkMounted(); err != nil {
		return nil, err
	}
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	used, err := d.used()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(p, os.O_RDWR, 0) // #nosec G304 -- name is validated against the root
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}

	var budget uint64
	if d.capacity > used {
		budget = d.capacity - used
	}

	return &updateFile{f: f, budget: budget}, nil
}

func (d *DirFS) Remove(name string) error {
	if err := d.checkMounted(); err != nil {
		return err
	}
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("remove %q: %w", name, err)
	}

	return nil
}

func (d *DirFS) ReadDir() ([]fs.DirEntry, error) {
	if err := d.checkMounted(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	return entries, nil
}

func (d *DirFS) checkMounted() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.mounted {
		return ErrNotMounted
	}

	return nil
}

func (d *DirFS) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	return filepath.Join(d.root, name), nil
}

func (d *DirFS) used() (uint64, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("read storage root: %w", err)
	}

	var total uint64
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat %q: %w", e.Name(), err)
		}
		total += uint64(info.Size()) // #nosec G115 -- file sizes are non-negative
	}

	return total, nil
}

// quotaWriter fails with ErrNoSpace once the partition quota is exhausted,
// like a full flash chip would.
type quotaWriter struct {
	f       *os.File
	budget  uint64
	written uint64
}

func (w *quotaWriter) Write(p []byte) (int, error) {
	room := w.budget - w.written
	if uint64(len(p)) > room {
		n, err := w.f.Write(p[:room])
		w.written += uint64(n) // #nosec G115
		if err != nil {
			return n, err
		}
		return n, ErrNoSpace
	}

	n, err := w.f.Write(p)
	w.written += uint64(n) // #nosec G115

	return n, err
}

func (w *quotaWriter) Close() error {
	return w.f.Close()
}

// updateFile refuses writes that would grow the file past the quota. A refused
// write leaves the file untouched.
type updateFile struct {
	f      *os.File
	budget uint64
}

func (u *updateFile) ReadAt(p []byte, off int64) (int, error) {
	return u.f.ReadAt(p, off)
}

func (u *updateFile) WriteAt(p []byte, off int64) (int, error) {
	size, err := u.Size()
	if err != nil {
		return 0, err
	}
	if end := off + int64(len(p)); end > size {
		grow := uint64(end - size) // #nosec G115 -- end > size
		if grow > u.budget {
			return 0, ErrNoSpace
		}
		u.budget -= grow
	}

	return u.f.WriteAt(p, off)
}

func (u *updateFile) Size() (int64, error) {
	info, err := u.f.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (u *updateFile) Close() error {
	return u.f.Close()
}
