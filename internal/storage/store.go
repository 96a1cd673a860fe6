package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/skobkin/macsniff/internal/capture"
)

const (
	DefaultMountPoint = "/spiffs"
	FilePrefix        = "scan_"
	FileExt           = ".bin"
)

var ErrInsufficientSpace = errors.New("insufficient space")

// Store persists scan results as record files on a Filesystem. Paths handed
// out by the store are rooted at the mount point, like on the device.
type Store struct {
	fs         Filesystem
	mountPoint string
	logger     *slog.Logger
	now        func() time.Time
}

func NewStore(fsys Filesystem, mountPoint string, logger *slog.Logger) *Store {
	if mountPoint == "" {
		mountPoint = DefaultMountPoint
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		fs:         fsys,
		mountPoint: mountPoint,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for file names.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) MountPoint() string {
	return s.mountPoint
}

func (s *Store) Mount(ctx context.Context) error {
	if err := s.fs.Mount(ctx); err != nil {
		return fmt.Errorf("mount %s: %w", s.mountPoint, err)
	}
	s.logger.Info("storage mounted", "mount_point", s.mountPoint)

	return nil
}

func (s *Store) Unmount() error {
	if err := s.fs.Unmount(); err != nil {
		return fmt.Errorf("unmount %s: %w", s.mountPoint, err)
	}
	s.logger.Info("storage unmounted", "mount_point", s.mountPoint)

	return nil
}

func (s *Store) FreeSpace() (total, used uint64, err error) {
	info, err := s.fs.SpaceInfo()
	if err != nil {
		return 0, 0, fmt.Errorf("space info: %w", err)
	}
	s.logger.Debug("storage space", "total", info.Total, "used", info.Used)

	return info.Total, info.Used, nil
}

// HasEnoughSpace is a pure admission check against the current usage.
func (s *Store) HasEnoughSpace(needed uint64) (bool, error) {
	total, used, err := s.FreeSpace()
	if err != nil {
		return false, err
	}

	return SpaceInfo{Total: total, Used: used}.Free() >= needed, nil
}

// Save writes macs into a new scan file and returns its path. When the
// admission check fails nothing is written and ErrInsufficientSpace is returned.
func (s *Store) Save(macs []capture.MAC) (string, error) {
	needed := EncodedSize(len(macs))
	ok, err := s.HasEnoughSpace(needed)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: need %d bytes", ErrInsufficientSpace, needed)
	}

	name, err := s.uniqueName(s.now())
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := EncodeRecords(&buf, macs); err != nil {
		return "", err
	}
	if err := s.writeFile(name, buf.Bytes()); err != nil {
		return "", err
	}

	p := s.pathOf(name)
	s.logger.Info("scan saved", "path", p, "records", len(macs), "bytes", buf.Len())

	return p, nil
}

// AppendMAC adds one record to the file at p, creating it with a count of one
// when it does not exist yet. An existing file is never rewritten: the record
// goes after the last complete one and only then is the header count patched,
// so a failed append leaves the earlier records readable.
func (s *Store) AppendMAC(p string, mac capture.MAC) error {
	name := path.Base(p)

	f, err := s.fs.OpenUpdate(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.createWithRecord(name, mac)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	ok, err := s.HasEnoughSpace(RecordLen)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: need %d bytes", ErrInsufficientSpace, RecordLen)
	}

	size, err := f.Size()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if size < HeaderLen {
		return fmt.Errorf("append %s: %w", name, ErrShortHeader)
	}

	var header [HeaderLen]byte
	if _, err := f.ReadAt(header[:], 0); err != nil {
		return fmt.Errorf("read %s header: %w", name, err)
	}
	complete := (size - HeaderLen) / RecordLen
	if count := int64(binary.LittleEndian.Uint32(header[:])); count < complete {
		complete = count
	}

	if _, err := f.WriteAt(mac[:], HeaderLen+complete*RecordLen); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	binary.LittleEndian.PutUint32(header[:], uint32(complete+1)) // #nosec G115 -- bounded by the partition size
	if _, err := f.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("update %s header: %w", name, err)
	}

	return nil
}

func (s *Store) createWithRecord(name string, mac capture.MAC) error {
	needed := EncodedSize(1)
	ok, err := s.HasEnoughSpace(needed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: need %d bytes", ErrInsufficientSpace, needed)
	}

	var buf bytes.Buffer
	if _, err := EncodeRecords(&buf, []capture.MAC{mac}); err != nil {
		return err
	}

	return s.writeFile(name, buf.Bytes())
}

// ReservePath picks the path the next scan file would be saved under.
func (s *Store) ReservePath() (string, error) {
	name, err := s.uniqueName(s.now())
	if err != nil {
		return "", err
	}

	return s.pathOf(name), nil
}

// List returns every stored file in name order.
func (s *Store) List() ([]string, error) {
	entries, err := s.fs.ReadDir()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.mountPoint, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = s.pathOf(n)
	}

	return paths, nil
}

func (s *Store) Read(p string) ([]byte, error) {
	f, err := s.fs.Open(path.Base(p))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	return data, nil
}

// ReadMacs decodes a stored file, tolerating a truncated tail.
func (s *Store) ReadMacs(p string) ([]capture.MAC, error) {
	return s.readNamed(path.Base(p))
}

func (s *Store) readNamed(name string) ([]capture.MAC, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	macs, count, err := DecodeRecords(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if uint32(len(macs)) != count { // #nosec G115
		s.logger.Warn("record file truncated", "file", name, "header_count", count, "read", len(macs))
	}

	return macs, nil
}

func (s *Store) writeFile(name string, data []byte) error {
	w, err := s.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		_ = s.fs.Remove(name)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("close %s: %w", name, err)
	}

	return nil
}

func (s *Store) uniqueName(at time.Time) (string, error) {
	entries, err := s.fs.ReadDir()
	if err != nil {
		return "", fmt.Errorf("list %s: %w", s.mountPoint, err)
	}
	taken := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		taken[e.Name()] = struct{}{}
	}

	base := FilePrefix + strconv.FormatInt(at.Unix(), 10)
	name := base + FileExt
	for n := 1; ; n++ {
		if _, ok := taken[name]; !ok {
			return name, nil
		}
		name = base + "_" + strconv.Itoa(n) + FileExt
	}
}

func (s *Store) pathOf(name string) string {
	return path.Join(s.mountPoint, name)
}
