package hostcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/skobkin/macsniff/internal/notifications"
	"github.com/skobkin/macsniff/internal/persistence"
)

const defaultQuietPeriod = time.Second

type watchFlags struct {
	quiet    time.Duration
	existing bool
	noNotify bool
}

func newWatchCmd(e *env) *cobra.Command {
	f := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Archive scan files as they appear in a directory",
		Long: `Watch a directory and import every scan_*.bin file written into it.

A file is imported once it has been quiet for --quiet, so a file still being
written is not archived half-way. Subdirectories created while watching, such
as the ones receive creates, are watched too. Without an argument the
receive output directory is watched. Stop with Ctrl+C.`,
		Example: `  # Archive everything receive writes
  macsniff-host watch

  # Watch a mounted SD card and pick up files already there
  macsniff-host watch /media/card --existing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := e.dumpsDir()
			if len(args) == 1 {
				dir = args[0]
			}
			return e.watch(cmd, dir, f)
		},
	}

	cmd.Flags().DurationVar(&f.quiet, "quiet", defaultQuietPeriod, "time a file must stay unchanged before it is imported")
	cmd.Flags().BoolVar(&f.existing, "existing", false, "import scan files already in the directory")
	cmd.Flags().BoolVar(&f.noNotify, "no-notify", false, "do not show desktop notifications")

	return cmd
}

// dirWatcher collects scan file events and releases each path once it has
// been quiet long enough.
type dirWatcher struct {
	quiet time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

func newDirWatcher(quiet time.Duration) *dirWatcher {
	if quiet <= 0 {
		quiet = defaultQuietPeriod
	}

	return &dirWatcher{quiet: quiet, pending: make(map[string]time.Time)}
}

func (w *dirWatcher) touch(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = at
}

func (w *dirWatcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, path)
}

// settled returns and forgets the paths untouched since now-quiet.
func (w *dirWatcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for p, at := range w.pending {
		if now.Sub(at) >= w.quiet {
			out = append(out, p)
			delete(w.pending, p)
		}
	}

	return out
}

func (e *env) watch(cmd *cobra.Command, dir string, f *watchFlags) error {
	ctx := cmd.Context()
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	db, err := e.openArchive(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	repo := persistence.NewImportRepo(db)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := addTree(fw, dir); err != nil {
		return err
	}

	queue := persistence.NewWriterQueue(e.logMgr.Logger("archive"), 0)
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	queue.Start(workerCtx)
	defer func() {
		stopWorker()
		<-queue.Done()
	}()

	w := out(cmd)
	var outMu sync.Mutex
	source := "watch:" + dir
	enqueue := func(p string) {
		err := queue.Enqueue(filepath.Base(p), func(ctx context.Context) error {
			files, err := e.decodeFiles([]string{p})
			if err != nil || len(files) == 0 {
				return err
			}
			res, err := e.archive(ctx, repo, source, files)
			if err != nil {
				return err
			}
			if res.Files == 0 {
				return nil
			}

			outMu.Lock()
			fmt.Fprintf(w, "Archived %s: %d addresses, %d new\n", filepath.Base(p), res.Sightings, res.NewMACs)
			outMu.Unlock()
			if !f.noNotify && res.NewMACs > 0 {
				e.opts.Notifier.Send(notifications.Payload{
					Title:   "macsniff scan archived",
					Content: fmt.Sprintf("%s: %d new addresses", filepath.Base(p), res.NewMACs),
				})
			}
			return nil
		})
		if err != nil {
			e.logger.Error("queue import failed", "path", p, "error", err)
		}
	}

	if f.existing {
		if err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isScanFileName(p) {
				enqueue(p)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("sweep %s: %w", dir, err)
		}
	}

	fmt.Fprintf(w, "Watching %s\n", dir)
	e.logger.Info("watching directory", "dir", dir, "quiet", f.quiet)

	tracker := newDirWatcher(f.quiet)
	ticker := time.NewTicker(max(tracker.quiet/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Drain what already settled; unsettled files are picked up by the next --existing run.
			for _, p := range tracker.settled(time.Now().Add(tracker.quiet)) {
				enqueue(p)
			}
			drainQueue(queue, 5*time.Second)
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			e.handleWatchEvent(fw, tracker, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			e.logger.Warn("watcher error", "error", err)
		case now := <-ticker.C:
			for _, p := range tracker.settled(now) {
				enqueue(p)
			}
		}
	}
}

func (e *env) handleWatchEvent(fw *fsnotify.Watcher, tracker *dirWatcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(fw, ev.Name); err != nil {
				e.logger.Warn("watch subdirectory failed", "dir", ev.Name, "error", err)
			}
			return
		}
		if isScanFileName(ev.Name) {
			tracker.touch(ev.Name, time.Now())
		}
	case ev.Has(fsnotify.Write):
		if isScanFileName(ev.Name) {
			tracker.touch(ev.Name, time.Now())
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		tracker.forget(ev.Name)
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// drainQueue waits until every write queued so far has run. The worker is a
// single goroutine, so a marker write runs after all earlier ones.
func drainQueue(q *persistence.WriterQueue, timeout time.Duration) {
	done := make(chan struct{})
	if err := q.Enqueue("drain", func(context.Context) error {
		close(done)
		return nil
	}); err != nil {
		return
	}

	select {
	case <-done:
	case <-time.After(timeout):
	}
}
