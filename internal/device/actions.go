package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/skobkin/macsniff/internal/capture"
	"github.com/skobkin/macsniff/internal/display"
	"github.com/skobkin/macsniff/internal/dump"
	"github.com/skobkin/macsniff/internal/events"
	"github.com/skobkin/macsniff/internal/scan"
	"github.com/skobkin/macsniff/internal/storage"
)

// withStorage mounts the store around fn. Unmount is always attempted and its
// failure is reported alongside fn's.
func (d *Device) withStorage(ctx context.Context, fn func() error) (err error) {
	if err := d.store.Mount(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := d.store.Unmount(); uerr != nil {
			err = errors.Join(err, uerr)
		}
	}()

	return fn()
}

func (d *Device) scanAndSave(ctx context.Context) error {
	return d.withStorage(ctx, func() error {
		var live *liveFile
		if d.cfg.LiveAppend {
			p, err := d.store.ReservePath()
			if err != nil {
				return err
			}
			live = &liveFile{d: d, path: p}
		}

		d.discardQueued("before scan")
		if err := d.startRadio(); err != nil {
			return err
		}

		dedup := scan.NewDeduplicator(d.logger.With("action", "scan"), d.cfg.Scan, d.ingest, statusRenderer{d: d}, d.clock)
		if live != nil {
			dedup.OnNew(live.add)
		}
		// Actions are not cancellable: presses are consumed and dropped.
		dedup.OnTick(func() error {
			_, err := d.pollButton()
			return err
		})

		res, scanErr := dedup.Run(ctx)
		stopErr := d.stopRadio()
		// Addresses left over past the budget belong to no session.
		d.discardQueued("after scan")
		if stopErr != nil {
			return errors.Join(scanErr, stopErr)
		}

		switch {
		case scanErr == nil:
		case errors.Is(scanErr, scan.ErrSourceClosed):
			// The partial set is still worth keeping; the error ends the cycle.
			d.logger.Warn("scan ended early, saving partial result", "unique", res.Set.Len())
		default:
			return scanErr
		}

		if live != nil && live.records > 0 {
			live.finish(res.Set.Len())
			return scanErr
		}
		if err := d.save(res.Set); err != nil {
			return errors.Join(scanErr, err)
		}

		return scanErr
	})
}

func (d *Device) save(set scan.MacSet) error {
	macs := set.Sorted()
	needed := storage.EncodedSize(len(macs))

	p, err := d.store.Save(macs)
	if errors.Is(err, storage.ErrInsufficientSpace) {
		d.logger.Warn("not enough space for scan", "needed", needed, "unique", len(macs))
		d.showMessage("No space", fmt.Sprintf("need %s", humanize.IBytes(needed)), fmt.Sprintf("%d MACs lost", len(macs)))
		return nil
	}
	if err != nil {
		return err
	}

	d.pub.Publish(events.TopicStorageSaved, events.StorageSaved{
		Path:    p,
		Records: len(macs),
		Bytes:   int64(needed), // #nosec G115
	})
	if err := display.ShowSaved(d.display, len(macs), p); err != nil {
		d.logger.Warn("render saved screen failed", "error", err)
	}

	return nil
}

func (d *Device) reportSize(ctx context.Context) error {
	return d.withStorage(ctx, func() error {
		total, used, err := d.store.FreeSpace()
		if err != nil {
			return err
		}
		d.logger.Info("storage space", "total", humanize.IBytes(total), "used", humanize.IBytes(used))
		d.pub.Publish(events.TopicStorageSpace, events.StorageSpace{Total: total, Used: used})

		if err := display.ShowSpace(d.display, total, used); err != nil {
			d.logger.Warn("render space screen failed", "error", err)
		}

		return nil
	})
}

func (d *Device) dumpAll(ctx context.Context) error {
	return d.withStorage(ctx, func() error {
		d.showMessage("Dumping...")

		w := dump.NewWriter(d.dumpOut, d.cfg.Dump, d.clock, d.pub, d.logger.With("action", "dump"))
		sum, err := w.Dump(ctx, d.store)
		if err != nil {
			d.showMessage("Dump failed")
			return err
		}

		if err := display.ShowDumpResult(d.display, sum.Files, sum.TotalBytes); err != nil {
			d.logger.Warn("render dump screen failed", "error", err)
		}

		return nil
	})
}

func (d *Device) discardQueued(when string) {
	if n := d.ingest.Drain(); n > 0 {
		d.logger.Debug("discarded queued addresses", "when", when, "count", n)
	}
}

func (d *Device) startRadio() error {
	if err := d.radio.RegisterReceiveCallback(d.ingest.HandleFrame); err != nil {
		return fmt.Errorf("register receive callback: %w", err)
	}
	if err := d.radio.SetPromiscuous(true); err != nil {
		return fmt.Errorf("enable promiscuous mode: %w", err)
	}
	if err := d.radio.Start(); err != nil {
		return fmt.Errorf("start radio: %w", err)
	}
	d.radioOn = true

	return nil
}

func (d *Device) stopRadio() error {
	if !d.radioOn {
		return nil
	}
	d.radioOn = false
	_ = d.radio.SetPromiscuous(false)
	if err := d.radio.Stop(); err != nil {
		return fmt.Errorf("stop radio: %w", err)
	}

	return nil
}

// liveFile appends addresses to one scan file while the session runs. The
// first failed append stops it; what was written stays on flash.
type liveFile struct {
	d       *Device
	path    string
	records int
	err     error
}

func (l *liveFile) add(mac capture.MAC) error {
	if l.err != nil {
		return nil
	}
	if err := l.d.store.AppendMAC(l.path, mac); err != nil {
		l.err = err
		l.d.logger.Warn("live append stopped", "path", l.path, "records", l.records, "error", err)
		return nil
	}
	l.records++

	return nil
}

func (l *liveFile) finish(unique int) {
	d := l.d
	d.pub.Publish(events.TopicStorageSaved, events.StorageSaved{
		Path:    l.path,
		Records: l.records,
		Bytes:   int64(storage.EncodedSize(l.records)), // #nosec G115
	})
	if l.err != nil {
		d.showMessage("No space", fmt.Sprintf("%d of %d kept", l.records, unique))
		return
	}
	if err := display.ShowSaved(d.display, l.records, l.path); err != nil {
		d.logger.Warn("render saved screen failed", "error", err)
	}
}

// statusRenderer forwards scan events to the bus and draws the progress screen.
type statusRenderer struct {
	d *Device
}

func (r statusRenderer) Publish(topic string, msg any) {
	if st, ok := msg.(events.ScanStatus); ok && topic == events.TopicScanStatus {
		if err := display.ShowScanStatus(r.d.display, st); err != nil {
			r.d.logger.Warn("render scan status failed", "error", err)
		}
	}
	r.d.pub.Publish(topic, msg)
}
