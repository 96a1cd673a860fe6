package events

import (
	"time"

	"github.com/skobkin/macsniff/internal/button"
	"github.com/skobkin/macsniff/internal/menu"
)

// Phase names the stage the device loop is in.
type Phase string

const (
	PhaseBoot     Phase = "boot"
	PhaseMenu     Phase = "menu"
	PhaseScan     Phase = "scan"
	PhaseDump     Phase = "dump"
	PhaseSize     Phase = "size"
	PhaseSleeping Phase = "sleeping"
)

// PhaseChange is published whenever the device loop enters a new phase.
type PhaseChange struct {
	Phase Phase
	At    time.Time
}

// ButtonEvent is a classified gesture consumed by the device loop.
type ButtonEvent struct {
	Event button.Event
	At    time.Time
}

// MenuChanged carries the rows as they were rendered.
type MenuChanged struct {
	Items []menu.Item
}

// ScanStatus is the periodic progress snapshot of a running scan session.
type ScanStatus struct {
	SecondsRemaining int
	UniqueCount      int
	Queued           int
}

// ScanFinished closes a scan session. Err is set when the capture source went away early.
type ScanFinished struct {
	UniqueCount int
	Elapsed     time.Duration
	Err         string
}

// StorageSaved reports a persisted scan file.
type StorageSaved struct {
	Path    string
	Records int
	Bytes   int64
}

// StorageSpace is the filesystem usage reported by the size action.
type StorageSpace struct {
	Total uint64
	Used  uint64
}

// DumpLine mirrors one protocol line written to the host channel.
type DumpLine struct {
	Line string
}

// DumpFinished summarises a dump session.
type DumpFinished struct {
	Files      int
	Skipped    int
	TotalBytes int64
}

// DeviceFailure reports an error that ended the current action.
type DeviceFailure struct {
	Err   string
	Fatal bool
}
