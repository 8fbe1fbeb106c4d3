package updater

import "github.com/librescoot/flashctl/pkg/firmware"

// EventKind tags the union carried by Event.
type EventKind int

const (
	EventLog EventKind = iota
	EventError
	EventStatusChange
	EventProgress
	EventFirmwareLoaded
)

// Event is the single channel through which the orchestrator reports
// everything a caller (CLI, telemetry mirror) needs to observe: plain
// log lines, error lines, BootStatus transitions, per-item progress,
// and newly loaded firmware images.
type Event struct {
	Kind EventKind

	Message string // EventLog, EventError

	Status BootStatus // EventStatusChange

	ProgressIndex int     // EventProgress
	ProgressTotal int     // EventProgress
	ProgressDesc  string  // EventProgress
	ProgressPct   float64 // EventProgress

	Image *firmware.Image // EventFirmwareLoaded
}
