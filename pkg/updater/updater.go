// Package updater composes a firmware store, a transport, and a
// scheduler into the three workflows an operator actually drives a
// bootloader update with, and mirrors progress through a single
// fan-out Event channel.
package updater

import (
	"fmt"
	"sync"

	"github.com/librescoot/flashctl/pkg/firmware"
	"github.com/librescoot/flashctl/pkg/protocol"
	"github.com/librescoot/flashctl/pkg/scheduler"
	"github.com/librescoot/flashctl/pkg/transport"
)

// Updater orchestrates EnterBoot, UploadAll, and RunApp against a
// single target, exposing a unified Event stream and a coarse-grained
// BootStatus for callers (a CLI, a telemetry mirror) to observe.
type Updater struct {
	store     *firmware.Store
	transport *transport.Transport
	scheduler *scheduler.Scheduler
	logger    Logger

	statusMu sync.Mutex
	status   BootStatus

	runMu sync.Mutex

	events chan Event
}

// New builds an Updater driving port with cfg as the transport's
// default configuration. It owns the transport and scheduler it
// creates; callers should not construct those themselves.
func New(port transport.Port, cfg transport.Config, logger Logger) *Updater {
	if logger == nil {
		logger = nopLogger{}
	}
	u := &Updater{
		store:  firmware.NewStore(nil),
		logger: logger,
		status: Disconnected,
		events: make(chan Event, 128),
	}

	u.transport = transport.New(port, cfg, transportLoggerAdapter{u})
	u.scheduler = scheduler.New(u.transport, schedulerLoggerAdapter{u}, u.onTransportEvent)

	go u.forwardProgress()

	return u
}

// Events returns the channel of log, error, status, progress, and
// firmware-loaded events. It is never closed by Close, since a
// transport.Event arriving after Close's teardown could still need to
// be dropped silently rather than panic on a closed channel send.
func (u *Updater) Events() <-chan Event { return u.events }

// Close releases the underlying transport.
func (u *Updater) Close() error {
	return u.transport.Close()
}

// Stop requests that the current workflow run halt cooperatively: the
// scheduler clears its queue immediately, but an in-flight
// SendAndAwait still has to return on its own before the run loop
// observes the stop request. Safe to call whether or not a workflow
// is currently running.
func (u *Updater) Stop() {
	u.scheduler.Stop()
}

// Status returns the current BootStatus.
func (u *Updater) Status() BootStatus {
	u.statusMu.Lock()
	defer u.statusMu.Unlock()
	return u.status
}

// setStatus transitions BootStatus, dropping same-state writes so
// transitions are idempotent and so callers mirroring status (e.g. a
// Redis publish) never see duplicate no-op updates.
func (u *Updater) setStatus(s BootStatus) {
	u.statusMu.Lock()
	changed := u.status != s
	u.status = s
	u.statusMu.Unlock()
	if changed {
		u.emit(Event{Kind: EventStatusChange, Status: s})
	}
}

// LoadFirmware reads and validates a firmware image for later upload.
func (u *Updater) LoadFirmware(path string, fragmentSize int, loadAddress uint32) (*firmware.Image, error) {
	img, err := u.store.Load(path, fragmentSize, loadAddress)
	if err != nil {
		u.emit(Event{Kind: EventError, Message: err.Error()})
		return nil, err
	}
	u.emit(Event{Kind: EventFirmwareLoaded, Image: img})
	return img, nil
}

// EnterBoot sends the boot-entry request and waits for the device to
// confirm boot mode.
func (u *Updater) EnterBoot() (scheduler.Result, error) {
	item := scheduler.CommandItem{
		Command:     protocol.EnterBoot,
		Expected:    protocol.EnterBoot,
		Description: "enter boot mode",
		Policy:      enterBootPolicy,
	}
	return u.runWorkflow(item)
}

// UploadAll enqueues one Upload command per fragment of the currently
// loaded image, each with a single transport-level attempt
// (RetryCount=1, no transport-level retry) and a schedule-retry budget
// of 3, and runs them to completion.
func (u *Updater) UploadAll() (scheduler.Result, error) {
	img := u.store.Image()
	if img == nil {
		return scheduler.Result{}, ErrNoImageLoaded
	}

	count := img.FragmentCount()
	items := make([]scheduler.CommandItem, 0, count)
	transportRetry := 1
	scheduleRetry := 3

	for i := 0; i < count; i++ {
		payload, err := img.BuildFragment(i)
		if err != nil {
			return scheduler.Result{}, err
		}
		items = append(items, scheduler.CommandItem{
			Command:             protocol.Upload,
			Payload:             payload,
			Expected:            protocol.Ack,
			Description:         fmt.Sprintf("%d/%d", i+1, count),
			RetryCount:          &transportRetry,
			ScheduleRetryBudget: &scheduleRetry,
			Policy:              uploadPolicy,
		})
	}

	return u.runWorkflow(items...)
}

// RunApp tells the device to hand off execution to the freshly
// uploaded application.
func (u *Updater) RunApp() (scheduler.Result, error) {
	item := scheduler.CommandItem{
		Command:     protocol.RunApp,
		Expected:    protocol.Ack,
		Description: "run application",
		Policy:      runAppPolicy,
	}
	return u.runWorkflow(item)
}

// runWorkflow submits items to the scheduler and runs them,
// bracketing the run with the Transfer/Completed/Error BootStatus
// transitions. It fails fast with ErrRunInProgress rather than
// blocking when another workflow is already running.
func (u *Updater) runWorkflow(items ...scheduler.CommandItem) (scheduler.Result, error) {
	if !u.runMu.TryLock() {
		return scheduler.Result{}, ErrRunInProgress
	}
	defer u.runMu.Unlock()

	if err := u.scheduler.Submit(items...); err != nil {
		return scheduler.Result{}, err
	}

	u.setStatus(Transfer)
	result, err := u.scheduler.Start()
	if err != nil {
		u.setStatus(Error)
		return result, err
	}
	if !result.Success {
		u.setStatus(Error)
		u.emit(Event{Kind: EventError, Message: result.ErrorSummary})
		return result, nil
	}
	u.setStatus(Completed)
	return result, nil
}

func (u *Updater) forwardProgress() {
	for p := range u.scheduler.Progress() {
		pct := 0.0
		if p.Total > 0 {
			pct = float64(p.Index) / float64(p.Total) * 100
		}
		u.emit(Event{
			Kind:          EventProgress,
			ProgressIndex: p.Index,
			ProgressTotal: p.Total,
			ProgressDesc:  p.Item.Description,
			ProgressPct:   pct,
		})
	}
}

func (u *Updater) onTransportEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventDeviceError:
		u.emit(Event{Kind: EventError, Message: ev.Message})
	case transport.EventLog:
		u.emit(Event{Kind: EventLog, Message: ev.Message})
	}
}

func (u *Updater) emit(e Event) {
	select {
	case u.events <- e:
	default:
		u.logger.Printf("updater: event channel full, dropping event kind %d", e.Kind)
	}
}

// transportLoggerAdapter routes the transport's internal diagnostic
// log lines into the same Event stream as everything else.
type transportLoggerAdapter struct{ u *Updater }

func (a transportLoggerAdapter) Printf(format string, args ...interface{}) {
	a.u.emit(Event{Kind: EventLog, Message: fmt.Sprintf(format, args...)})
}

type schedulerLoggerAdapter struct{ u *Updater }

func (a schedulerLoggerAdapter) Printf(format string, args ...interface{}) {
	a.u.emit(Event{Kind: EventLog, Message: fmt.Sprintf(format, args...)})
}
