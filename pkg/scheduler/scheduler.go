package scheduler

import (
	"sync"

	"github.com/librescoot/flashctl/pkg/protocol"
	"github.com/librescoot/flashctl/pkg/transport"
)

// ProgressEvent reports where a run currently stands: the item about
// to be dispatched, its 0-based position, and the (possibly still
// growing, as retries enqueue) total item count.
type ProgressEvent struct {
	Index int
	Total int
	Item  CommandItem
}

// Scheduler runs a FIFO queue of CommandItems against a transport,
// applying each item's response policy to decide how to continue. It
// is not re-entrant: Start fails while a run is already in progress.
type Scheduler struct {
	transport *transport.Transport
	logger    Logger

	mu            sync.Mutex
	queue         []CommandItem
	running       bool
	stopRequested bool

	errMu           sync.Mutex
	lastDeviceError string

	progress chan ProgressEvent
	onEvent  func(transport.Event)

	wg sync.WaitGroup
}

// New creates a Scheduler driving t. onEvent, if non-nil, is called
// for every transport.Event observed while forwarding them to track
// the latest device-error message; this makes Scheduler the sole
// consumer of t.Events() so a caller that also wants those events
// (the orchestrator) must go through onEvent rather than reading the
// channel itself.
func New(t *transport.Transport, logger Logger, onEvent func(transport.Event)) *Scheduler {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &Scheduler{
		transport: t,
		logger:    logger,
		progress:  make(chan ProgressEvent, 64),
		onEvent:   onEvent,
	}
	s.wg.Add(1)
	go s.forwardTransportEvents()
	return s
}

func (s *Scheduler) forwardTransportEvents() {
	defer s.wg.Done()
	for ev := range s.transport.Events() {
		if ev.Kind == transport.EventDeviceError {
			s.errMu.Lock()
			s.lastDeviceError = ev.Message
			s.errMu.Unlock()
		}
		if s.onEvent != nil {
			s.onEvent(ev)
		}
	}
}

// Progress returns the channel of per-item progress events emitted
// during Start.
func (s *Scheduler) Progress() <-chan ProgressEvent { return s.progress }

// Submit appends items to the queue. It fails with ErrQueueBusy while
// a run is in progress; external mutation of the queue mid-run is not
// permitted.
func (s *Scheduler) Submit(items ...CommandItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrQueueBusy
	}
	s.queue = append(s.queue, items...)
	return nil
}

// Stop requests that the current run halt. Clearing the queue is
// immediate; terminating an in-flight SendAndAwait is not — the run
// loop only observes the stop request between items.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopRequested = true
	s.queue = nil
	s.mu.Unlock()
}

// QueueLen returns the number of items currently queued.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) latestDeviceError() string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.lastDeviceError == "" {
		return deviceErrorFallbackSummary
	}
	return s.lastDeviceError
}

// Start runs the queue to completion (or failure, or a stop request).
// It pops the head under the lock, emits a progress event, calls
// SendAndAwait with the item's effective transport config, then
// dispatches on the item's response policy: Continue appends the
// frame and proceeds; Retry re-enqueues a decremented copy when its
// original budget was positive, else is treated as Skip; Stop records
// the latest device error and halts; Skip proceeds without recording
// the frame.
func (s *Scheduler) Start() (Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Result{}, ErrQueueBusy
	}
	s.running = true
	s.stopRequested = false
	total := len(s.queue)
	s.mu.Unlock()

	result := Result{Success: true, TotalCount: total}

	for {
		s.mu.Lock()
		if s.stopRequested {
			s.queue = nil
			s.running = false
			s.mu.Unlock()
			result.Success = false
			result.ErrorSummary = "run stopped"
			return result, nil
		}
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return result, nil
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		total = result.ExecutedCount + 1 + len(s.queue)
		index := result.ExecutedCount
		s.mu.Unlock()

		result.TotalCount = total
		s.emitProgress(ProgressEvent{Index: index, Total: total, Item: item})

		cfg := item.effectiveTransportConfig(s.transport.DefaultConfig())
		frame, err := s.transport.SendAndAwait(item.Command, item.Payload, item.Expected, cfg)
		if err != nil {
			s.mu.Lock()
			s.queue = nil
			s.running = false
			s.mu.Unlock()
			result.Success = false
			result.ErrorSummary = communicationLostSummary
			return result, nil
		}

		switch item.policy()(frame) {
		case Continue:
			result.Frames = append(result.Frames, frame)
			result.ExecutedCount++
			s.logDeviceInfoIfEnterBoot(frame)

		case Retry:
			result.ExecutedCount++
			budget := item.effectiveScheduleRetryBudget()
			if budget > 0 {
				retryItem := item.retryCopy()
				s.mu.Lock()
				s.queue = append(s.queue, retryItem)
				newTotal := result.ExecutedCount + len(s.queue)
				s.mu.Unlock()
				result.TotalCount = newTotal
			} else {
				s.logger.Printf("scheduler: schedule-retry budget exhausted for %q", item.Description)
			}

		case Stop:
			result.Frames = append(result.Frames, frame)
			result.ExecutedCount++
			result.ErrorSummary = s.latestDeviceError()
			s.mu.Lock()
			s.queue = nil
			s.running = false
			s.mu.Unlock()
			result.Success = false
			return result, nil

		case Skip:
			result.ExecutedCount++
		}
	}
}

func (s *Scheduler) logDeviceInfoIfEnterBoot(frame protocol.Frame) {
	if frame.Command != protocol.EnterBoot {
		return
	}
	info, err := protocol.DecodeDeviceInfo(frame.Payload)
	if err != nil {
		s.logger.Printf("scheduler: failed to decode device info: %v", err)
		return
	}
	s.logger.Printf("scheduler: device info model=%s flash=0x%08X load_addr=0x%08X frag_size=%d boot_version=%s",
		info.Model, info.FlashSize, info.AppLoadAddress, info.FragmentSize, info.BootloaderVersion)
}

func (s *Scheduler) emitProgress(ev ProgressEvent) {
	select {
	case s.progress <- ev:
	default:
		s.logger.Printf("scheduler: progress channel full, dropping event for %q", ev.Item.Description)
	}
}
