package transport

import (
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/librescoot/flashctl/pkg/protocol"
)

// pollInterval bounds how often SendAndAwait checks the mailbox while
// waiting for a reply, keeping the busy-wait granularity fine enough
// that a reply is picked up almost immediately after arrival.
const pollInterval = 10 * time.Millisecond

// interAttemptPause is the pause between transport-level retry
// attempts inside SendAndAwait.
const interAttemptPause = 100 * time.Millisecond

// Transport owns the byte stream and serves a single outstanding
// SendAndAwait call at a time. A dedicated reader goroutine drains the
// stream and publishes decoded frames to a single-slot mailbox;
// publishing overwrites any unread frame.
type Transport struct {
	port   Port
	cfg    Config
	logger Logger

	mu      sync.Mutex
	mailbox *protocol.Frame

	sendMu sync.Mutex

	events chan Event

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New starts the reader goroutine against port and returns a ready
// Transport. cfg is what DefaultConfig returns; SendAndAwait itself
// uses only the Config passed to each call.
func New(port Port, cfg Config, logger Logger) *Transport {
	if logger == nil {
		logger = nopLogger{}
	}
	t := &Transport{
		port:   port,
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, 64),
		stopCh: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t
}

// DefaultConfig returns the Config this Transport was constructed with.
func (t *Transport) DefaultConfig() Config { return t.cfg }

// Events returns the channel of log/device-error signals. It is closed
// once Close completes and the reader goroutine has exited.
func (t *Transport) Events() <-chan Event { return t.events }

// Close stops the reader goroutine and closes the underlying port.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.port.Close()
		t.wg.Wait()
		close(t.events)
	})
	return err
}

func (t *Transport) readLoop() {
	defer t.wg.Done()

	assembler := newFrameAssembler(t.logger)
	buf := make([]byte, 1)

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				continue
			}
			select {
			case <-t.stopCh:
				return
			default:
			}
			time.Sleep(pollInterval)
			continue
		}
		if n == 0 {
			continue
		}

		if frame, ok := assembler.feed(buf[0]); ok {
			t.publish(frame)
		}
	}
}

func (t *Transport) publish(f protocol.Frame) {
	t.mu.Lock()
	t.mailbox = &f
	t.mu.Unlock()

	if f.Command == protocol.ErrorResponse {
		t.emit(Event{Kind: EventDeviceError, Message: decodeErrorPayload(f.Payload)})
	}
}

func (t *Transport) clearMailbox() {
	t.mu.Lock()
	t.mailbox = nil
	t.mu.Unlock()
}

func (t *Transport) takeMailbox() (protocol.Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mailbox == nil {
		return protocol.Frame{}, false
	}
	f := *t.mailbox
	t.mailbox = nil
	return f, true
}

func (t *Transport) emit(e Event) {
	select {
	case t.events <- e:
	default:
		t.logger.Printf("transport: event channel full, dropping %v", e.Kind)
	}
}

// SendAndAwait serializes frame, appends cfg's line ending, writes it,
// then polls the mailbox until a frame of kind expected or
// ErrorResponse arrives, the configured timeout elapses (triggering a
// transport-level retry), or the retry budget is exhausted.
func (t *Transport) SendAndAwait(cmd protocol.CommandKind, payload []byte, expected protocol.CommandKind, cfg Config) (protocol.Frame, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	attempts := cfg.RetryCount
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		t.clearMailbox()

		frame := protocol.Frame{Command: cmd, Payload: payload}
		data, err := frame.Encode()
		if err != nil {
			return protocol.Frame{}, err
		}
		data = append(data, cfg.LineEnding...)

		if _, err := t.port.Write(data); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrClosed, err)
			if attempt < attempts-1 {
				time.Sleep(interAttemptPause)
				continue
			}
			return protocol.Frame{}, lastErr
		}

		reply, ok := t.waitForReply(expected, cfg)
		if ok {
			return reply, nil
		}

		lastErr = ErrTimeout
		if attempt < attempts-1 {
			time.Sleep(interAttemptPause)
		}
	}

	return protocol.Frame{}, lastErr
}

func (t *Transport) waitForReply(expected protocol.CommandKind, cfg Config) (protocol.Frame, bool) {
	deadline := time.Now().Add(time.Duration(cfg.TimeoutMS) * time.Millisecond)

	for {
		if frame, ok := t.takeMailbox(); ok {
			if frame.Command == expected || frame.Command == protocol.ErrorResponse {
				return frame, true
			}
			t.logger.Printf("transport: discarding unexpected reply kind %s while awaiting %s", frame.Command, expected)
			continue
		}

		if !time.Now().Before(deadline) {
			return protocol.Frame{}, false
		}
		time.Sleep(pollInterval)
	}
}

func decodeErrorPayload(payload []byte) string {
	if len(payload) == 0 {
		return "(device reported an error with no detail)"
	}
	if !utf8.Valid(payload) {
		return "(device error payload was not valid UTF-8)"
	}
	return string(payload)
}
