package telemetry

import "github.com/librescoot/flashctl/pkg/updater"

// Logger is the minimal sink Mirror uses for its own diagnostic log
// lines, independent of whatever the caller does with Updater's own
// Event stream.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// Mirror consumes an Updater's Event stream and republishes the
// subset of it fleet tooling cares about — status, progress, the last
// error message, and firmware identity — to Redis. Log events are
// ignored.
type Mirror struct {
	client *Client
	logger Logger
}

// NewMirror wraps client for use as an event sink.
func NewMirror(client *Client, logger Logger) *Mirror {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Mirror{client: client, logger: logger}
}

// Run consumes events until the channel closes. It is meant to be
// launched in its own goroutine alongside the Updater that produces
// events.
func (m *Mirror) Run(events <-chan updater.Event) {
	for ev := range events {
		if err := m.handle(ev); err != nil {
			m.logger.Printf("telemetry: failed to mirror event: %v", err)
		}
	}
}

func (m *Mirror) handle(ev updater.Event) error {
	switch ev.Kind {
	case updater.EventStatusChange:
		return m.client.WriteAndPublishString(FieldBootStatus, ev.Status.String())
	case updater.EventProgress:
		if err := m.client.WriteAndPublishFloat(FieldProgressPct, ev.ProgressPct); err != nil {
			return err
		}
		return m.client.WriteAndPublishString(FieldProgressDesc, ev.ProgressDesc)
	case updater.EventError:
		return m.client.WriteAndPublishString(FieldLastError, ev.Message)
	case updater.EventFirmwareLoaded:
		if ev.Image == nil {
			return nil
		}
		if err := m.client.WriteAndPublishString(FieldFirmwareName, ev.Image.Name); err != nil {
			return err
		}
		return m.client.WriteAndPublishString(FieldFirmwareDigest, ev.Image.Digest)
	default:
		return nil
	}
}
