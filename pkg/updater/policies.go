package updater

import (
	"github.com/librescoot/flashctl/pkg/protocol"
	"github.com/librescoot/flashctl/pkg/scheduler"
)

// enterBootPolicy accepts an EnterBoot reply and stops on anything
// else, including Nack and ErrorResponse.
func enterBootPolicy(f protocol.Frame) scheduler.ResponseAction {
	switch f.Command {
	case protocol.EnterBoot:
		return scheduler.Continue
	default:
		return scheduler.Stop
	}
}

// uploadPolicy retries a fragment on a device-reported error (the
// device is expected to re-request or re-accept the same fragment)
// and stops on anything unrecognized.
func uploadPolicy(f protocol.Frame) scheduler.ResponseAction {
	switch f.Command {
	case protocol.Ack:
		return scheduler.Continue
	case protocol.ErrorResponse:
		return scheduler.Retry
	default:
		return scheduler.Stop
	}
}

// runAppPolicy accepts an Ack and stops on anything else.
func runAppPolicy(f protocol.Frame) scheduler.ResponseAction {
	switch f.Command {
	case protocol.Ack:
		return scheduler.Continue
	default:
		return scheduler.Stop
	}
}
