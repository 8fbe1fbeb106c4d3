// Package scheduler sequences a FIFO queue of CommandItems against a
// transport, applying each item's response policy to decide whether to
// continue, re-enqueue for a schedule-level retry, stop the run, or
// skip the response.
package scheduler

import (
	"github.com/librescoot/flashctl/pkg/protocol"
	"github.com/librescoot/flashctl/pkg/transport"
)

// ResponseAction is the outcome a ResponsePolicy selects after seeing a
// received frame.
type ResponseAction int

const (
	// Continue appends the frame to the result and moves to the next
	// item.
	Continue ResponseAction = iota
	// Retry re-enqueues a copy of the item with its schedule-retry
	// budget decremented, provided the original budget was positive.
	Retry
	// Stop records the latest device error as the result's failure
	// and clears the queue.
	Stop
	// Skip moves to the next item without recording the response.
	Skip
)

// ResponsePolicy is a pure function from a received frame to the
// action the scheduler should take.
type ResponsePolicy func(protocol.Frame) ResponseAction

// defaultScheduleRetryBudget is applied to a CommandItem whose
// ScheduleRetryBudget is left nil, distinct from an explicit budget
// of 0.
const defaultScheduleRetryBudget = 3

// CommandItem is one scheduled send-and-wait step.
type CommandItem struct {
	Command             protocol.CommandKind
	Payload             []byte
	Expected            protocol.CommandKind
	Description         string
	TimeoutMS           *int           // per-item transport timeout override
	RetryCount          *int           // per-item transport retry-count override
	ScheduleRetryBudget *int           // nil means "use the default of 3"
	Policy              ResponsePolicy // nil means Continue unconditionally
}

// effectiveScheduleRetryBudget returns the item's schedule-retry
// budget, applying the default when unset.
func (c CommandItem) effectiveScheduleRetryBudget() int {
	if c.ScheduleRetryBudget == nil {
		return defaultScheduleRetryBudget
	}
	return *c.ScheduleRetryBudget
}

func (c CommandItem) effectiveTransportConfig(base transport.Config) transport.Config {
	return base.WithOverrides(c.TimeoutMS, c.RetryCount)
}

func (c CommandItem) policy() ResponsePolicy {
	if c.Policy == nil {
		return func(protocol.Frame) ResponseAction { return Continue }
	}
	return c.Policy
}

// retryCopy builds the CommandItem re-enqueued for a Retry outcome:
// same outbound kind, payload, expected kind, and overrides, with the
// schedule-retry budget decremented and the description marked.
func (c CommandItem) retryCopy() CommandItem {
	budget := c.effectiveScheduleRetryBudget() - 1
	out := c
	out.ScheduleRetryBudget = &budget
	out.Description = c.Description + " (retry)"
	return out
}

// Result is produced once per scheduler run.
type Result struct {
	Success       bool
	ErrorSummary  string
	Frames        []protocol.Frame
	ExecutedCount int
	TotalCount    int
}
