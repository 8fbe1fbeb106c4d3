package scheduler

import "errors"

// ErrQueueBusy is returned by Start when a run is already in progress;
// the scheduler is not re-entrant.
var ErrQueueBusy = errors.New("scheduler: a run is already in progress")

// communicationLostSummary is the Result.ErrorSummary recorded when the
// transport exhausts its retry budget without a reply.
const communicationLostSummary = "communication lost with target device"

// deviceErrorFallbackSummary is used when a Stop action fires but no
// device-error event has been observed yet (e.g. the policy stopped on
// an unexpected-but-known frame kind rather than on ErrorResponse).
const deviceErrorFallbackSummary = "device reported an error"
