package types

import "errors"

// Error taxonomy. Gateway errors additionally carry a transient/fatal
// classification, see the cluster package.
var (
	// ErrInvalidIntent - malformed intent input, rejected before
	// compilation and never retried
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrNotFound - operation on an unknown bundle or event id
	ErrNotFound = errors.New("not found")

	// ErrDeployFailed - transient gateway errors exhausted the retry
	// budget
	ErrDeployFailed = errors.New("deploy failed")

	// ErrQueueSaturated - observed event dropped under backpressure;
	// surfaced as a metric, not to users
	ErrQueueSaturated = errors.New("event queue saturated")
)
