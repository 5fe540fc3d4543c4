package dbasync

import "errors"

// Sentinel errors returned by this package's public API.
var (
	// ErrConfig is returned when BridgeConfig fails validation.
	ErrConfig = errors.New("dbasync: invalid configuration")

	// ErrNoWorkers names an empty worker pool. No path in this package
	// returns it: the pool always has at least one worker, and a worker
	// that cannot connect at startup makes Open fail with ErrBootstrap.
	ErrNoWorkers = errors.New("dbasync: no workers available")

	// ErrBootstrap wraps a worker connection failure at startup.
	ErrBootstrap = errors.New("dbasync: worker bootstrap failed")

	// ErrOperation names a worker-side failure executing a payload. Such
	// failures reach callers as the underlying error, which is not wrapped
	// in ErrOperation.
	ErrOperation = errors.New("dbasync: operation failed")

	// ErrTimeout names a call that exceeds its query or health-check
	// timeout. Such calls fail with the context's deadline error (or the
	// driver's cancellation error), which is not wrapped in ErrTimeout.
	ErrTimeout = errors.New("dbasync: operation timed out")

	// ErrUnknownOp names a payload the worker's dispatch table does not
	// recognize. Such payloads fail with the worker's own "unknown
	// operation" error, which is not wrapped in ErrUnknownOp.
	ErrUnknownOp = errors.New("dbasync: unknown operation")
)
