package concurrency

import (
	"context"
)

// WorkerPool runs submitted work items on a fixed set of worker goroutines.
// Items are dequeued in submission order; with more than one worker their
// effects may interleave.
type WorkerPool interface {
	// Submit appends item to the queue and wakes one idle worker.
	// It never waits for a worker to become free and may be called from
	// inside a running item. Returns ErrPoolStopped once shutdown has begun.
	Submit(item WorkItem) error

	// Pending returns the number of queued, unclaimed items.
	// The value is a snapshot and is stale as soon as it is returned.
	Pending() int

	// Workers returns the number of workers fixed at construction
	Workers() int

	// CancelPending drops every queued item that no worker has claimed yet
	// and returns how many were dropped. The pool keeps running.
	CancelPending() int

	// Shutdown stops the pool and blocks until every worker has exited.
	// It is idempotent. Calling it from a work item of the same pool deadlocks.
	Shutdown()

	// ShutdownContext is Shutdown with a bounded wait.
	// On timeout the workers keep draining in the background.
	ShutdownContext(ctx context.Context) error

	// IsRunning returns true until shutdown begins
	IsRunning() bool

	// Stats returns a point-in-time snapshot of the pool counters
	Stats() PoolStats

	// ID returns the unique identifier assigned at construction
	ID() string
}

// PoolStats provides statistics about pool activity
type PoolStats struct {
	ID          string
	Name        string
	Workers     int   // Configured worker count
	LiveWorkers int   // Workers that have not exited yet
	Idle        int   // Workers parked waiting for work
	Pending     int   // Queued, unclaimed items
	Active      int   // Items currently executing
	Submitted   int64 // Items accepted by Submit
	Completed   int64 // Items that returned normally
	Panicked    int64 // Items that panicked
	Rejected    int64 // Submit calls refused after shutdown
	Discarded   int64 // Items dropped unexecuted
}
