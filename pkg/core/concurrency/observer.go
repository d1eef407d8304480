package concurrency

import "time"

// Observer receives pool events, typically to feed metrics.
// Methods are called from submitter and worker goroutines and must be safe
// for concurrent use. ItemSubmitted, ItemStarted and ItemsDiscarded run with
// the pool lock held, so the pending values they see are ordered the same way
// as the queue changes; they must be quick and must not call back into the pool.
type Observer interface {
	// ItemSubmitted is called after an item was queued; pending is the queue depth after the push
	ItemSubmitted(pending int)

	// ItemRejected is called when Submit returns ErrPoolStopped
	ItemRejected()

	// ItemStarted is called when a worker claims an item; wait is the time spent queued
	// and pending the queue depth after the pop
	ItemStarted(wait time.Duration, pending int)

	// ItemFinished is called after the item returned or panicked (err is a *PanicError)
	ItemFinished(elapsed time.Duration, err error)

	// ItemsDiscarded is called when queued items are dropped unexecuted
	ItemsDiscarded(n int)
}

type nopObserver struct{}

func (nopObserver) ItemSubmitted(int) {}
func (nopObserver) ItemRejected() {}
func (nopObserver) ItemStarted(time.Duration, int) {}
func (nopObserver) ItemFinished(time.Duration, error) {}
func (nopObserver) ItemsDiscarded(int) {}
