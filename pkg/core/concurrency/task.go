package concurrency

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkItem is a unit of work executed by the pool.
// It takes no arguments and returns nothing; the pool does not inspect it.
type WorkItem func()

// queuedItem is a WorkItem plus the bookkeeping the dispatch loop needs.
// It lives in the queue until exactly one worker pops it.
type queuedItem struct {
	id         uuid.UUID
	fn         WorkItem
	enqueuedAt time.Time
}

// DrainPolicy decides what happens to queued items when the pool shuts down
type DrainPolicy int

const (
	// DrainAll lets workers consume every queued item before exiting
	DrainAll DrainPolicy = iota

	// DrainNone discards unclaimed items as soon as shutdown begins.
	// Items already executing still run to completion.
	DrainNone
)

// String returns the canonical name used in configuration files
func (p DrainPolicy) String() string {
	switch p {
	case DrainAll:
		return "drain"
	case DrainNone:
		return "none"
	default:
		return fmt.Sprintf("DrainPolicy(%d)", int(p))
	}
}

// ParseDrainPolicy parses a policy name. The empty string means DrainAll.
func ParseDrainPolicy(s string) (DrainPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drain", "all", "drain-all":
		return DrainAll, nil
	case "none", "discard", "drain-none":
		return DrainNone, nil
	default:
		return DrainAll, fmt.Errorf("%w: unknown drain policy %q", ErrInvalidConfiguration, s)
	}
}

func (p DrainPolicy) valid() bool {
	return p == DrainAll || p == DrainNone
}
