package changefeed

import (
	"context"
	"time"
)

// Event says that a table changed. No row payload is carried; consumers re-read.
type Event struct {
	Table string    `json:"table"`
	At    time.Time `json:"at"`
}

// Feed publishes and delivers per-table change events.
type Feed interface {
	Publish(ctx context.Context, table string) error
	// Subscribe delivers events for table until ctx is cancelled or the
	// transport drops, at which point the returned channel is closed.
	Subscribe(ctx context.Context, table string) (<-chan Event, error)
	Close() error
}
