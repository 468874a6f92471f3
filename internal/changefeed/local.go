package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by a feed that has been closed.
var ErrClosed = errors.New("change feed closed")

const subscriberBuffer = 16

// LocalFeed fans change events out to in-process subscribers.
type LocalFeed struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

// NewLocalFeed returns an empty LocalFeed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[chan Event]struct{})}
}

// Publish delivers an event to every subscriber of table. A subscriber whose
// buffer is full already has a pending event, so the new one is dropped.
func (f *LocalFeed) Publish(ctx context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	ev := Event{Table: table, At: time.Now()}
	for ch := range f.subs[table] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for table.
func (f *LocalFeed) Subscribe(ctx context.Context, table string) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, subscriberBuffer)
	if f.subs[table] == nil {
		f.subs[table] = make(map[chan Event]struct{})
	}
	f.subs[table][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		f.remove(table, ch)
	}()

	return ch, nil
}

func (f *LocalFeed) remove(table string, ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[table][ch]; ok {
		delete(f.subs[table], ch)
		close(ch)
	}
}

// Drop closes every subscription channel without closing the feed, the way a
// transport disconnect would. Subscribers are expected to re-subscribe.
func (f *LocalFeed) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for table, set := range f.subs {
		for ch := range set {
			close(ch)
		}
		delete(f.subs, table)
	}
}

// Close closes all subscriptions and rejects further use.
func (f *LocalFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for table, set := range f.subs {
		for ch := range set {
			close(ch)
		}
		delete(f.subs, table)
	}
	return nil
}
