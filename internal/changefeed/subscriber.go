package changefeed

import (
	"context"
	"sync"
	"time"

	"duochat/internal/logger"
)

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Subscriber watches several tables and calls Trigger on every event from any
// of them. When a stream closes while the subscriber is still running it is
// re-subscribed with capped exponential backoff.
type Subscriber struct {
	feed    Feed
	tables  []string
	trigger func(table string)

	// MinBackoff and MaxBackoff bound the delay between re-subscribe attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewSubscriber builds a Subscriber over tables.
func NewSubscriber(feed Feed, trigger func(table string), tables ...string) *Subscriber {
	return &Subscriber{
		feed:       feed,
		tables:     tables,
		trigger:    trigger,
		MinBackoff: minBackoff,
		MaxBackoff: maxBackoff,
	}
}

// Run blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, table := range s.tables {
		wg.Add(1)
		go func(table string) {
			defer wg.Done()
			s.watch(ctx, table)
		}(table)
	}
	wg.Wait()
}

func (s *Subscriber) watch(ctx context.Context, table string) {
	log := logger.Ctx(ctx).With().Str(logger.FieldTable, table).Logger()
	backoff := s.MinBackoff

	for {
		events, err := s.feed.Subscribe(ctx, table)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("change feed subscribe failed")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = next(backoff, s.MaxBackoff)
			continue
		}

		backoff = s.MinBackoff
		// A fresh subscription may have missed events while it was down.
		s.trigger(table)

		for range events {
			s.trigger(table)
		}

		if ctx.Err() != nil {
			return
		}
		log.Warn().Msg("change feed dropped, re-subscribing")
		if !sleep(ctx, backoff) {
			return
		}
		backoff = next(backoff, s.MaxBackoff)
	}
}

func next(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
