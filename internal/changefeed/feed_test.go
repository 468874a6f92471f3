package changefeed

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFeed_DeliversToTableSubscribersOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := NewLocalFeed()

	msgs, err := f.Subscribe(ctx, "messages")
	require.NoError(t, err)
	reactions, err := f.Subscribe(ctx, "reactions")
	require.NoError(t, err)

	require.NoError(t, f.Publish(ctx, "messages"))

	select {
	case ev := <-msgs:
		assert.Equal(t, "messages", ev.Table)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-reactions:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestLocalFeed_CancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := NewLocalFeed()

	ch, err := f.Subscribe(ctx, "messages")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestLocalFeed_PublishNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := NewLocalFeed()
	_, err := f.Subscribe(ctx, "messages")
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer*4; i++ {
		require.NoError(t, f.Publish(ctx, "messages"))
	}
}

func TestLocalFeed_Closed(t *testing.T) {
	f := NewLocalFeed()
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Publish(context.Background(), "messages"), ErrClosed)
	_, err := f.Subscribe(context.Background(), "messages")
	assert.ErrorIs(t, err, ErrClosed)
}

type counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *counter) inc(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[table]++
}

func (c *counter) get(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[table]
}

func TestSubscriber_TriggersOnEveryTable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := NewLocalFeed()
	c := &counter{counts: map[string]int{}}

	sub := NewSubscriber(f, c.inc, "messages", "reactions", "message_states")
	done := make(chan struct{})
	go func() {
		sub.Run(ctx)
		close(done)
	}()

	// each table fires once on subscribe
	require.Eventually(t, func() bool {
		return c.get("messages") == 1 && c.get("reactions") == 1 && c.get("message_states") == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.Publish(ctx, "reactions"))
	require.Eventually(t, func() bool { return c.get("reactions") == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriber_ResubscribesAfterDrop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := NewLocalFeed()
	c := &counter{counts: map[string]int{}}

	sub := NewSubscriber(f, c.inc, "messages")
	sub.MinBackoff = time.Millisecond
	sub.MaxBackoff = 5 * time.Millisecond
	go sub.Run(ctx)

	require.Eventually(t, func() bool { return c.get("messages") == 1 }, time.Second, time.Millisecond)

	f.Drop()
	require.Eventually(t, func() bool { return c.get("messages") == 2 }, time.Second, time.Millisecond)

	require.NoError(t, f.Publish(ctx, "messages"))
	require.Eventually(t, func() bool { return c.get("messages") == 3 }, time.Second, time.Millisecond)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, next(100*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, next(800*time.Millisecond, time.Second))
}

func TestRedisFeed_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("Skipping: REDIS_ADDRESS not set")
	}
	f, err := NewRedisFeed(RedisConfig{Address: addr})
	if err != nil {
		t.Skipf("Skipping: could not connect to redis: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := f.Subscribe(ctx, "messages")
	require.NoError(t, err)
	require.NoError(t, f.Publish(ctx, "messages"))

	select {
	case ev := <-ch:
		assert.Equal(t, "messages", ev.Table)
	case <-ctx.Done():
		t.Fatal("no event delivered")
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "duochat:changes:reactions", Channel("reactions"))
}
