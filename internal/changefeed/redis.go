package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"duochat/internal/logger"
)

const channelPrefix = "duochat:changes:"

// RedisConfig holds connection settings for the Redis-backed feed.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisFeed carries change events over Redis pub/sub so several server
// instances observe each other's writes.
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed connects to Redis and verifies the connection.
func NewRedisFeed(cfg RedisConfig) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisFeedFromClient(client), nil
}

// NewRedisFeedFromClient wraps an existing client.
func NewRedisFeedFromClient(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// Channel returns the Redis channel name for table.
func Channel(table string) string {
	return channelPrefix + table
}

// Publish announces a change on table.
func (r *RedisFeed) Publish(ctx context.Context, table string) error {
	data, err := json.Marshal(Event{Table: table, At: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, Channel(table), data).Err()
}

// Subscribe listens on table's channel.
func (r *RedisFeed) Subscribe(ctx context.Context, table string) (<-chan Event, error) {
	ps := r.client.Subscribe(ctx, Channel(table))
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", table, err)
	}

	out := make(chan Event, subscriberBuffer)
	go r.processMessages(ctx, ps, table, out)
	return out, nil
}

func (r *RedisFeed) processMessages(ctx context.Context, ps *redis.PubSub, table string, out chan<- Event) {
	defer close(out)
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.L().Warn().Err(err).Str(logger.FieldTable, table).Msg("dropping malformed change event")
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			default:
				// A pending event already forces a re-read.
			}
		}
	}
}

// Close closes the Redis client.
func (r *RedisFeed) Close() error {
	return r.client.Close()
}
