package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"restaurant_pos/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "pos:"

// RedisTransport fans events out through Redis pub/sub.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport creates a transport on a Redis server at addr.
func NewRedisTransport(addr, password string, db int) *RedisTransport {
	return &RedisTransport{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// Ping checks the connection.
func (t *RedisTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Publish sends evt on the Redis channel for its event channel.
func (t *RedisTransport) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := t.client.Publish(ctx, redisChannelPrefix+string(evt.Channel), body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Name, err)
	}
	return nil
}

// Subscribe listens on the Redis channels for channels.
func (t *RedisTransport) Subscribe(ctx context.Context, channels ...Channel) (<-chan Event, error) {
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, redisChannelPrefix+string(c))
	}
	pubsub := t.client.Subscribe(ctx, names...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				evt, err := decode([]byte(msg.Payload))
				if err != nil {
					utils.LogError(err, "Redis subscriber: malformed payload on "+msg.Channel)
					continue
				}
				if evt.Channel == "" {
					evt.Channel = Channel(strings.TrimPrefix(msg.Channel, redisChannelPrefix))
				}
				if !send(ctx, out, evt) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis client.
func (t *RedisTransport) Close() error {
	return t.client.Close()
}
