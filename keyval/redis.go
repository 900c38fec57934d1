package keyval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// changeChannel carries Change payloads between instances. Redis pub/sub is
// fire-and-forget, which matches the best-effort notification contract.
const changeChannel = "draftdesk:changes"

// RedisStore implements Store on a shared Redis database. Every editor
// instance (one per "tab") opens its own RedisStore against the same
// database; the origin id lets each instance ignore its own change events.
type RedisStore struct {
	client *redis.Client
	origin string
}

// NewRedisStore connects to the Redis at redisURL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		origin: uuid.NewString(),
	}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		origin: uuid.NewString(),
	}
}

// Origin returns this instance's writer id.
func (s *RedisStore) Origin() string {
	return s.origin
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.announce(ctx, key)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.announce(ctx, key)
	return nil
}

// announce publishes a change event after a successful write. Delivery is
// best-effort; a failed publish is logged and the write stands.
func (s *RedisStore) announce(ctx context.Context, key string) {
	payload, err := json.Marshal(Change{Key: key, Origin: s.origin})
	if err != nil {
		log.Printf("keyval: marshal change event for %s: %v", key, err)
		return
	}
	if err := s.client.Publish(ctx, changeChannel, payload).Err(); err != nil {
		log.Printf("keyval: publish change event for %s: %v", key, err)
	}
}

// Subscribe delivers changes written by other instances. Events originating
// from this store are filtered out, mirroring how a browser tab never
// receives storage events for its own writes.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	pubsub := s.client.Subscribe(ctx, changeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to change channel: %w", err)
	}

	out := make(chan Change)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("keyval: malformed change event: %v", err)
					continue
				}
				if change.Origin == s.origin {
					continue
				}
				select {
				case out <- change:
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		pubsub.Close()
	}
	return out, cancel, nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
