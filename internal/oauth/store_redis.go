package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avoauthd/internal/observability"
)

// DefaultRedisKeyPrefix is the key prefix for client records in Redis.
const DefaultRedisKeyPrefix = "oauth:client:"

// RedisStore looks up client records stored as JSON in Redis. Lookups are
// wrapped in a circuit breaker so a dead Redis fails requests fast instead
// of holding every token request until its timeout.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	breaker   *gobreaker.CircuitBreaker
	logger    observability.Logger
}

// RedisStoreOption is a functional option for the Redis store.
type RedisStoreOption func(*RedisStore)

// WithRedisStoreLogger sets the logger for the store.
func WithRedisStoreLogger(logger observability.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// WithRedisKeyPrefix sets the key prefix for client records.
func WithRedisKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore creates a Redis-backed client store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: DefaultRedisKeyPrefix,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "oauth-client-store",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("client store circuit breaker state change",
				observability.String("breaker", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return s, nil
}

// Lookup returns the client record for the given identifier.
func (s *RedisStore) Lookup(ctx context.Context, clientID string) (*Client, error) {
	key := s.keyPrefix + clientID

	payload, err := s.breaker.Execute(func() (interface{}, error) {
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// A miss is a definitive answer, not a backend failure.
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		s.logger.Error("client lookup against redis failed",
			observability.String("client_id", clientID),
			observability.Error(err),
		)
		return nil, fmt.Errorf("redis client lookup: %w", err)
	}

	data, _ := payload.([]byte)
	if data == nil {
		return nil, ErrClientNotFound
	}

	var client Client
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to decode client record %s: %w", key, err)
	}
	if client.ID == "" {
		client.ID = clientID
	}

	return &client, nil
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
