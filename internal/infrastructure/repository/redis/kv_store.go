package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the redis-backed store
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces keys and the change channel
	Prefix string
}

// KVStore keeps keys in redis and announces every write on a pub/sub channel
type KVStore struct {
	client  *goredis.Client
	prefix  string
	channel string
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewKVStore connects to redis and verifies the connection with PING
func NewKVStore(ctx context.Context, opts Options, tracer trace.Tracer, logger *slog.Logger) (*KVStore, error) {
	if opts.Prefix == "" {
		opts.Prefix = "storefront"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Info("Redis store connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return &KVStore{
		client:  client,
		prefix:  opts.Prefix + ":",
		channel: opts.Prefix + ":kv:changed",
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// Get reads the value stored under key
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "RedisKVStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("kv.key", key))

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		span.SetAttributes(attribute.Bool("kv.exists", false))
		span.SetStatus(codes.Ok, "Key not present")
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "GET failed")
		s.logger.ErrorContext(ctx, "Failed to read key from redis",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}

	span.SetAttributes(attribute.Bool("kv.exists", true))
	span.SetStatus(codes.Ok, "Key read")
	return value, true, nil
}

// Set replaces the value under key and publishes the key name on the change channel
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "RedisKVStore.Set")
	defer span.End()

	span.SetAttributes(
		attribute.String("kv.key", key),
		attribute.Int("kv.value_size", len(value)),
	)

	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, value, 0)
		pipe.Publish(ctx, s.channel, key)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SET failed")
		s.logger.ErrorContext(ctx, "Failed to write key to redis",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	s.logger.DebugContext(ctx, "Key written to redis store", slog.String("key", key))
	span.SetStatus(codes.Ok, "Key written")
	return nil
}

// Watch subscribes to the change channel and reports writes to key from any instance
func (s *KVStore) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	// Wait for the subscription confirmation so no write is missed after we return
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload != key {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis client
func (s *KVStore) Close() error {
	return s.client.Close()
}
