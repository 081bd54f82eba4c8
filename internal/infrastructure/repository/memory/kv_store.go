package memory

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KVStore is an in-memory implementation of domain.KeyValueStore
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
	tracer trace.Tracer
	logger *slog.Logger
}

// NewKVStore creates a new in-memory key-value store
func NewKVStore(tracer trace.Tracer, logger *slog.Logger) *KVStore {
	return &KVStore{
		values: make(map[string]string),
		tracer: tracer,
		logger: logger,
	}
}

// Get retrieves the value stored under key
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "MemoryKVStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("kv.key", key))

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	s.logger.DebugContext(ctx, "Key read from memory store",
		slog.String("key", key),
		slog.Bool("exists", exists),
	)

	span.SetAttributes(attribute.Bool("kv.exists", exists))
	span.SetStatus(codes.Ok, "Key read")
	return value, exists, nil
}

// Set replaces the value stored under key
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "MemoryKVStore.Set")
	defer span.End()

	span.SetAttributes(
		attribute.String("kv.key", key),
		attribute.Int("kv.value_size", len(value)),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	s.logger.DebugContext(ctx, "Key written to memory store",
		slog.String("key", key),
	)

	span.SetStatus(codes.Ok, "Key written")
	return nil
}

// Close is a no-op for the memory store
func (s *KVStore) Close() error {
	return nil
}
