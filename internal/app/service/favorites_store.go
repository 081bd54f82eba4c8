package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrops-br/storefront-api/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FavoritesStore persists the favorites set under a single key of a KeyValueStore
type FavoritesStore struct {
	kv     domain.KeyValueStore
	key    string
	tracer trace.Tracer
	logger *slog.Logger
}

// NewFavoritesStore creates a favorites store backed by kv
func NewFavoritesStore(kv domain.KeyValueStore, key string, tracer trace.Tracer, logger *slog.Logger) *FavoritesStore {
	return &FavoritesStore{
		kv:     kv,
		key:    key,
		tracer: tracer,
		logger: logger,
	}
}

// Load reads the persisted set. A missing, unreadable or malformed value
// yields an empty set; the failure is logged and never returned.
func (s *FavoritesStore) Load(ctx context.Context) domain.FavoritesSet {
	set, err := s.load(ctx)
	if err != nil {
		return domain.FavoritesSet{}
	}
	return set
}

// load reads the persisted set. A missing key is an empty set. A backend
// failure wraps domain.ErrStorageRead and a malformed value wraps
// domain.ErrStorageCorrupted.
func (s *FavoritesStore) load(ctx context.Context) (domain.FavoritesSet, error) {
	ctx, span := s.tracer.Start(ctx, "FavoritesStore.Load")
	defer span.End()

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Storage read failed")
		s.logger.ErrorContext(ctx, "Failed to read favorites",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	if !ok {
		span.SetStatus(codes.Ok, "No favorites stored")
		return domain.FavoritesSet{}, nil
	}

	set, err := domain.DecodeFavorites(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stored favorites malformed")
		s.logger.WarnContext(ctx, "Stored favorites are malformed, using empty set",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("favorites.count", set.Count()))
	span.SetStatus(codes.Ok, "Favorites loaded")
	return set, nil
}

// Toggle flips productID in current and persists the resulting set with a
// single write replacing the previous value. current is not modified.
func (s *FavoritesStore) Toggle(ctx context.Context, productID int, current domain.FavoritesSet) (domain.FavoritesSet, error) {
	ctx, span := s.tracer.Start(ctx, "FavoritesStore.Toggle")
	defer span.End()

	span.SetAttributes(attribute.Int("product.id", productID))

	next := current.Toggle(productID)
	raw, err := next.Encode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Encode failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}

	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Storage write failed")
		s.logger.ErrorContext(ctx, "Failed to persist favorites",
			slog.Int("product_id", productID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}

	span.SetAttributes(
		attribute.Bool("favorites.present", next.Has(productID)),
		attribute.Int("favorites.count", next.Count()),
	)
	span.SetStatus(codes.Ok, "Favorites persisted")
	return next, nil
}

// Count returns the number of entries in set
func (s *FavoritesStore) Count(set domain.FavoritesSet) int {
	return set.Count()
}

// Watcher returns the backend watcher when the store can observe external writes
func (s *FavoritesStore) Watcher() (domain.Watcher, bool) {
	w, ok := s.kv.(domain.Watcher)
	return w, ok
}

// Key is the storage key holding the set
func (s *FavoritesStore) Key() string {
	return s.key
}
