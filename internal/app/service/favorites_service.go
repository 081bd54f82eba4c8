package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrops-br/storefront-api/internal/app/dto"
	"github.com/mrops-br/storefront-api/internal/app/event"
	"github.com/mrops-br/storefront-api/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// FavoritesService handles the wishlist use cases and change notification
type FavoritesService struct {
	store   *FavoritesStore
	catalog domain.Catalog
	broker  *event.Broker
	tracer  trace.Tracer
	logger  *slog.Logger

	// mu serializes load-modify-write of toggles within this process
	mu        sync.Mutex
	lastCount atomic.Int64
	toggles   metric.Int64Counter
}

// NewFavoritesService creates a new favorites service
func NewFavoritesService(
	store *FavoritesStore,
	catalog domain.Catalog,
	broker *event.Broker,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *FavoritesService {
	s := &FavoritesService{
		store:   store,
		catalog: catalog,
		broker:  broker,
		tracer:  tracer,
		logger:  logger,
	}

	s.toggles, _ = meter.Int64Counter(
		"storefront.favorites.toggles",
		metric.WithDescription("Total number of favorite toggles by action"),
	)
	_, _ = meter.Int64ObservableGauge(
		"storefront.favorites.count",
		metric.WithDescription("Number of favorited products as last seen by this instance"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(s.lastCount.Load())
			return nil
		}),
	)

	return s
}

// Favorites returns the favorited ids and the catalog products they refer to.
// The set and the catalog are fetched concurrently; a catalog failure leaves
// products empty while count and ids still reflect storage.
func (s *FavoritesService) Favorites(ctx context.Context) *dto.FavoritesResponse {
	ctx, span := s.tracer.Start(ctx, "FavoritesService.Favorites")
	defer span.End()

	var (
		set      domain.FavoritesSet
		products []domain.Product
	)

	var g errgroup.Group
	g.Go(func() error {
		set = s.store.Load(ctx)
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = s.catalog.ListAll(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.logger.ErrorContext(ctx, "Failed to fetch catalog for favorites",
			slog.String("error", err.Error()),
		)
		products = nil
	}

	s.lastCount.Store(int64(set.Count()))

	favorited := make([]domain.Product, 0, set.Count())
	for _, p := range products {
		if set.Has(p.ID) {
			favorited = append(favorited, p)
		}
	}

	span.SetAttributes(
		attribute.Int("favorites.count", set.Count()),
		attribute.Int("favorites.matched", len(favorited)),
	)
	span.SetStatus(codes.Ok, "Favorites listed")

	return &dto.FavoritesResponse{
		Count:    set.Count(),
		IDs:      set.IDs(),
		Products: dto.ToProductResponseList(favorited, set),
	}
}

// ToggleFavorite flips productID in the persisted set and notifies subscribers
func (s *FavoritesService) ToggleFavorite(ctx context.Context, productID int) (*dto.ToggleResponse, error) {
	ctx, span := s.tracer.Start(ctx, "FavoritesService.ToggleFavorite")
	defer span.End()

	span.SetAttributes(attribute.Int("product.id", productID))

	if productID <= 0 {
		span.SetStatus(codes.Error, "Invalid product id")
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidProductID, productID)
	}

	s.mu.Lock()
	next, err := s.toggle(ctx, productID)
	s.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Toggle failed")
		s.toggles.Add(ctx, 1, metric.WithAttributes(attribute.String("action", "failure")))
		return nil, err
	}

	favorited := next.Has(productID)
	action := "removed"
	if favorited {
		action = "added"
	}
	s.toggles.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))

	s.publish(next.Count())

	s.logger.InfoContext(ctx, "Favorite toggled",
		slog.Int("product_id", productID),
		slog.String("action", action),
		slog.Int("count", next.Count()),
	)

	span.SetStatus(codes.Ok, "Favorite toggled")
	return &dto.ToggleResponse{
		ProductID: productID,
		Favorited: favorited,
		Count:     next.Count(),
	}, nil
}

// toggle loads the current set and persists it with productID flipped.
// A malformed value is replaced; a read failure aborts without writing.
func (s *FavoritesService) toggle(ctx context.Context, productID int) (domain.FavoritesSet, error) {
	current, err := s.store.load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageCorrupted) {
			return nil, err
		}
		current = domain.FavoritesSet{}
	}
	return s.store.Toggle(ctx, productID, current)
}

// Count returns the current number of favorites
func (s *FavoritesService) Count(ctx context.Context) int {
	count := s.store.Count(s.store.Load(ctx))
	s.lastCount.Store(int64(count))
	return count
}

// Subscribe registers for count changes. The subscription ends, and the
// channel is closed, when ctx is done or cancel is called.
func (s *FavoritesService) Subscribe(ctx context.Context) (<-chan event.CountEvent, func()) {
	id, ch, unsubscribe := s.broker.Subscribe()
	s.logger.DebugContext(ctx, "Favorites subscriber added", slog.String("subscriber_id", id))

	stop := context.AfterFunc(ctx, unsubscribe)
	return ch, func() {
		stop()
		unsubscribe()
	}
}

// Run republishes the count whenever the backend reports an external write.
// It returns immediately when the backend cannot be watched, and otherwise
// blocks until ctx is done.
func (s *FavoritesService) Run(ctx context.Context) error {
	watcher, ok := s.store.Watcher()
	if !ok {
		s.logger.Info("Storage backend does not support change notification")
		return nil
	}

	changes, err := watcher.Watch(ctx, s.store.Key())
	if err != nil {
		return fmt.Errorf("failed to watch favorites: %w", err)
	}
	s.logger.Info("Watching favorites for external changes", slog.String("key", s.store.Key()))

	for range changes {
		count := s.Count(ctx)
		s.logger.Debug("Favorites changed in storage", slog.Int("count", count))
		s.publish(count)
	}
	return nil
}

func (s *FavoritesService) publish(count int) {
	s.lastCount.Store(int64(count))
	s.broker.Publish(event.CountEvent{Count: count, At: time.Now()})
}
