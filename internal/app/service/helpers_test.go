package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mrops-br/storefront-api/internal/app/event"
	"github.com/mrops-br/storefront-api/internal/domain"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository/memory"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

var (
	testTracer = tracenoop.NewTracerProvider().Tracer("test")
	testMeter  = noop.NewMeterProvider().Meter("test")
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// fakeCatalog serves a fixed product list
type fakeCatalog struct {
	products []domain.Product
	err      error
}

func (c *fakeCatalog) ListAll(context.Context) ([]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]domain.Product(nil), c.products...), nil
}

func (c *fakeCatalog) ListByCategory(_ context.Context, category string) ([]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []domain.Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetByID(_ context.Context, id int) (*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, p := range c.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

// brokenKV fails reads and/or writes
type brokenKV struct {
	getErr error
	setErr error
}

func (b *brokenKV) Get(context.Context, string) (string, bool, error) { return "", false, b.getErr }
func (b *brokenKV) Set(context.Context, string, string) error         { return b.setErr }
func (b *brokenKV) Close() error                                      { return nil }

// flakyKV is a memory store whose next failReads reads fail
type flakyKV struct {
	*memory.KVStore
	failReads atomic.Int32
}

func newFlakyKV(failReads int32) *flakyKV {
	kv := &flakyKV{KVStore: memory.NewKVStore(testTracer, testLogger)}
	kv.failReads.Store(failReads)
	return kv
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failReads.Add(-1) >= 0 {
		return "", false, errBoom
	}
	return f.KVStore.Get(ctx, key)
}

// watchableKV is a memory store whose writes can be announced by the test
type watchableKV struct {
	*memory.KVStore
	mu      sync.Mutex
	changes chan struct{}
}

func newWatchableKV() *watchableKV {
	return &watchableKV{
		KVStore: memory.NewKVStore(testTracer, testLogger),
		changes: make(chan struct{}, 1),
	}
}

func (w *watchableKV) Watch(ctx context.Context, _ string) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.changes:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// externalWrite simulates another instance writing the key
func (w *watchableKV) externalWrite(t *testing.T, key, value string) {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.Set(context.Background(), key, value); err != nil {
		t.Fatalf("external write: %v", err)
	}
	w.changes <- struct{}{}
}

var errBoom = errors.New("boom")

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Title: "Backpack", Price: 109.95, Category: "men's clothing", Description: "Fits 15 inch laptops", Rating: domain.Rating{Rate: 3.9, Count: 120}},
		{ID: 2, Title: "Gold Bracelet", Price: 695, Category: "jewelery", Description: "Dragon chain", Rating: domain.Rating{Rate: 4.6, Count: 400}},
		{ID: 3, Title: "Cotton Jacket", Price: 55.99, Category: "men's clothing", Description: "Great for winter", Rating: domain.Rating{Rate: 4.7, Count: 500}},
	}
}

func newFavorites(kv domain.KeyValueStore, catalog domain.Catalog) (*FavoritesStore, *FavoritesService, *event.Broker) {
	store := NewFavoritesStore(kv, "wishlist", testTracer, testLogger)
	broker := event.NewBroker()
	return store, NewFavoritesService(store, catalog, broker, testTracer, testMeter, testLogger), broker
}
