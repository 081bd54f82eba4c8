package domain

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog service unavailable")
	ErrInvalidProductID   = errors.New("product id must be a positive integer")
	ErrInvalidSortOrder   = errors.New("sort order must be asc or desc")
	ErrStorageCorrupted   = errors.New("stored favorites value is malformed")
	ErrStorageRead        = errors.New("failed to read favorites")
	ErrStorageWrite       = errors.New("failed to persist favorites")
)

// Catalog defines the contract for the read-only product catalog
type Catalog interface {
	ListAll(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	GetByID(ctx context.Context, id int) (*Product, error)
}

// KeyValueStore is a durable string-keyed store holding the favorites entry
type KeyValueStore interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	// Set replaces the value for key
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Watcher is implemented by stores that can observe writes made by other processes.
// The returned channel receives a value after every change to key and is closed
// when ctx is done.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
}
