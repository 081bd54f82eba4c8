package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// KVStore persists keys in a single SQLite table
type KVStore struct {
	db     *sql.DB
	tracer trace.Tracer
	logger *slog.Logger
}

// NewKVStore opens (or creates) the database at path and applies the schema
func NewKVStore(ctx context.Context, path string, tracer trace.Tracer, logger *slog.Logger) (*KVStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLite out of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	logger.Info("SQLite store opened", slog.String("path", path))
	return &KVStore{db: db, tracer: tracer, logger: logger}, nil
}

// Get reads the value stored under key
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "SQLiteKVStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("kv.key", key))

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("kv.exists", false))
		span.SetStatus(codes.Ok, "Key not present")
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query failed")
		s.logger.ErrorContext(ctx, "Failed to read key from sqlite",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}

	span.SetAttributes(attribute.Bool("kv.exists", true))
	span.SetStatus(codes.Ok, "Key read")
	return value, true, nil
}

// Set upserts the value stored under key
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "SQLiteKVStore.Set")
	defer span.End()

	span.SetAttributes(
		attribute.String("kv.key", key),
		attribute.Int("kv.value_size", len(value)),
	)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upsert failed")
		s.logger.ErrorContext(ctx, "Failed to write key to sqlite",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}

	s.logger.DebugContext(ctx, "Key written to sqlite store", slog.String("key", key))
	span.SetStatus(codes.Ok, "Key written")
	return nil
}

// Close closes the database
func (s *KVStore) Close() error {
	return s.db.Close()
}
