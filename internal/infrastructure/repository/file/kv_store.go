package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const watchDebounce = 50 * time.Millisecond

// KVStore keeps each key as <dir>/<key>.json
type KVStore struct {
	dir    string
	tracer trace.Tracer
	logger *slog.Logger
}

// NewKVStore creates the directory if needed and returns a file-backed store
func NewKVStore(dir string, tracer trace.Tracer, logger *slog.Logger) (*KVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &KVStore{dir: dir, tracer: tracer, logger: logger}, nil
}

func (s *KVStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get reads the file for key
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "FileKVStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("kv.key", key))

	path, err := s.path(key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid key")
		return "", false, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		span.SetAttributes(attribute.Bool("kv.exists", false))
		span.SetStatus(codes.Ok, "Key not present")
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Read failed")
		s.logger.ErrorContext(ctx, "Failed to read key file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	span.SetAttributes(attribute.Bool("kv.exists", true))
	span.SetStatus(codes.Ok, "Key read")
	return string(data), true, nil
}

// Set writes value to a temp file and renames it over the key file,
// so readers never observe a partial write
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "FileKVStore.Set")
	defer span.End()

	span.SetAttributes(
		attribute.String("kv.key", key),
		attribute.Int("kv.value_size", len(value)),
	)

	path, err := s.path(key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid key")
		return err
	}

	if err := writeAtomic(path, []byte(value)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Write failed")
		s.logger.ErrorContext(ctx, "Failed to write key file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.DebugContext(ctx, "Key written to file store", slog.String("path", path))
	span.SetStatus(codes.Ok, "Key written")
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Watch reports changes to the key file, including writes by other processes.
// Bursts of events within watchDebounce are coalesced.
func (s *KVStore) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: rename-over replaces the inode of the file itself
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	out := make(chan struct{}, 1)
	go s.watchLoop(ctx, watcher, filepath.Clean(path), out)
	return out, nil
}

func (s *KVStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, out chan<- struct{}) {
	defer close(out)
	defer watcher.Close()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("File watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// Close is a no-op; watchers stop with their context
func (s *KVStore) Close() error {
	return nil
}
