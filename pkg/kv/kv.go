// Package kv provides the local key-value storage behind saved diagrams.
//
// A [Store] maps string keys to opaque byte values. A missing key is a miss
// (nil, false, nil), never an error. Four backends are available:
//
//   - [FileStore]: one JSON file per key in a directory (the CLI default)
//   - [MemoryStore]: process memory, for tests and throwaway servers
//   - [RedisStore]: a Redis server via go-redis
//   - [MongoStore]: a MongoDB collection via the official driver
//
// [Open] builds a backend from [Options] and wraps it so every read and write
// reaches the registered observability hooks.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/observability"
)

// Store is a byte-oriented key-value store.
type Store interface {
	// Get returns the value for key. ok is false on a miss.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Set stores data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir is the directory of the file backend.
	Dir   string
	Redis RedisOptions
	Mongo MongoOptions
}

// Open creates the configured backend. Network backends are pinged before
// Open returns, retrying transient failures with backoff.
func Open(ctx context.Context, opts Options, logger *log.Logger) (Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", BackendFile:
		s, err = NewFileStore(opts.Dir)
	case BackendMemory:
		s = NewMemoryStore()
	case BackendRedis:
		s, err = NewRedisStore(ctx, opts.Redis)
	case BackendMongo:
		s, err = NewMongoStore(ctx, opts.Mongo)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (valid: file, memory, redis, mongo)", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	name := opts.Backend
	if name == "" {
		name = BackendFile
	}
	logger.Debug("storage opened", "backend", name)
	return Instrument(s, name), nil
}

// =============================================================================
// Instrumentation
// =============================================================================

// Instrument wraps s so reads and writes are reported to
// observability.Store() under the given backend name.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

type instrumented struct {
	Store
	backend string
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.Store.Get(ctx, key)
	observability.Store().OnRead(ctx, s.backend, key, len(data), err)
	return data, ok, err
}

func (s *instrumented) Set(ctx context.Context, key string, data []byte) error {
	err := s.Store.Set(ctx, key, data)
	observability.Store().OnWrite(ctx, s.backend, key, len(data), err)
	return err
}

// =============================================================================
// Retry
// =============================================================================

// ErrUnavailable is returned when a network backend cannot be reached.
var ErrUnavailable = errors.New("storage unavailable")

// RetryableError wraps an error to indicate it should trigger a retry.
type RetryableError struct{ Err error }

// Retryable wraps an error as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// retryDelay is the first backoff delay. Tests shorten it.
var retryDelay = time.Second

// RetryWithBackoff retries fn up to 3 times with exponential backoff.
// Only errors wrapped with Retryable will trigger retries.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	const attempts = 3
	delay := retryDelay
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
