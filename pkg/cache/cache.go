// Package cache stores rendered diagram artifacts keyed by content hash.
//
// Rendering a canvas through Graphviz is the slowest step of both the SVG
// endpoint and the render command, and the output depends only on the DOT
// source and the output format. Keys built with [Key] capture exactly that,
// so entries never need invalidation; TTLs only bound disk and memory use.
//
// Three implementations are available:
//
//   - [FileCache]: one file per entry under a directory (the CLI)
//   - [MemoryCache]: a bounded in-process map (the HTTP server)
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a byte cache with per-entry expiry.
type Cache interface {
	// Get returns the entry for key. hit is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources.
	Close() error
}

// Key builds a cache key of the form kind:sha256(parts...).
func Key(kind string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", kind, hex.EncodeToString(sum[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
