// Package blob provides small durable key/value storage for cached
// calendar payloads. Keys are slash-separated paths such as
// "calendar/school.json".
package blob

import (
	"context"
	"fmt"
	"strings"
)

// Error is a sentinel error type for blob operations.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound Error = "blob not found"
	// ErrInvalidKey is returned for empty keys or keys escaping the namespace.
	ErrInvalidKey Error = "invalid blob key"
)

// Store reads and writes opaque blobs by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is "file", "bolt" or "redis".
	Backend  string
	Dir      string
	BoltPath string
	RedisURL string
	Prefix   string
}

// Open constructs the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir)
	case "bolt":
		return NewBoltStore(opts.BoltPath)
	case "redis":
		return NewRedisStore(opts.RedisURL, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", opts.Backend)
	}
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
