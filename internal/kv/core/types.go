// Package core defines the shared slot storage contract used by form sessions.
//
// A Store behaves like browser local storage: string keys, string values, no
// transactions and no locking. Several sessions may share one Store, which is
// exactly what the session conflict detection guards against.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver identifies a concrete slot storage backend implementation.
type Driver string

const (
	DriverMemory     Driver = "memory" // in-process map (tests, demos)
	DriverFilesystem Driver = "fs"     // one file per key
	DriverSQLite     Driver = "sqlite" // modernc pure go sqlite
	DriverPostgres   Driver = "postgres"
	DriverS3         Driver = "s3" // S3 / MinIO compatible, one object per key
)

// Store is string-keyed get/set/remove storage.
type Store interface {
	// GetItem returns the value stored at key. The boolean is false when the key is absent.
	GetItem(ctx context.Context, key string) (string, bool, error)
	// SetItem stores value at key, overwriting any previous value.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
	// Keys lists stored keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Driver returns the configured backend driver.
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("kv: unsupported operation")

// ErrInvalidKey is returned for keys a backend cannot address.
var ErrInvalidKey = errors.New("kv: invalid key")

// ValidateKey rejects empty keys and keys that could escape a namespace.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") || strings.ContainsAny(key, "\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
