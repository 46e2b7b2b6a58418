package kv

import (
	"context"
	"fmt"
	"io"

	"shipflow/internal/infra/kv/fs"
	"shipflow/internal/infra/kv/memory"
	"shipflow/internal/infra/kv/postgres"
	"shipflow/internal/infra/kv/s3"
	"shipflow/internal/infra/kv/sqlite"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = s3.Config

// Config selects and parameterises a slot backend.
type Config struct {
	Driver      Driver
	FSRoot      string
	SQLitePath  string
	PostgresDSN string
	S3          S3Config
}

// Open constructs the Store named by cfg.Driver (default memory).
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}
	switch driver {
	case DriverMemory:
		return memory.New(), nil
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case DriverPostgres:
		return postgres.New(ctx, cfg.PostgresDSN)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown kv driver %s", driver)
	}
}

// NewMemory returns a fresh in-process store.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests exposes the in-memory S3 fake for cross-package tests.
func NewMockS3ForTests() Store { return s3.NewMockForTests("", 0) }

// Close releases backend resources when the store holds any.
func Close(store Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
