// Package kv re-exports the slot storage contract and selects a backend.
package kv

import "shipflow/internal/kv/core"

type (
	// Driver identifies a slot backend driver.
	Driver = core.Driver
	// Store is string-keyed shared storage.
	Store = core.Store
)

const (
	DriverMemory     = core.DriverMemory
	DriverFilesystem = core.DriverFilesystem
	DriverSQLite     = core.DriverSQLite
	DriverPostgres   = core.DriverPostgres
	DriverS3         = core.DriverS3
)

var (
	// ErrUnsupported indicates an operation isn't supported by a driver.
	ErrUnsupported = core.ErrUnsupported
	// ErrInvalidKey indicates a key a backend cannot address.
	ErrInvalidKey = core.ErrInvalidKey
)

// ValidateKey rejects keys a backend cannot address.
func ValidateKey(key string) error { return core.ValidateKey(key) }
