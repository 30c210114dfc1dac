package backend

import (
	"context"

	"ttclub/internal/core"
	"ttclub/internal/services"
	"ttclub/internal/storage"
)

// Repository is what every backend provides: the latest ledger snapshot and
// a way to replace it. LoadSnapshot returns storage.ErrNoSnapshot when the
// store is empty.
type Repository interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap core.Snapshot) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the ready-to-use service. History is set only for the
// sqlite backend, which keeps past snapshots.
type BackendResult struct {
	Service *services.LedgerService
	History *storage.SQLiteRepository
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// sqlite
	SQLiteDBPath      string
	SnapshotRetention int

	// file
	DataFile string

	// Optional JSON export used when the store is empty.
	SeedFile string

	// Optional change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FileBackend   BackendType = "file"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
