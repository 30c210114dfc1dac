package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ttclub/internal/amqp"
	"ttclub/internal/ledger"
	"ttclub/internal/log"
	"ttclub/internal/services"
	"ttclub/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger     *log.Logger
	ledgerOpts []ledger.Option
}

// NewFactory creates a new backend factory. ledgerOpts apply to every ledger
// it builds.
func NewFactory(logger *log.Logger, ledgerOpts ...ledger.Option) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger:     logger.WithComponent(log.ComponentBackend),
		ledgerOpts: ledgerOpts,
	}
}

// CreateBackend opens the configured store, loads the ledger from it (or
// seeds a new one) and wraps both in a LedgerService.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		repo    Repository
		history *storage.SQLiteRepository
	)
	switch config.Type {
	case SQLiteBackend:
		sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.SnapshotRetention)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		repo, history = sqliteRepo, sqliteRepo
		f.logger.Info("Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"schema_version", sqliteRepo.SchemaVersion(),
			"retention", config.SnapshotRetention)
	case FileBackend:
		fileRepo, err := storage.NewFileRepository(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file repository: %w", err)
		}
		repo = fileRepo
		f.logger.Info("Initialized file backend", "data_file", config.DataFile)
	case MemoryBackend:
		repo = storage.NewMemoryRepository()
		f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	l, err := f.loadLedger(ctx, repo, config.SeedFile)
	if err != nil {
		repo.Close()
		return nil, err
	}

	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue,
				"source", client.Source())
		}
	}

	svc := services.NewLedgerService(l, repo, publisher, f.logger)
	return &BackendResult{
		Service: svc,
		History: history,
		Cleanup: svc.Close,
	}, nil
}

// loadLedger restores the newest stored snapshot. An empty store is seeded
// and the seed saved right away so other processes see it.
func (f *DefaultFactory) loadLedger(ctx context.Context, repo Repository, seedFile string) (*ledger.Ledger, error) {
	snap, err := repo.LoadSnapshot(ctx)
	switch {
	case err == nil:
		l := ledger.New(f.ledgerOpts...)
		if err := l.Restore(snap); err != nil {
			return nil, fmt.Errorf("restore stored snapshot: %w", err)
		}
		f.logger.Info("Loaded ledger from store",
			"members", len(snap.Members),
			"transactions", len(snap.Transactions))
		return l, nil
	case errors.Is(err, storage.ErrNoSnapshot):
		l, err := f.seedLedger(seedFile)
		if err != nil {
			return nil, err
		}
		if err := repo.SaveSnapshot(ctx, l.Export()); err != nil {
			return nil, fmt.Errorf("save initial snapshot: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
}

func (f *DefaultFactory) seedLedger(seedFile string) (*ledger.Ledger, error) {
	if seedFile == "" {
		f.logger.Info("Store is empty, starting with default fee years")
		return ledger.NewDefault(f.ledgerOpts...), nil
	}
	data, err := os.ReadFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	l := ledger.New(f.ledgerOpts...)
	if err := l.Import(data); err != nil {
		return nil, fmt.Errorf("import seed file %s: %w", seedFile, err)
	}
	f.logger.Info("Store is empty, seeded ledger", "seed_file", seedFile)
	return l, nil
}
