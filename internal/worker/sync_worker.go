// Package worker mirrors the ledger into the spreadsheet. It reacts to
// LedgerChanged events and also syncs at startup and on a timer, so a lost
// message only delays the mirror.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ttclub/internal/amqp"
	"ttclub/internal/core"
	"ttclub/internal/log"
	"ttclub/internal/sheets"
	"ttclub/internal/storage"
)

// SnapshotSource is the part of the SQLite repository the worker reads and
// writes.
type SnapshotSource interface {
	LatestSnapshotID(ctx context.Context) (int64, error)
	LoadSnapshotByID(ctx context.Context, id int64) (core.Snapshot, error)
	LastSync(ctx context.Context) (storage.SyncRecord, bool, error)
	RecordSync(ctx context.Context, rec storage.SyncRecord) error
}

// SyncWorker copies the newest stored snapshot to the mirror when it has
// not been copied yet.
type SyncWorker struct {
	store  SnapshotSource
	mirror sheets.Mirror
	logger *log.Logger
	now    func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	seen map[string]int64 // highest revision handled per publishing process
}

func NewSyncWorker(store SnapshotSource, mirror sheets.Mirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		store:  store,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
		seen:   make(map[string]int64),
	}
}

// SyncOutcome describes one Sync call.
type SyncOutcome struct {
	SnapshotID int64
	Skipped    bool
	Result     sheets.Result
}

// HandleLedgerChanged is the AMQP handler. Redelivered or out-of-order
// messages for revisions already handled are acknowledged without work.
func (w *SyncWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	if w.alreadyHandled(msg.Source, msg.Revision) {
		w.logger.DebugContext(ctx, "Skipping stale ledger change",
			log.FieldMessageID, msg.MessageID,
			log.FieldRevision, msg.Revision)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger change",
		log.FieldMessageID, msg.MessageID,
		log.FieldRevision, msg.Revision,
		log.FieldActivityType, msg.ActivityType)

	if err := w.syncLatest(ctx); err != nil {
		return err
	}
	w.markHandled(msg.Source, msg.Revision)
	return nil
}

// maxCatchUp bounds how many back-to-back syncs one message may trigger.
const maxCatchUp = 3

// syncLatest syncs until the mirrored snapshot is the newest stored one. A
// message can join a run that started before its snapshot was saved; that
// run mirrors an older snapshot, so another is needed.
func (w *SyncWorker) syncLatest(ctx context.Context) error {
	var latest int64
	for range maxCatchUp {
		out, err := w.Sync(ctx)
		if err != nil {
			return err
		}
		latest, err = w.store.LatestSnapshotID(ctx)
		if errors.Is(err, storage.ErrNoSnapshot) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find latest snapshot: %w", err)
		}
		if out.SnapshotID >= latest {
			return nil
		}
	}
	return fmt.Errorf("snapshot %d still not mirrored after %d syncs", latest, maxCatchUp)
}

func (w *SyncWorker) alreadyHandled(source string, revision int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return revision <= w.seen[source]
}

func (w *SyncWorker) markHandled(source string, revision int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if revision > w.seen[source] {
		w.seen[source] = revision
	}
}

// Sync mirrors the newest snapshot unless it is already mirrored. Concurrent
// calls share a single run.
func (w *SyncWorker) Sync(ctx context.Context) (SyncOutcome, error) {
	v, err, _ := w.group.Do("sync", func() (any, error) {
		return w.sync(ctx)
	})
	if err != nil {
		return SyncOutcome{}, err
	}
	return v.(SyncOutcome), nil
}

func (w *SyncWorker) sync(ctx context.Context) (SyncOutcome, error) {
	id, err := w.store.LatestSnapshotID(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		w.logger.InfoContext(ctx, "No ledger snapshot stored yet, nothing to mirror")
		return SyncOutcome{Skipped: true}, nil
	}
	if err != nil {
		return SyncOutcome{}, fmt.Errorf("find latest snapshot: %w", err)
	}

	last, ok, err := w.store.LastSync(ctx)
	if err != nil {
		return SyncOutcome{}, fmt.Errorf("read last sync: %w", err)
	}
	if ok && last.SnapshotID == id {
		return SyncOutcome{SnapshotID: id, Skipped: true}, nil
	}

	snap, err := w.store.LoadSnapshotByID(ctx, id)
	if err != nil {
		return SyncOutcome{}, fmt.Errorf("load snapshot %d: %w", id, err)
	}

	start := w.now()
	res, err := w.mirror.Mirror(log.NewContext(ctx, w.logger), snap)
	if err != nil {
		return SyncOutcome{}, fmt.Errorf("mirror snapshot %d: %w", id, err)
	}

	rec := storage.SyncRecord{SnapshotID: id, SyncedAt: w.now(), MemberRows: res.MemberRows, TxRows: res.TxRows}
	if err := w.store.RecordSync(ctx, rec); err != nil {
		// The sheets are correct; the next run just repeats the write.
		w.logger.ErrorContext(ctx, "Failed to record sync",
			log.FieldSnapshotID, id,
			log.FieldError, err.Error())
	}

	w.logger.InfoContext(ctx, "Ledger mirrored",
		log.FieldOperation, log.OpSync,
		log.FieldSnapshotID, id,
		"members", res.MemberRows,
		"transactions", res.TxRows,
		log.FieldDuration, w.now().Sub(start).Milliseconds())
	return SyncOutcome{SnapshotID: id, Result: res}, nil
}

// StartupSync catches up on changes made while the worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	out, err := w.Sync(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		log.FieldOperation, log.OpStartup,
		log.FieldSnapshotID, out.SnapshotID,
		"skipped", out.Skipped)
	return nil
}

// RunPeriodic syncs every interval until ctx is done. Failures are logged
// and retried on the next tick.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Sync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err.Error())
			}
		}
	}
}
