package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ttclub/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no ledger snapshot stored")

// SnapshotInfo describes a stored snapshot without its document.
type SnapshotInfo struct {
	ID           int64     `json:"id"`
	SavedAt      time.Time `json:"savedAt"`
	Version      string    `json:"version"`
	Members      int       `json:"members"`
	Transactions int       `json:"transactions"`
}

// SyncRecord notes which snapshot was last mirrored to the spreadsheet.
type SyncRecord struct {
	SnapshotID int64
	SyncedAt   time.Time
	MemberRows int
	TxRows     int
}

// SQLiteRepository keeps a bounded history of ledger snapshots. The newest
// row is the current state; older rows are backups.
type SQLiteRepository struct {
	db            *sql.DB
	retention     int
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string, retention int) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the server and worker share the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if retention < 1 {
		retention = 1
	}
	return &SQLiteRepository{db: db, retention: retention, schemaVersion: version}, nil
}

// SchemaVersion is the migration version the database was brought to on open.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot stores snap as the newest row and prunes history beyond the
// retention limit.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	version := snap.Version
	if version == "" {
		version = core.SnapshotVersion
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_snapshots (saved_at, version, members, transactions, document) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), version, len(snap.Members), len(snap.Transactions), string(doc))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, _ := res.LastInsertId()

	pruned, err := tx.ExecContext(ctx,
		`DELETE FROM ledger_snapshots WHERE id NOT IN (SELECT id FROM ledger_snapshots ORDER BY id DESC LIMIT ?)`,
		r.retention)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	removed, _ := pruned.RowsAffected()
	slog.DebugContext(ctx, "Ledger snapshot saved to SQLite",
		"snapshot_id", id,
		"members", len(snap.Members),
		"transactions", len(snap.Transactions),
		"pruned", removed)
	return nil
}

// LoadSnapshot returns the newest stored snapshot.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (core.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM ledger_snapshots ORDER BY id DESC LIMIT 1`)
	return scanSnapshot(row)
}

// LoadSnapshotByID returns a specific backup.
func (r *SQLiteRepository) LoadSnapshotByID(ctx context.Context, id int64) (core.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `SELECT document FROM ledger_snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (core.Snapshot, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Snapshot{}, ErrNoSnapshot
		}
		return core.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshotID returns the id of the newest row, or ErrNoSnapshot.
func (r *SQLiteRepository) LatestSnapshotID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM ledger_snapshots ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSnapshot
	}
	if err != nil {
		return 0, fmt.Errorf("read latest snapshot id: %w", err)
	}
	return id, nil
}

// ListSnapshots returns stored snapshots newest first.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = r.retention
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, saved_at, version, members, transactions FROM ledger_snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var savedAt string
		if err := rows.Scan(&info.ID, &savedAt, &info.Version, &info.Members, &info.Transactions); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// RecordSync stores the outcome of a spreadsheet mirror run.
func (r *SQLiteRepository) RecordSync(ctx context.Context, rec SyncRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sheet_syncs (snapshot_id, synced_at, member_rows, tx_rows) VALUES (?, ?, ?, ?)`,
		rec.SnapshotID, rec.SyncedAt.UTC().Format(time.RFC3339Nano), rec.MemberRows, rec.TxRows)
	if err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	return nil
}

// LastSync returns the most recent mirror run. ok is false when none exists.
func (r *SQLiteRepository) LastSync(ctx context.Context) (rec SyncRecord, ok bool, err error) {
	var syncedAt string
	err = r.db.QueryRowContext(ctx,
		`SELECT snapshot_id, synced_at, member_rows, tx_rows FROM sheet_syncs ORDER BY id DESC LIMIT 1`).
		Scan(&rec.SnapshotID, &syncedAt, &rec.MemberRows, &rec.TxRows)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRecord{}, false, nil
	}
	if err != nil {
		return SyncRecord{}, false, fmt.Errorf("read last sync: %w", err)
	}
	rec.SyncedAt, _ = time.Parse(time.RFC3339Nano, syncedAt)
	return rec, true, nil
}

// HealthCheck verifies the database is reachable.
func (r *SQLiteRepository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
