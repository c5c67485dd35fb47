//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"polyevolve/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, record model.SnapshotRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	meta, err := EncodeSnapshotRecord(record)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (id, schema_version, codec_version, saved_at, meta, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			saved_at = excluded.saved_at,
			meta = excluded.meta,
			payload = excluded.payload
	`, record.ID, record.SchemaVersion, record.CodecVersion, record.SavedAt.UTC().Format(time.RFC3339Nano), meta, record.Payload)
	return err
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (model.SnapshotRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SnapshotRecord{}, false, err
	}

	var meta, payload []byte
	err = db.QueryRowContext(ctx, `SELECT meta, payload FROM snapshots WHERE id = ?`, id).Scan(&meta, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SnapshotRecord{}, false, nil
		}
		return model.SnapshotRecord{}, false, err
	}

	record, err := DecodeSnapshotRecord(meta)
	if err != nil {
		return model.SnapshotRecord{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	record.Payload = payload
	return record, true, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]model.SnapshotRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, meta FROM snapshots`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.SnapshotRecord
	for rows.Next() {
		var id string
		var meta []byte
		if err := rows.Scan(&id, &meta); err != nil {
			return nil, err
		}
		record, err := DecodeSnapshotRecord(meta)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id string) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			meta BLOB NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
