package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"polyevolve/internal/model"
)

const (
	metaPrefix    = "snapshot/meta/"
	payloadPrefix = "snapshot/data/"
)

// BadgerStore keeps snapshots in a BadgerDB directory, or in memory when the
// path is empty.
type BadgerStore struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *badger.DB
}

func NewBadgerStore(path string, logger *slog.Logger) *BadgerStore {
	return &BadgerStore{path: path, logger: logger}
}

func (s *BadgerStore) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	var opts badger.Options
	if s.path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.path, 0o750); err != nil {
			return fmt.Errorf("create badger directory %s: %w", s.path, err)
		}
		opts = badger.DefaultOptions(s.path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if s.logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	s.db = db
	return nil
}

func (s *BadgerStore) SaveSnapshot(ctx context.Context, record model.SnapshotRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}
	meta, err := EncodeSnapshotRecord(record)
	if err != nil {
		return err
	}
	payload := append([]byte(nil), record.Payload...)

	return db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaPrefix+record.ID), meta); err != nil {
			return err
		}
		return txn.Set([]byte(payloadPrefix+record.ID), payload)
	})
}

func (s *BadgerStore) GetSnapshot(ctx context.Context, id string) (model.SnapshotRecord, bool, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return model.SnapshotRecord{}, false, err
	}

	var meta, payload []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + id))
		if err != nil {
			return err
		}
		if meta, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get([]byte(payloadPrefix + id))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
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

func (s *BadgerStore) ListSnapshots(ctx context.Context) ([]model.SnapshotRecord, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return nil, err
	}

	var records []model.SnapshotRecord
	err = db.View(func(txn *badger.Txn) error {
		prefix := []byte(metaPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 32})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			meta, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			record, err := DecodeSnapshotRecord(meta)
			if err != nil {
				return fmt.Errorf("decode snapshot %s: %w", item.Key()[len(prefix):], err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

func (s *BadgerStore) DeleteSnapshot(ctx context.Context, id string) (bool, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return false, err
	}

	existed := false
	err = db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(metaPrefix + id))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		existed = true
		if err := txn.Delete([]byte(metaPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(payloadPrefix + id))
	})
	return existed, err
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerStore) getDB(ctx context.Context) (*badger.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
