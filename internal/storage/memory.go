package storage

import (
	"context"
	"sync"

	"polyevolve/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   map[string]model.SnapshotRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = make(map[string]model.SnapshotRecord)
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, record model.SnapshotRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	record.Payload = append([]byte(nil), record.Payload...)
	s.snapshots[record.ID] = record
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (model.SnapshotRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.SnapshotRecord{}, false, ErrNotInitialized
	}
	record, ok := s.snapshots[id]
	if !ok {
		return model.SnapshotRecord{}, false, nil
	}
	record.Payload = append([]byte(nil), record.Payload...)
	return record, true, nil
}

func (s *MemoryStore) ListSnapshots(_ context.Context) ([]model.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	records := make([]model.SnapshotRecord, 0, len(s.snapshots))
	for _, record := range s.snapshots {
		record.Payload = nil
		records = append(records, record)
	}
	sortRecords(records)
	return records, nil
}

func (s *MemoryStore) DeleteSnapshot(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}
	_, ok := s.snapshots[id]
	delete(s.snapshots, id)
	return ok, nil
}
