package storage

import (
	"context"
	"errors"

	"polyevolve/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store persists session snapshots. Payload bytes are stored verbatim; the
// summary fields are encoded with the versioned record codec.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, record model.SnapshotRecord) error
	GetSnapshot(ctx context.Context, id string) (model.SnapshotRecord, bool, error)
	// ListSnapshots returns summaries without payloads, oldest first.
	ListSnapshots(ctx context.Context) ([]model.SnapshotRecord, error)
	DeleteSnapshot(ctx context.Context, id string) (bool, error)
}
