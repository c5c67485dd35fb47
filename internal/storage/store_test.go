package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"polyevolve/internal/model"
)

func sampleRecord(name string, savedAt time.Time, payload []byte) model.SnapshotRecord {
	record := NewSnapshotRecord(name, payload, savedAt)
	record.Shapes = 50
	record.Vertices = 6
	record.ImageWidth = 320
	record.ImageHeight = 240
	record.ImprovementCounter = 12
	record.MutationCounter = 3400
	record.Divergence = 0.0425
	record.ElapsedMS = 91000
	return record
}

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := sampleRecord("first", base.Add(time.Minute), []byte{1, 2, 3})
	second := sampleRecord("second", base, []byte{4, 5})

	for _, record := range []model.SnapshotRecord{first, second} {
		if err := store.SaveSnapshot(ctx, record); err != nil {
			t.Fatalf("save %s: %v", record.Name, err)
		}
	}

	loaded, ok, err := store.GetSnapshot(ctx, first.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot %s", first.ID)
	}
	if !bytes.Equal(loaded.Payload, first.Payload) {
		t.Fatalf("unexpected payload: %v", loaded.Payload)
	}
	if loaded.Name != "first" || loaded.Shapes != 50 || loaded.MutationCounter != 3400 || loaded.Divergence != 0.0425 {
		t.Fatalf("unexpected snapshot loaded: %+v", loaded)
	}
	if !loaded.SavedAt.Equal(first.SavedAt) {
		t.Fatalf("unexpected saved at: %v", loaded.SavedAt)
	}

	listed, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID || listed[1].ID != first.ID {
		t.Fatalf("unexpected listing order: %+v", listed)
	}
	for _, record := range listed {
		if record.Payload != nil {
			t.Fatalf("listing should not carry payloads: %s", record.ID)
		}
	}

	first.Name = "first-renamed"
	first.Payload = []byte{9}
	if err := store.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("overwrite snapshot: %v", err)
	}
	loaded, _, err = store.GetSnapshot(ctx, first.ID)
	if err != nil {
		t.Fatalf("get overwritten snapshot: %v", err)
	}
	if loaded.Name != "first-renamed" || !bytes.Equal(loaded.Payload, []byte{9}) {
		t.Fatalf("overwrite not applied: %+v", loaded)
	}

	deleted, err := store.DeleteSnapshot(ctx, second.ID)
	if err != nil {
		t.Fatalf("delete snapshot: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report an existing snapshot")
	}
	deleted, err = store.DeleteSnapshot(ctx, second.ID)
	if err != nil {
		t.Fatalf("delete missing snapshot: %v", err)
	}
	if deleted {
		t.Fatal("expected delete of missing snapshot to report false")
	}
	if _, ok, err := store.GetSnapshot(ctx, second.ID); err != nil || ok {
		t.Fatalf("expected deleted snapshot to be gone, ok=%v err=%v", ok, err)
	}

	if err := store.SaveSnapshot(ctx, model.SnapshotRecord{}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected missing id error, got %v", err)
	}
	stale := sampleRecord("stale", base, nil)
	stale.CodecVersion = CurrentCodecVersion + 1
	if err := store.SaveSnapshot(ctx, stale); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
