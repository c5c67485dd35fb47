package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func TestDecodeSnapshotRecordFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("snapshot_record_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	record, err := DecodeSnapshotRecord(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if record.ID != "5b0a3f52-2f39-4d55-9d1c-7c3c0f6f2b8e" {
		t.Fatalf("unexpected id: %s", record.ID)
	}
	if record.Shapes != 50 || record.Vertices != 6 || record.MutationCounter != 125000 {
		t.Fatalf("unexpected summary: %+v", record)
	}
	if !record.SavedAt.Equal(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected saved at: %v", record.SavedAt)
	}
}

func TestEncodeSnapshotRecordOmitsPayload(t *testing.T) {
	record := sampleRecord("encode", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), []byte("secret-payload"))
	data, err := EncodeSnapshotRecord(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(data), "payload") {
		t.Fatalf("payload leaked into metadata: %s", data)
	}

	decoded, err := DecodeSnapshotRecord(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != record.ID || decoded.Name != "encode" || decoded.ImageWidth != 320 {
		t.Fatalf("unexpected decoded record: %+v", decoded)
	}
}

func TestDecodeSnapshotRecordVersionMismatch(t *testing.T) {
	_, err := DecodeSnapshotRecord([]byte(`{"schema_version":2,"codec_version":1,"id":"x"}`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestNewSnapshotRecordAssignsUniqueIDs(t *testing.T) {
	a := NewSnapshotRecord("a", nil, time.Now())
	b := NewSnapshotRecord("b", nil, time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if a.SchemaVersion != CurrentSchemaVersion || a.CodecVersion != CurrentCodecVersion {
		t.Fatalf("unexpected versions: %+v", a.VersionedRecord)
	}
}
