package storage

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"polyevolve/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrMissingID       = errors.New("snapshot id is required")
)

// NewSnapshotRecord returns a record with a fresh id and the current
// versions. Callers fill in the summary fields.
func NewSnapshotRecord(name string, payload []byte, savedAt time.Time) model.SnapshotRecord {
	return model.SnapshotRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              uuid.NewString(),
		Name:            name,
		SavedAt:         savedAt.UTC(),
		Payload:         payload,
	}
}

// EncodeSnapshotRecord encodes the summary fields; the payload is not part
// of the encoding.
func EncodeSnapshotRecord(r model.SnapshotRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeSnapshotRecord(data []byte) (model.SnapshotRecord, error) {
	var record model.SnapshotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.SnapshotRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.SnapshotRecord{}, err
	}
	return record, nil
}

func validateRecord(r model.SnapshotRecord) error {
	if r.ID == "" {
		return ErrMissingID
	}
	return checkVersion(r.VersionedRecord)
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func sortRecords(records []model.SnapshotRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].SavedAt.Equal(records[j].SavedAt) {
			return records[i].SavedAt.Before(records[j].SavedAt)
		}
		return records[i].ID < records[j].ID
	})
}
