package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// SnapshotRecord is a stored session snapshot. Payload holds the binary
// snapshot stream; the remaining fields are a summary readable without
// decoding it.
type SnapshotRecord struct {
	VersionedRecord
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Shapes             int       `json:"shapes"`
	Vertices           int       `json:"vertices"`
	ImageWidth         int       `json:"image_width"`
	ImageHeight        int       `json:"image_height"`
	ImprovementCounter int       `json:"improvement_counter"`
	MutationCounter    int64     `json:"mutation_counter"`
	Divergence         float64   `json:"divergence"`
	ElapsedMS          int64     `json:"elapsed_ms"`
	SavedAt            time.Time `json:"saved_at"`
	Payload            []byte    `json:"-"`
}
