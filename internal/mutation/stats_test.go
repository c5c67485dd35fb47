package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsCoversEveryKind(t *testing.T) {
	s := NewStats()
	require.Equal(t, len(Kinds()), s.Len())
	for _, k := range Kinds() {
		assert.Zero(t, s.Count(k), k.String())
		assert.Zero(t, s.Improvement(k), k.String())
	}
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.RecordAttempt(AdjustColor)
	s.RecordAttempt(AdjustColor)
	s.RecordImprovement(AdjustColor, 0.25)
	s.RecordImprovement(AdjustColor, 0.5)

	assert.Equal(t, 2, s.Count(AdjustColor))
	assert.InDelta(t, 0.75, s.Improvement(AdjustColor), 1e-12)
	assert.Zero(t, s.Count(SwapShapes))
}

func TestStatsIgnoresUnknownKinds(t *testing.T) {
	s := NewStats()
	s.RecordAttempt(Kind(99))
	s.RecordImprovement(Kind(-1), 3)
	s.Set(kindCount, 1, 1)
	assert.Equal(t, len(Kinds()), s.Len())
}

func TestStatsEntriesOrderAndClone(t *testing.T) {
	s := NewStats()
	s.Set(Scale, 4, 1.5)
	clone := s.Clone()
	s.RecordAttempt(Scale)

	entries := clone.Entries()
	require.Len(t, entries, len(Kinds()))
	for i, e := range entries {
		assert.Equal(t, Kind(i), e.Kind)
	}
	assert.Equal(t, Entry{Kind: Scale, Count: 4, Improvement: 1.5}, entries[Scale])
	assert.Equal(t, 5, s.Count(Scale))
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("Teleport")
	assert.False(t, ok)
	_, ok = ParseKind("adjustcolor")
	assert.False(t, ok)
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
