package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", FormatJSON, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("stats entry discarded", "name", "Teleport")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "stats entry discarded", record["msg"])
	assert.Equal(t, "Teleport", record["name"])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("info", "xml", nil)
	assert.Error(t, err)
}
