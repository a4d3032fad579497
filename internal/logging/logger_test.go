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
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "prod", "info")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("account registered", slog.Uint64("auth_id", 7))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "account registered", line["msg"])
	assert.EqualValues(t, 7, line["auth_id"])
}

func TestNew_DevUsesTextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "dev", "debug")
	require.NoError(t, err)

	logger.Debug("listening")
	assert.Contains(t, buf.String(), "listening")
	assert.False(t, json.Valid(buf.Bytes()))
}
