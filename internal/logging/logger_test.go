package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatJSON)
	logger.SetOutput(&buf)

	logger.WithField("event_id", "demo-1").
		WithFields(map[string]interface{}{"user": "0xabc"}).
		WithError(errors.New("boom")).
		Info("rsvp created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rsvp created", entry["message"])
	assert.Equal(t, "demo-1", entry["event_id"])
	assert.Equal(t, "0xabc", entry["user"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "info", entry["level"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn, FormatJSON)
	logger.SetOutput(&buf)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_ChildSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatText)
	child := logger.WithField("component", "worker")
	logger.SetOutput(&buf)

	child.Info("started")
	assert.Contains(t, buf.String(), "component=worker")
}

func TestFromContext(t *testing.T) {
	logger := NewLogger(LevelDebug, FormatJSON)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Same(t, GetGlobalLogger(), FromContext(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		" error ": LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
	assert.Equal(t, FormatText, ParseLogFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseLogFormat("xml"))
}
