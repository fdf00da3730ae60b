package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestStopAfterFailureLogsError(t *testing.T) {
	buf := captureLog(t)

	stopErr := errors.New("redis: connection reset")
	stopAfterFailure(context.Background(), func(context.Context) error { return stopErr })

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "redis: connection reset", entry["error"])
	assert.Equal(t, "shutdown after server failure failed", entry["message"])
}

func TestStopAfterFailureQuietOnSuccess(t *testing.T) {
	buf := captureLog(t)

	called := false
	stopAfterFailure(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	assert.True(t, called)
	assert.Zero(t, buf.Len())
}
