package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, data []byte) []AuditEntry {
	t.Helper()
	var entries []AuditEntry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e AuditEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	tempDir := t.TempDir()

	logger, err := NewLogger(tempDir, Rotation{MaxSizeMB: 1}, nil)
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	assert.Equal(t, filepath.Join(tempDir, "audit.jsonl"), logger.GetFilePath())

	logger.LogAction(context.Background(), "ifconfig.get", "wlan0", OutcomeSuccess, time.Millisecond)
	_, err = os.Stat(logger.GetFilePath())
	assert.NoError(t, err, "file is created on first write")
}

func TestLogAction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, nil)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	logger.SetClock(mock)

	ctx := WithUser(context.Background(), "operator-1")
	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithParams(ctx, map[string]interface{}{"mode": "dhcp"})
	logger.LogAction(ctx, "ifconfig.dhcp", "wlan0", OutcomeSuccess, 1500*time.Millisecond)

	entries := readEntries(t, buf.Bytes())
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "ifconfig.dhcp", e.Action)
	assert.Equal(t, "wlan0", e.Interface)
	assert.Equal(t, "operator-1", e.User)
	assert.Equal(t, "corr-1", e.CorrelationID)
	assert.Equal(t, OutcomeSuccess, e.Outcome)
	assert.Equal(t, OutcomeSuccess, e.Code)
	assert.Equal(t, int64(1500), e.LatencyMs)
	assert.Equal(t, "dhcp", e.Params["mode"])
	assert.True(t, e.Timestamp.Equal(mock.Now()))
}

func TestLogControlActionFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, nil)

	logger.LogControlAction(context.Background(), "country.set", "", map[string]interface{}{"country": "USA"}, "INVALID_LENGTH", 0)

	entries := readEntries(t, buf.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeFailure, entries[0].Outcome)
	assert.Equal(t, "INVALID_LENGTH", entries[0].Code)
	assert.Equal(t, "unknown", entries[0].User)
	assert.Equal(t, "USA", entries[0].Params["country"])

	_, err := uuid.Parse(entries[0].CorrelationID)
	assert.NoError(t, err, "a missing correlation ID is generated")
}

func TestCloseDropsLaterEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, nil)
	require.NoError(t, logger.Close())

	logger.LogAction(context.Background(), "hostname.set", "", OutcomeSuccess, 0)
	assert.Zero(t, buf.Len())
}

func TestRotate(t *testing.T) {
	tempDir := t.TempDir()
	logger, err := NewLogger(tempDir, Rotation{MaxSizeMB: 1, MaxBackups: 2}, nil)
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	logger.LogAction(context.Background(), "ifconfig.get", "eth0", OutcomeSuccess, 0)
	require.NoError(t, logger.Rotate())
	logger.LogAction(context.Background(), "ifconfig.get", "eth0", OutcomeSuccess, 0)

	files, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Len(t, files, 2, "current file plus one backup")

	assert.Error(t, NewWriterLogger(&bytes.Buffer{}, nil).Rotate())
}

func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.LogAction(context.Background(), "ifconfig.get", "wlan0", OutcomeSuccess, 0)
		}()
	}
	wg.Wait()

	assert.Len(t, readEntries(t, buf.Bytes()), 20)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", UserFromContext(ctx))
	assert.Empty(t, ParamsFromContext(ctx))
	assert.NotEqual(t, CorrelationIDFromContext(ctx), CorrelationIDFromContext(ctx))
}
