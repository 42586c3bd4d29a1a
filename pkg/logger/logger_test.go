package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatSimple)

	l.With("provider", "mosaico").Info("chat started", "model", "m1")
	l.Debug("hidden")

	assert.Equal(t, "INFO chat started provider=mosaico model=m1\n", buf.String())
}

func TestNew_VerboseFormatHasTimestamp(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelInfo, &buf, FormatVerbose).Warn("slow", "ms", 12)

	line := buf.String()
	assert.Contains(t, line, "WARN slow ms=12")
	assert.False(t, strings.HasPrefix(line, "WARN"))
}

func TestNew_Groups(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelInfo, &buf, FormatSimple).
		WithGroup("agent").
		Info("sent", "source", "A", slog.Group("target", "name", "B"))

	assert.Equal(t, "INFO sent agent.source=A agent.target.name=B\n", buf.String())
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelDebug, &buf, FormatJSON).Debug("probe", "available", true)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "probe", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, true, entry["available"])
}

func TestFilteringHandler_DropsForeignRecordsAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	h := &filteringHandler{handler: newLineHandler(&buf, slog.LevelInfo, false), minLevel: slog.LevelInfo}

	// A zero PC cannot be attributed to this module.
	require.NoError(t, h.Handle(t.Context(), slog.NewRecord(testTime, slog.LevelInfo, "foreign", 0)))
	assert.Empty(t, buf.String())

	h.minLevel = slog.LevelDebug
	require.NoError(t, h.Handle(t.Context(), slog.NewRecord(testTime, slog.LevelInfo, "foreign", 0)))
	assert.Equal(t, "INFO foreign\n", buf.String())
}

func TestInitAndGetLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "mosaico.log")
	file, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()

	Init(slog.LevelInfo, file, FormatSimple)
	assert.Same(t, GetLogger(), slog.Default())
}
