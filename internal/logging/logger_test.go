package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("parser").
		With("document", "index").
		Error(context.Background(), docerrors.NewParseError("UNCLOSED", "tag not closed"), "parse failed", "line", 4)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "parse failed", entry["msg"])
	assert.Equal(t, "parser", entry["component"])
	assert.Equal(t, "index", entry["document"])
	assert.Equal(t, "parse", entry["error_type"])
	assert.EqualValues(t, 4, entry["line"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), errors.New("boom"), "visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "boom")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})
	_ = parent.With("child_only", true)

	parent.Info(context.Background(), "parent message")
	assert.NotContains(t, buf.String(), "child_only")
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "discarded")
	})
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	perf := StartOperation(logger, "transform")
	d := perf.End(context.Background())
	assert.GreaterOrEqual(t, int64(d), int64(0))
	assert.Contains(t, buf.String(), `"operation":"transform"`)

	buf.Reset()
	StartOperation(logger, "parse").EndWithError(context.Background(), errors.New("bad"))
	assert.Contains(t, buf.String(), "Operation failed")
}
