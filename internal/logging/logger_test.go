package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"trace", true, true},
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tt.level, Output: &buf})
			logger.Debug().Msg("debug message")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug message")))

			buf.Reset()
			logger.Info().Msg("info message")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info message")))
		})
	}
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "engine")
	logger.Info().Str("class", "a/B").Msg("class transformed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "a/B", entry["class"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Output: &buf})
	logger.Warn().Msg("member skipped")
	assert.Contains(t, buf.String(), "member skipped")
	assert.Contains(t, buf.String(), "WRN")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
