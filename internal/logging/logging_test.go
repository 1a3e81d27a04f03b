package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Configure(&buf, false, "json")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "compositor").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["component"] != "compositor" || entry["message"] != "shown" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestConfigureVerboseConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := Configure(&buf, true, "console")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger.Debug().Msg("tick")
	if !strings.Contains(buf.String(), "tick") {
		t.Errorf("expected debug line, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("console format should not emit JSON")
	}
}

func TestInitLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		verbose  bool
		expected zerolog.Level
	}{
		{false, zerolog.InfoLevel},
		{true, zerolog.DebugLevel},
	}

	for _, test := range tests {
		Init(test.verbose, "json")
		if got := zerolog.GlobalLevel(); got != test.expected {
			t.Errorf("Init(verbose=%v) level = %v, expected %v", test.verbose, got, test.expected)
		}
	}
}
