package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "info")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Str("batch_id", "b1").Msg("dedup batch processed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "news-hud" || entry["environment"] != "production" || entry["batch_id"] != "b1" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}

func TestNewWithWriter_RejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter(&bytes.Buffer{}, "local", "verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
