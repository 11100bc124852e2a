package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewJSONLoggerToTagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "zoningctl", "WARN")

	logger.Info("index_build_started")
	logger.Warn("document_skipped", "origin", "broken.pdf")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "zoningctl" || entry["msg"] != "document_skipped" || entry["origin"] != "broken.pdf" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("expected info, got %v", got)
	}
	if got := parseLevel(" warning "); got != slog.LevelWarn {
		t.Fatalf("expected warn, got %v", got)
	}
}
