package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Info("index ready", "documents", 3)

	out := buf.String()
	if !strings.Contains(out, "index ready") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "documents=3") {
		t.Errorf("output missing attribute: %s", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("upload complete", "count", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "upload complete" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["count"] != float64(2) {
		t.Errorf("count = %v", entry["count"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Debug("hidden detail")
	logger.Info("visible event")

	out := buf.String()
	if strings.Contains(out, "hidden detail") {
		t.Errorf("debug record leaked at info level: %s", out)
	}
	if !strings.Contains(out, "visible event") {
		t.Errorf("info record missing: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	logger.With("component", "ingest").Info("file stored")

	if out := buf.String(); !strings.Contains(out, "component=ingest") {
		t.Errorf("output missing component attribute: %s", out)
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop returned nil")
	}
	logger.Info("discarded")
	logger.Error("also discarded")
}
