package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conceptid/internal/config"
	"conceptid/internal/logging"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer

	logger, closer, err := logging.NewFromConfig(&cfg, &buf)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	defer closer.Close()

	logger.Debug("hidden message")
	logger.Info("visible message", logging.Int("count", 3))

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Fatalf("expected debug to be filtered at info level, got %q", out)
	}
	if !strings.Contains(out, "INFO") || !strings.Contains(out, "visible message") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleLoggerRendersComponentAndConcept(t *testing.T) {
	var buf bytes.Buffer
	base, _, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger := logging.NewComponentLogger(base, "remediate")

	ctx := logging.WithConceptID(logging.WithRunID(context.Background(), "run-1"), "1234")
	logger.InfoContext(ctx, "updated external id")

	out := buf.String()
	if !strings.Contains(out, "[remediate] concept 1234 – updated external id") {
		t.Fatalf("unexpected console line %q", out)
	}
	if strings.Contains(out, "run_id") {
		t.Fatalf("expected run id to be hidden at info level, got %q", out)
	}
}

func TestJSONLoggerWritesFileAndContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "conceptid.log")
	var console bytes.Buffer

	logger, closer, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &console, FilePath: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithRunID(context.Background(), "run-42")
	logger.InfoContext(ctx, "fetched concepts", logging.Int("count", 25))
	if err := closer.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, raw := range [][]byte{console.Bytes(), data} {
		var entry map[string]any
		if err := json.Unmarshal(bytes.TrimSpace(raw), &entry); err != nil {
			t.Fatalf("expected JSON log line, got %q: %v", raw, err)
		}
		if entry["msg"] != "fetched concepts" || entry["level"] != "info" {
			t.Fatalf("unexpected entry %v", entry)
		}
		if entry["run_id"] != "run-42" {
			t.Fatalf("expected run_id from context, got %v", entry["run_id"])
		}
		if _, ok := entry["ts"]; !ok {
			t.Fatalf("expected ts key, got %v", entry)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLogger(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("expected nop logger to be disabled")
	}
	logging.NewComponentLogger(nil, "x").Info("discarded")
}
