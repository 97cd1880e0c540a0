package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/forPelevin/vidalign/internal/logging"
)

func TestConsoleLoggerLine(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "align")
	logger.Info("run finished", logging.Args(logging.Int("rows", 12), logging.String("out", "a b"))...)
	logger.Debug("hidden")

	line := buf.String()
	if !strings.Contains(line, " INFO align: run finished rows=12 out=\"a b\"") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if strings.Contains(line, "hidden") || strings.Contains(line, ".go:") {
		t.Fatalf("debug record or caller leaked: %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller in debug output, got %q", buf.String())
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", logging.Args(logging.Error(errors.New("boom")))...)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("decode json line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "kept" || rec["level"] != "warn" || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if _, ok := rec["ts"]; !ok {
		t.Fatalf("missing ts key: %v", rec)
	}
}

func TestAutoFormatOnBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "auto", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLogger(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "x")
	logger.Error("nothing happens")
	if logger.Enabled(t.Context(), 12) {
		t.Fatal("nop logger should be disabled")
	}
}
