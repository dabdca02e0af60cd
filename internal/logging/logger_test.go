package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scoreframe/internal/logging"
	"scoreframe/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "scoreframe.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("conversion started", logging.String("filename", "test.musicxml"), logging.Int("size", 42))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "conversion started") {
		t.Fatalf("log line missing message: %q", line)
	}
	if !strings.Contains(line, "filename=test.musicxml") {
		t.Fatalf("log line missing attr: %q", line)
	}
	if !strings.Contains(line, "size=42") {
		t.Fatalf("log line missing int attr: %q", line)
	}
}

func TestNewJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "scoreframe.log")

	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected json payload, got %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "scoreframe.log")

	logger, err := logging.New(logging.Options{Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("should be dropped")
	logger.Warn("should be kept")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info line should have been filtered: %q", out)
	}
	if !strings.Contains(out, "should be kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestWithContextAddsRequestFields(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "scoreframe.log")

	base, err := logging.New(logging.Options{OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(context.Background(), "req-9")
	ctx = services.WithStage(ctx, "encode")
	logging.WithContext(ctx, base).Info("stage running")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "request_id=req-9") {
		t.Fatalf("missing request id field: %q", out)
	}
	if !strings.Contains(out, "stage=encode") {
		t.Fatalf("missing stage field: %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("nothing should happen")
}
