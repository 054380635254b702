package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != "curia.log" {
		t.Errorf("DefaultLogPath should end with curia.log, got: %s", path)
	}
	if !strings.Contains(path, ".curia") {
		t.Errorf("DefaultLogPath should live under .curia, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation defaults: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if DebugConfig().Level != "debug" {
		t.Error("expected debug level in DebugConfig")
	}
	if ServerConfig("warn").WriteToStderr {
		t.Error("server mode must not write to stderr")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WritesJSONToFileAndStderr(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	cfg := Config{
		Level:         "debug",
		FilePath:      filepath.Join(dir, "logs", "curia.log"),
		WriteToStderr: true,
		Stderr:        &stderr,
	}

	logger, cleanup, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("index_build_started", slog.String("collection", "curia_docs"))
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "index_build_started" || record["collection"] != "curia_docs" {
		t.Errorf("unexpected record: %v", record)
	}
	if !strings.Contains(stderr.String(), "index_build_started") {
		t.Error("expected record mirrored to stderr")
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := New(Config{Level: "warn", WriteToStderr: true, Stderr: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record should be written")
	}
}

func TestNew_IndependentLoggers(t *testing.T) {
	var a, b bytes.Buffer
	la, _, _ := New(Config{WriteToStderr: true, Stderr: &a})
	lb, _, _ := New(Config{WriteToStderr: true, Stderr: &b})

	la.Info("from_a")
	lb.Info("from_b")

	if strings.Contains(a.String(), "from_b") || strings.Contains(b.String(), "from_a") {
		t.Error("loggers must not share output")
	}
}

func TestRotatingWriter_Rotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()
	// 1 MB is too slow to fill in a unit test; shrink the threshold.
	w.maxSize = 100

	chunk := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 6; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, name := range []string{"test.log", "test.log.1", "test.log.2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "test.log.3")); !os.IsNotExist(err) {
		t.Error("expected at most 2 backups")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "c.log"), 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	_ = w.Close()

	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("expected error writing to closed writer")
	}
}
