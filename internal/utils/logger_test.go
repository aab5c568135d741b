package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGetLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
	if GetLogger() != GetLogger() {
		t.Error("GetLogger() should return the same instance")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"DEBUG":   log.DebugLevel,
		"info":    log.InfoLevel,
		"warn":    log.WarnLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"":        log.InfoLevel,
		"bogus":   log.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLogFormatter(t *testing.T) {
	if ParseLogFormatter("json") != log.JSONFormatter {
		t.Error("expected JSON formatter")
	}
	if ParseLogFormatter("logfmt") != log.LogfmtFormatter {
		t.Error("expected logfmt formatter")
	}
	if ParseLogFormatter("") != log.TextFormatter {
		t.Error("expected text formatter by default")
	}
}

func TestNewTestLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Debug("update settled", "id", 7)

	out := buf.String()
	if !strings.Contains(out, "update settled") {
		t.Errorf("expected message in output, got: %q", out)
	}
	if !strings.Contains(out, "id=7") {
		t.Errorf("expected key/value in output, got: %q", out)
	}
}

func TestFileLoggerRedirectsGlobalLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "todoapp.log")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	if !fl.IsEnabled() {
		t.Fatal("expected file logger to be enabled")
	}
	if fl.GetLogPath() != path {
		t.Errorf("GetLogPath() = %s, want %s", fl.GetLogPath(), path)
	}

	Warnf("written to %s", "file")
	fl.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file should contain message, got: %q", string(data))
	}
	if fl.IsEnabled() {
		t.Error("expected file logger to be disabled after Close")
	}
}

func TestFileLoggerGracefulDegradation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	fl, err := NewFileLogger(filepath.Join(blocker, "sub", "todoapp.log"))
	if err == nil {
		t.Fatal("expected error when log directory cannot be created")
	}
	if fl.IsEnabled() {
		t.Error("logger should be disabled on failure")
	}
	fl.Close()
}
