package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

func TestNew(t *testing.T) {
	logger := New(types.LogLevelInfo, true)

	if logger.level != types.LogLevelInfo {
		t.Errorf("Expected level %v, got %v", types.LogLevelInfo, logger.level)
	}
	if !logger.useColor {
		t.Error("Expected useColor to be true")
	}
	if logger.output == nil {
		t.Error("Expected output to be set")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)

	logger.Debug("hidden")
	logger.SetLevel(types.LogLevelDebug)
	logger.Debug("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelWarning, false)
	logger.SetOutput(&buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warning("warning message")
	logger.Error("error message")
	logger.Critical("critical message")

	output := buf.String()
	for _, hidden := range []string{"debug message", "info message"} {
		if strings.Contains(output, hidden) {
			t.Errorf("%q should not appear when level is WARNING", hidden)
		}
	}
	for _, shown := range []string{"warning message", "error message", "critical message"} {
		if !strings.Contains(output, shown) {
			t.Errorf("%q should appear", shown)
		}
	}
}

func TestLabels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)

	logger.Step("installing job")
	logger.Skip("already disabled")
	logger.Notice("schedule drift corrected")

	output := buf.String()
	for _, want := range []string{"STEP", "installing job", "SKIP", "already disabled", "NOTICE", "schedule drift corrected"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}

	buf.Reset()
	logger.SetLevel(types.LogLevelError)
	logger.Notice("filtered like a warning")
	if buf.Len() != 0 {
		t.Errorf("notice should be filtered at ERROR level, got %q", buf.String())
	}
}

func TestColorOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, true)
	logger.SetOutput(&buf)
	logger.Info("colored")

	if !strings.Contains(buf.String(), "\033[") {
		t.Error("Expected ANSI color codes in output")
	}

	buf.Reset()
	logger = New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)
	logger.Info("plain")
	if strings.Contains(buf.String(), "\033[") {
		t.Error("Did not expect ANSI color codes in output")
	}
}

func TestOpenAndCloseLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manager.log")

	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, true)
	logger.SetOutput(&buf)

	if err := logger.OpenLogFile(path); err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	logger.SetTag("disable pid=42")
	logger.Info("hello file")
	if err := logger.CloseLogFile(); err != nil {
		t.Fatalf("CloseLogFile: %v", err)
	}
	logger.Info("console only")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "hello file") {
		t.Fatalf("log file missing entry: %q", content)
	}
	if !strings.Contains(content, "[disable pid=42] INFO") {
		t.Fatalf("log file entry missing tag: %q", content)
	}
	if strings.Contains(content, "\033[") || strings.Contains(content, "console only") {
		t.Fatalf("unexpected log file content: %q", content)
	}
	if strings.Contains(buf.String(), "disable pid=42") {
		t.Fatalf("tag should only appear in the file: %q", buf.String())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o044 == 0 {
		t.Fatalf("log file should be readable by other identities, mode %v", info.Mode().Perm())
	}
}

func TestOpenLogFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manager.log")

	for _, msg := range []string{"first run", "second run"} {
		logger := Discard()
		logger.SetLevel(types.LogLevelInfo)
		if err := logger.OpenLogFile(path); err != nil {
			t.Fatalf("OpenLogFile: %v", err)
		}
		logger.Info(msg)
		_ = logger.CloseLogFile()
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "first run") || !strings.Contains(string(data), "second run") {
		t.Fatalf("expected both runs in log, got %q", string(data))
	}
}

func TestOpenLogFileError(t *testing.T) {
	logger := Discard()
	err := logger.OpenLogFile(filepath.Join(t.TempDir(), "missing", "x.log"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFixedClock(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelInfo, false)
	logger.SetOutput(&buf)
	logger.now = func() time.Time { return time.Date(2024, 3, 1, 23, 43, 0, 0, time.UTC) }

	logger.Warning("drift")
	if got, want := buf.String(), "[2024-03-01 23:43:00] WARNING  drift\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var logger *Logger
	logger.Step("x")
	logger.Skip("x")
	logger.Notice("x")
	logger.Info("x")
}

func TestDebugStart(t *testing.T) {
	var buf bytes.Buffer
	logger := New(types.LogLevelDebug, false)
	logger.SetOutput(&buf)

	done := DebugStart(logger, "backend get", "path=%s", "os/health")
	done(nil)
	done = DebugStart(logger, "backend put", "")
	done(errors.New("boom"))

	output := buf.String()
	for _, want := range []string{"Start backend get: path=os/health", "End backend get (ok", "Start backend put", "error=boom"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}

	DebugStart(nil, "noop", "")(nil)
}
