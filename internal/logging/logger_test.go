package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "info", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "trace", want: LevelTrace},
		{in: "", want: slog.LevelInfo},
		{in: "bogus", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message logged at info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info message missing")
	}
}

func TestNewLoggerTraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(nil, LevelTrace, "deep detail")
	if !strings.Contains(buf.String(), "TRACE") {
		t.Errorf("trace output missing TRACE label: %s", buf.String())
	}
}

func TestTraceLoggerNilSafe(t *testing.T) {
	var tl *TraceLogger
	tl.Log(map[string]any{"event": "noop"})
	tl.Iteration(1, 0.5, 3)
	tl.Close()
}

func TestTraceLoggerDisabledAtInfo(t *testing.T) {
	dir := t.TempDir()
	if tl := NewTraceLogger(dir, "info"); tl != nil {
		t.Error("trace logger should be nil at info level")
	}
	if _, err := os.Stat(filepath.Join(dir, "trace.jsonl")); !os.IsNotExist(err) {
		t.Error("no trace file should be created at info level")
	}
}

func TestTraceLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug")
	if tl == nil {
		t.Fatal("trace logger should be live at debug level")
	}

	tl.Iteration(1, 4.2, 12)
	tl.Iteration(2, 3.9, 7)
	tl.Close()

	f, err := os.Open(filepath.Join(dir, "trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("trace has %d lines, want 2", len(lines))
	}
	if lines[0]["event"] != "diffusion_iteration" {
		t.Errorf("event = %v", lines[0]["event"])
	}
	if lines[1]["iteration"] != float64(2) {
		t.Errorf("iteration = %v, want 2", lines[1]["iteration"])
	}
	if _, ok := lines[0]["time"]; !ok {
		t.Error("trace entries must carry a time field")
	}
}
