// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"trace", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "auto": FormatAuto, "TEXT": FormatText, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func newBufferLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, &buf
}

func TestNew_FormatSelection(t *testing.T) {
	t.Run("auto on a buffer is JSON", func(t *testing.T) {
		logger, buf := newBufferLogger(t, Config{})
		logger.Info("hello", "k", 1)

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("output is not JSON: %q", buf.String())
		}
		if rec["msg"] != "hello" {
			t.Errorf("msg = %v, want hello", rec["msg"])
		}
	})

	t.Run("explicit text", func(t *testing.T) {
		logger, buf := newBufferLogger(t, Config{Format: FormatText})
		logger.Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Errorf("text output = %q", buf.String())
		}
	})

	t.Run("auto on a regular file is JSON", func(t *testing.T) {
		f, err := os.CreateTemp(t.TempDir(), "out")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if !useJSON(FormatAuto, f) {
			t.Error("a regular file is not a terminal")
		}
		if useJSON(FormatText, f) {
			t.Error("FormatText must win over detection")
		}
	})
}

func TestNew_WithService(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Service: "benchsweep", Format: FormatJSON})
	logger.Info("ping")
	if !strings.Contains(buf.String(), `"service":"benchsweep"`) {
		t.Errorf("service attribute missing: %q", buf.String())
	}
}

func TestNew_QuietMode(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Quiet: true})
	logger.Error("should not appear")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestNew_WithLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, buf := newBufferLogger(t, Config{LogDir: dir, Service: "sweep", Format: FormatText})

	logger.Info("to both", "threads", 4)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	path := logger.LogPath()
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "sweep_") {
		t.Errorf("LogPath() = %q, want sweep_<date>.log in %s", path, dir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file log is not JSON: %q", data)
	}
	if rec["threads"] != float64(4) {
		t.Errorf("threads = %v, want 4", rec["threads"])
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Error("console output missing")
	}
}

func TestNew_WithLogDir_InvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{LogDir: filepath.Join(blocker, "logs")}); err == nil {
		t.Error("New() should fail when the log directory cannot be created")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger.Slog() == nil {
		t.Fatal("Slog() is nil")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Level: LevelWarn, Format: FormatText})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	for _, hidden := range []string{"debug message", "info message"} {
		if strings.Contains(out, hidden) {
			t.Errorf("output should not contain %q", hidden)
		}
	}
	for _, shown := range []string{"warn message", "error message"} {
		if !strings.Contains(out, shown) {
			t.Errorf("output should contain %q", shown)
		}
	}
}

func TestLogger_With(t *testing.T) {
	logger, buf := newBufferLogger(t, Config{Format: FormatText})
	child := logger.With("workload", "grezzo")
	child.Info("sweep starting")

	if !strings.Contains(buf.String(), "workload=grezzo") {
		t.Errorf("child attributes missing: %q", buf.String())
	}

	buf.Reset()
	logger.Info("parent")
	if strings.Contains(buf.String(), "workload") {
		t.Error("parent must not inherit child attributes")
	}
}

func TestLogger_Close_Idempotent(t *testing.T) {
	logger, _ := newBufferLogger(t, Config{LogDir: t.TempDir()})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	logger, _ := newBufferLogger(t, Config{Quiet: true, LogDir: t.TempDir()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("worker", "id", i, "n", j)
			}
		}(i)
	}
	wg.Wait()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 400 {
		t.Errorf("file has %d lines, want 400", got)
	}
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

func TestMultiHandler(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}

	ctx := context.Background()
	if !h.Enabled(ctx, slog.LevelDebug) {
		t.Error("Enabled(Debug) should be true when any handler accepts it")
	}

	logger := slog.New(h).With("run", "abc").WithGroup("g")
	logger.Info("info only", "k", "v")
	logger.Warn("both")

	if !strings.Contains(debugBuf.String(), "info only") || !strings.Contains(debugBuf.String(), "both") {
		t.Errorf("debug handler output = %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "info only") {
		t.Error("warn handler received an info record")
	}
	if !strings.Contains(warnBuf.String(), "run=abc") {
		t.Errorf("WithAttrs not propagated: %q", warnBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "g.k=v") {
		t.Errorf("WithGroup not propagated: %q", debugBuf.String())
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.benchsweep/logs", filepath.Join(home, ".benchsweep/logs")},
		{"/var/log", "/var/log"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
