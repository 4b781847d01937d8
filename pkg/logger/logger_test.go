package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{" WARN ", WarnLevel},
		{"unknown", InfoLevel}, // default
		{"", InfoLevel},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "debug"},
		{InfoLevel, "info"},
		{WarnLevel, "warn"},
		{ErrorLevel, "error"},
		{Level(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.level.String()
			if result != tt.expected {
				t.Errorf("Level.String() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	// Test with nil config (should use defaults)
	log := New(nil)
	if log == nil {
		t.Fatal("expected non-nil logger")
	}

	// Test with custom config
	cfg := &Config{
		Level:  DebugLevel,
		Format: "text",
		Output: "stdout",
	}
	log = New(cfg)
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestSlogLogger_Level(t *testing.T) {
	cfg := &Config{
		Level:  InfoLevel,
		Format: "text",
		Output: "stdout",
	}
	log := New(cfg).(*SlogLogger)

	if log.GetLevel() != InfoLevel {
		t.Errorf("GetLevel() = %v, want info", log.GetLevel())
	}

	for _, lvl := range []Level{DebugLevel, WarnLevel, ErrorLevel, InfoLevel} {
		log.SetLevel(lvl)
		if got := log.GetLevel(); got != lvl {
			t.Errorf("after SetLevel(%v), GetLevel() = %v", lvl, got)
		}
	}

	// Derived loggers share the level.
	child := log.With("component", "engine")
	log.SetLevel(WarnLevel)
	if child.GetLevel() != WarnLevel {
		t.Errorf("child level = %v, want warn", child.GetLevel())
	}
}

func TestSlogLogger_With(t *testing.T) {
	cfg := &Config{
		Level:  InfoLevel,
		Format: "text",
		Output: "stdout",
	}
	log := New(cfg)

	newLog := log.With("key", "value")
	if newLog == nil {
		t.Fatal("expected non-nil logger from With")
	}
}

func TestSlogLogger_WithContext(t *testing.T) {
	cfg := &Config{
		Level:  InfoLevel,
		Format: "text",
		Output: "stdout",
	}
	log := New(cfg)
	ctx := context.Background()

	newCtx := log.WithContext(ctx)
	if newCtx == nil {
		t.Fatal("expected non-nil context")
	}

	// Test FromContext
	retrievedLog := FromContext(newCtx)
	if retrievedLog == nil {
		t.Fatal("expected non-nil logger from context")
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	ctx := context.Background()
	log := FromContext(ctx)
	if log == nil {
		t.Fatal("expected global logger when no logger in context")
	}
}

func TestGlobal(t *testing.T) {
	// Test Global returns non-nil
	log := Global()
	if log == nil {
		t.Fatal("expected non-nil global logger")
	}

	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	newLog := New(&Config{Level: DebugLevel, Format: "text", Output: "stdout"})
	SetGlobal(newLog)
	if Global() != newLog {
		t.Error("SetGlobal did not replace the global logger")
	}

	SetGlobal(nil)
	if Global() != newLog {
		t.Error("SetGlobal(nil) should be ignored")
	}
}

func TestGlobalHelpers(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "global.log")
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	log := New(&Config{Level: WarnLevel, Format: "json", Output: logFile})
	SetGlobal(log)
	Warn("config watcher error", "path", "recall.yaml")
	Error("config callback panic")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("got %d lines, want 2: %s", got, data)
	}
}

func TestSlogLogger_DerivedSharesLevel(t *testing.T) {
	log := New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"})
	child := log.With("component", "engine")

	log.SetLevel(ErrorLevel)
	if child.GetLevel() != ErrorLevel {
		t.Errorf("child level = %v, want error", child.GetLevel())
	}
}

func TestSlogLogger_Close(t *testing.T) {
	t.Run("stdout output returns nil closer", func(t *testing.T) {
		cfg := &Config{
			Level:  InfoLevel,
			Format: "text",
			Output: "stdout",
		}
		log := New(cfg).(*SlogLogger)

		// Close should return nil for stdout
		if err := log.Close(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("stderr output returns nil closer", func(t *testing.T) {
		cfg := &Config{
			Level:  InfoLevel,
			Format: "text",
			Output: "stderr",
		}
		log := New(cfg).(*SlogLogger)

		if err := log.Close(); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("file output can be closed", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")

		cfg := &Config{
			Level:  InfoLevel,
			Format: "json",
			Output: logFile,
		}
		log := New(cfg).(*SlogLogger)

		// Write something
		log.Info("test message", "key", "value")

		// Close should work
		if err := log.Close(); err != nil {
			t.Errorf("unexpected error on close: %v", err)
		}

		// Verify file was created and has content
		content, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if len(content) == 0 {
			t.Error("expected log file to have content")
		}
	})

	t.Run("derived logger has nil closer", func(t *testing.T) {
		cfg := &Config{
			Level:  InfoLevel,
			Format: "text",
			Output: "stdout",
		}
		log := New(cfg).With("component", "test").(*SlogLogger)

		// Derived loggers have nil closer
		if err := log.Close(); err != nil {
			t.Errorf("expected nil error for derived logger, got %v", err)
		}
	})

	t.Run("invalid path falls back to stdout", func(t *testing.T) {
		cfg := &Config{
			Level:  InfoLevel,
			Format: "text",
			Output: "/nonexistent/path/to/file.log",
		}
		log := New(cfg).(*SlogLogger)

		// Should not panic and should have nil closer (stdout fallback)
		if err := log.Close(); err != nil {
			t.Errorf("expected nil error for stdout fallback, got %v", err)
		}
	})
}

func TestGetWriter(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantCloser bool
	}{
		{"stdout", "stdout", false},
		{"stderr", "stderr", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, closer := getWriter(tt.output)
			if tt.wantCloser && closer == nil {
				t.Error("expected non-nil closer")
			}
			if !tt.wantCloser && closer != nil {
				t.Error("expected nil closer")
			}
		})
	}
}

func TestSlogLogger_TraceFieldsAndMessageKey(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "trace.log")
	log := New(&Config{Level: DebugLevel, Format: "json", Output: logFile})

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	log.InfoContext(ctx, "semantic search complete", "owner", "u1", "results", 2)
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["message"] != "semantic search complete" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["trace_id"] != spanCtx.TraceID().String() {
		t.Errorf("trace_id = %v, want %s", entry["trace_id"], spanCtx.TraceID())
	}
	if entry["span_id"] != spanCtx.SpanID().String() {
		t.Errorf("span_id = %v, want %s", entry["span_id"], spanCtx.SpanID())
	}
	if entry["owner"] != "u1" {
		t.Errorf("owner = %v", entry["owner"])
	}
}

func TestSlogLogger_ServiceAndDerivedTraceFields(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "service.log")
	log := New(&Config{Level: InfoLevel, Format: "json", Output: logFile, Service: "recall"})

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		SpanID:     trace.SpanID{8, 8, 8, 8, 8, 8, 8, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	log.With("request_id", "req-1").WarnContext(ctx, "HTTP request failed")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["service"] != "recall" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["trace_id"] != spanCtx.TraceID().String() {
		t.Errorf("trace_id = %v, want %s", entry["trace_id"], spanCtx.TraceID())
	}
}
