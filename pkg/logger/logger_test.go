package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: "json", Output: &buf})

	slog.Info("json message")
	if !strings.Contains(buf.String(), `"msg":"json message"`) {
		t.Errorf("Expected JSON output, got %s", buf.String())
	}

	buf.Reset()
	slog.Debug("hidden")
	if buf.Len() != 0 {
		t.Error("Expected debug output to be filtered at info level")
	}
}

func TestWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "text", Output: &buf})

	ctx := context.Background()
	ctx = context.WithValue(ctx, RequestIDKey, "test-request-id")
	ctx = WithActor(ctx, "alice")
	ctx = context.WithValue(ctx, ModeKey, "demo")

	Info(ctx, "with fields")
	out := buf.String()
	for _, want := range []string{"request_id=test-request-id", "actor=alice", "mode=demo"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log output %q", want, out)
		}
	}
}

func TestActorFrom(t *testing.T) {
	if got := ActorFrom(context.Background()); got != "anonymous" {
		t.Errorf("Expected anonymous, got %s", got)
	}
	if got := ActorFrom(WithActor(context.Background(), "bob")); got != "bob" {
		t.Errorf("Expected bob, got %s", got)
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")

	tests := []struct {
		name string
		log  func(context.Context, string, ...any)
	}{
		{"info message", Info},
		{"debug message", Debug},
		{"warn message", Warn},
		{"error message", Error},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.log(ctx, tt.name, "key", "value")
		if !strings.Contains(buf.String(), tt.name) {
			t.Errorf("Expected %q in log", tt.name)
		}
		if !strings.Contains(buf.String(), "req-123") {
			t.Errorf("Expected request id in %q log", tt.name)
		}
	}
}
