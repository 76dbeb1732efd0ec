package logger

import (
	"errors"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		log := New("info", format)
		if log == nil || log.Logger == nil {
			t.Fatalf("New(info, %s) returned nil logger", format)
		}
	}
}

func TestWithHelpers(t *testing.T) {
	log := Default()

	if l := log.WithComponent("validator"); l == nil || l.Logger == nil {
		t.Error("WithComponent returned nil")
	}
	if l := log.WithQuery("total revenue"); l == nil || l.Logger == nil {
		t.Error("WithQuery returned nil")
	}
	if l := log.WithError(errors.New("boom")); l == nil || l.Logger == nil {
		t.Error("WithError returned nil")
	}
}
