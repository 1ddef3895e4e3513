package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLineHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "recording saved",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\trecording saved\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "record stored",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\trecord stored\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "share link issued",
			attrs:   []slog.Attr{slog.String("id", "rec-1"), slog.Int("expiration_days", 7)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tshare link issued\tid=rec-1\texpiration_days=7\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &lineHandler{w: &buf, opID: tt.opID, level: slog.LevelDebug}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLineHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	h := &lineHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).WithGroup("s3").(*lineHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "component=vault", "s3.key=abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestLineHandler_Enabled(t *testing.T) {
	h := &lineHandler{level: slog.LevelInfo}

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var mirror bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", &mirror, slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Info("recording saved", "id", "rec-1")
	logger.Debug("hidden")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, "vrec.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\trecording saved\tid=rec-1") {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug line written below level")
	}
	if mirror.String() != string(data) {
		t.Errorf("mirror = %q, want same as file", mirror.String())
	}
}
