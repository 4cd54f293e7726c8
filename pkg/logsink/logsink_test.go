package logsink

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesDirectoryAndAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	for i, msg := range []string{"first run", "second run"} {
		sink, err := Open(Options{Dir: dir, File: "swisctl.log", Level: slog.LevelInfo})
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		sink.Logger.Info(msg, "component", "test")
		if err := sink.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "swisctl.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "first run") || !strings.Contains(lines[1], "second run") {
		t.Errorf("lines out of order:\n%s", data)
	}
	if !strings.HasPrefix(lines[0], "time=") {
		t.Errorf("expected timestamped line, got %q", lines[0])
	}
}

func TestOpen_MirrorsToConsole(t *testing.T) {
	var console bytes.Buffer
	sink, err := Open(Options{Dir: t.TempDir(), File: "run.log", Level: slog.LevelWarn, Console: &console})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()

	sink.Logger.Info("quiet")
	sink.Logger.With("component", "test").Warn("loud")

	out := console.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("did not expect info record below level: %s", out)
	}
	// a buffer is not a terminal, so the console gets JSON
	if !strings.Contains(out, `"msg":"loud"`) || !strings.Contains(out, `"component":"test"`) {
		t.Errorf("expected JSON warn record, got %s", out)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("expected error without dir and file")
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Options{Dir: filepath.Join(blocker, "sub"), File: "x.log"}); err == nil {
		t.Error("expected error when directory cannot be created")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
