package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/transcribrr/internal/store"
)

func TestCheckFFprobe(t *testing.T) {
	result := checkFFprobe()

	// a missing ffprobe degrades imports but never blocks them
	if result.error {
		t.Errorf("ffprobe check should not error: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected a message")
	}
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "existing.sqlite")
	db, err := store.Open(existing)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := db.CreateRecording(context.Background(), &store.Recording{
		Filename:    "memo.wav",
		FilePath:    "/r/memo.wav",
		DateCreated: "2024-06-01 10:00:00",
	}); err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}
	db.Close()

	notADB := filepath.Join(t.TempDir(), "dir.sqlite")
	if err := os.Mkdir(notADB, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantErr  bool
		wantWarn bool
		contains string
	}{
		{"existing", existing, false, false, "1 recordings"},
		{"not yet created", filepath.Join(t.TempDir(), "new.sqlite"), false, false, "will be created"},
		{"empty path", "", false, true, "no database path"},
		{"directory", notADB, true, false, "not a regular file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkDatabase(tt.path)
			if result.error != tt.wantErr {
				t.Errorf("error = %v, want %v (%s)", result.error, tt.wantErr, result.message)
			}
			if result.warning != tt.wantWarn {
				t.Errorf("warning = %v, want %v (%s)", result.warning, tt.wantWarn, result.message)
			}
			if !strings.Contains(result.message, tt.contains) {
				t.Errorf("message %q should contain %q", result.message, tt.contains)
			}
		})
	}
}

func TestCheckDataDirectory(t *testing.T) {
	t.Run("existing", func(t *testing.T) {
		result := checkDataDirectory(t.TempDir())
		if result.error {
			t.Errorf("data directory check failed: %s", result.message)
		}
	})

	t.Run("created", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		result := checkDataDirectory(dir)
		if result.error {
			t.Errorf("data directory check failed: %s", result.message)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected directory to be created: %v", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatal(err)
		}
		if result := checkDataDirectory(path); !result.error {
			t.Error("expected error when path is a file")
		}
	})
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")
	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message with disk space info")
	}

	if result := checkDiskSpace("/nonexistent/path", "test"); !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
