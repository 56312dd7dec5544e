package util

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"trace", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseLevel(%q) should wrap ErrInvalidConfig, got %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColors(false)
	SetLogLevel(LevelWarn)
	defer func() {
		SetOutput(nil)
		SetLogLevel(LevelInfo)
	}()

	DebugLog("debug %d", 1)
	InfoLog("info %d", 2)
	WarnLog("warn %d", 3)
	ErrorLog("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below the level leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN]  warn 3") || !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("expected warn and error lines, got %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("expected no color codes, got %q", out)
	}
}

func TestSetLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "transcribrr.log")
	if err := SetLogFile(path); err != nil {
		t.Fatalf("SetLogFile failed: %v", err)
	}

	SetOutput(&bytes.Buffer{})
	SetLogLevel(LevelInfo)
	InfoLog("stored %s", "recording")
	SetOutput(nil)

	if err := CloseLogFile(); err != nil {
		t.Fatalf("CloseLogFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[INFO]  stored recording") {
		t.Errorf("expected message in log file, got %q", data)
	}
}
