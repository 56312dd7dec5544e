package util

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     100 * time.Millisecond,
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"EAGAIN", syscall.EAGAIN, true},
		{"ETIMEDOUT", syscall.ETIMEDOUT, true},
		{"EBUSY", syscall.EBUSY, true},
		{"EIO", syscall.EIO, true},
		{"ENOENT (not retryable)", syscall.ENOENT, false},
		{"EPERM (not retryable)", syscall.EPERM, false},
		{"timeout in message", errors.New("connection timeout"), true},
		{"broken pipe in message", errors.New("write: broken pipe"), true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"generic error", errors.New("invalid argument"), false},
		{"PathError with ETIMEDOUT", &os.PathError{Op: "open", Path: "/test", Err: syscall.ETIMEDOUT}, true},
		{"PathError with ENOENT", &os.PathError{Op: "open", Path: "/test", Err: syscall.ENOENT}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.expected {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	result, err := RetryWithBackoff(context.Background(), fastRetry(), "test operation", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", syscall.ETIMEDOUT
		}
		return "success", nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got: %s", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestRetryWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), "test operation", func() (int, error) {
		attempts++
		return 0, syscall.ETIMEDOUT
	})

	if !errors.Is(err, syscall.ETIMEDOUT) {
		t.Errorf("Expected wrapped ETIMEDOUT, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (max), got: %d", attempts)
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	_, err := RetryWithBackoff(context.Background(), fastRetry(), "test operation", func() (int, error) {
		attempts++
		return 0, syscall.ENOENT
	})

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for non-retryable), got: %d", attempts)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, "test operation", func() error {
			attempts++
			return syscall.EAGAIN
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not observe cancellation")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryableRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if err := RetryableRemove(context.Background(), path, fastRetry()); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file to be gone, stat err = %v", err)
	}

	// Removing again is not an error
	if err := RetryableRemove(context.Background(), path, fastRetry()); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}

func TestRetryConfigs(t *testing.T) {
	def := DefaultRetryConfig()
	if def.MaxAttempts != 3 || def.InitialWait != 100*time.Millisecond || def.MaxWait != 5*time.Second {
		t.Errorf("unexpected default config: %+v", def)
	}

	netCfg := NetworkRetryConfig()
	if netCfg.MaxAttempts <= def.MaxAttempts || netCfg.InitialWait <= def.InitialWait {
		t.Errorf("expected network config to be more patient than default: %+v", netCfg)
	}

	if got := RetryConfigForPath(t.TempDir()); got == nil {
		t.Error("expected a config for temp dir")
	}
}
