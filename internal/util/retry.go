package util

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts, including the first
	InitialWait time.Duration // Wait before the second attempt, doubled after each failure
	MaxWait     time.Duration // Upper bound for a single wait
}

// DefaultRetryConfig returns the retry configuration for local storage
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// NetworkRetryConfig returns a slower retry configuration for data directories
// on network filesystems
func NetworkRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 5,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     10 * time.Second,
	}
}

// RetryConfigForPath picks NetworkRetryConfig when path is on a network mount
func RetryConfigForPath(path string) *RetryConfig {
	if IsNetworkPath(path) {
		return NetworkRetryConfig()
	}
	return DefaultRetryConfig()
}

var retryableErrnos = map[syscall.Errno]bool{
	syscall.EAGAIN:       true,
	syscall.EBUSY:        true,
	syscall.ETIMEDOUT:    true,
	syscall.ECONNRESET:   true,
	syscall.ECONNABORTED: true,
	syscall.ECONNREFUSED: true,
	syscall.ENETDOWN:     true,
	syscall.ENETUNREACH:  true,
	syscall.EHOSTDOWN:    true,
	syscall.EHOSTUNREACH: true,
	syscall.EIO:          true, // transient on network mounts
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"connection aborted",
	"broken pipe",
	"no route to host",
	"network is unreachable",
	"network is down",
	"host is down",
	"temporary failure",
	"resource temporarily unavailable",
	"i/o error",
	"too many open files",
	"database is locked",
	"sqlite_busy",
}

// IsRetryableError reports whether err is a transient filesystem, network
// or SQLite busy error
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return retryableErrnos[errno]
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryWithBackoff runs operation until it succeeds, fails with a
// non-retryable error, runs out of attempts, or ctx is done
func RetryWithBackoff[T any](ctx context.Context, cfg *RetryConfig, operationName string, operation func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result T
		err    error
		wait   = cfg.InitialWait
	)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			if attempt > 1 {
				DebugLog("%s succeeded on attempt %d/%d", operationName, attempt, cfg.MaxAttempts)
			}
			return result, nil
		}

		if !IsRetryableError(err) {
			return result, err
		}
		if attempt == cfg.MaxAttempts {
			WarnLog("%s failed after %d attempts: %v", operationName, cfg.MaxAttempts, err)
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, err)
		}

		DebugLog("%s failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempt, cfg.MaxAttempts, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("%s: %w", operationName, ctx.Err())
		case <-timer.C:
		}

		wait *= 2
		if wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}

	return result, err
}

// Retry is RetryWithBackoff for operations without a result
func Retry(ctx context.Context, cfg *RetryConfig, operationName string, operation func() error) error {
	_, err := RetryWithBackoff(ctx, cfg, operationName, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// RetryableStat stats a file with retry logic
func RetryableStat(ctx context.Context, path string, cfg *RetryConfig) (fs.FileInfo, error) {
	return RetryWithBackoff(ctx, cfg, fmt.Sprintf("stat(%s)", path), func() (fs.FileInfo, error) {
		return os.Stat(path)
	})
}

// RetryableRemove removes a file with retry logic; a missing file is not an error
func RetryableRemove(ctx context.Context, path string, cfg *RetryConfig) error {
	return Retry(ctx, cfg, fmt.Sprintf("remove(%s)", path), func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

// RetryableMkdirAll creates a directory with retry logic
func RetryableMkdirAll(ctx context.Context, path string, perm os.FileMode, cfg *RetryConfig) error {
	return Retry(ctx, cfg, fmt.Sprintf("mkdir(%s)", path), func() error {
		return os.MkdirAll(path, perm)
	})
}
