package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure transcribrr can operate correctly.

This command checks:
- ffprobe, used to read media durations
- SQLite version
- The data directory and whether it is on a network mount
- Database accessibility and integrity
- Disk space where the database lives`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== transcribrr doctor ===")
	util.InfoLog("")

	results := []checkResult{
		checkFFprobe(),
		checkSQLite(),
		checkDataDirectory(cfg.DataDir),
		checkDatabase(cfg.DB),
		checkDiskSpace(filepath.Dir(cfg.DB), "database"),
	}

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings.")
	} else {
		util.SuccessLog("All checks passed.")
	}
	return nil
}

// checkFFprobe reports the ffprobe version. Without ffprobe recordings are
// still imported, only with a duration of 0, so a missing binary is a warning.
func checkFFprobe() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffprobe", "-version").CombinedOutput()
	if err != nil {
		return checkResult{
			name:    "ffprobe",
			warning: true,
			message: "not found (durations will be stored as 0)",
		}
	}

	version := "unknown"
	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		if parts := strings.Fields(lines[0]); len(parts) >= 3 {
			version = parts[2]
		}
	}
	return checkResult{
		name:    "ffprobe",
		message: fmt.Sprintf("version %s", version),
	}
}

func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}
	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDataDirectory verifies the data directory exists or can be created,
// and is writable
func checkDataDirectory(path string) checkResult {
	const name = "Data directory"

	info, err := os.Stat(path)
	created := false
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0755); err != nil {
			return checkResult{name: name, error: true, message: fmt.Sprintf("cannot create %s: %v", path, err)}
		}
		created = true
	case err != nil:
		return checkResult{name: name, error: true, message: fmt.Sprintf("cannot access %s: %v", path, err)}
	case !info.IsDir():
		return checkResult{name: name, error: true, message: fmt.Sprintf("%s is not a directory", path)}
	}

	testFile := filepath.Join(path, ".transcribrr_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("cannot write to %s: %v", path, err)}
	}
	f.Close()
	os.Remove(testFile)

	msg := fmt.Sprintf("%s (writable)", path)
	if created {
		msg = fmt.Sprintf("%s (created)", path)
	}
	if netInfo, err := util.DetectNetworkFilesystem(path); err == nil && netInfo.IsNetwork {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("%s on network filesystem %s; SQLite locking may be slow", path, netInfo),
		}
	}
	return checkResult{name: name, message: msg}
}

// checkDatabase opens the database, runs the integrity check and counts rows
func checkDatabase(dbPath string) checkResult {
	const name = "Database"

	if dbPath == "" {
		return checkResult{
			name:    name,
			warning: true,
			message: "no database path specified (use --db or TRANSCRIBRR_DB)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{name: name, message: fmt.Sprintf("%s (will be created on first run)", dbPath)}
		}
		return checkResult{name: name, error: true, message: fmt.Sprintf("cannot access %s: %v", dbPath, err)}
	}
	if !info.Mode().IsRegular() {
		return checkResult{name: name, error: true, message: fmt.Sprintf("%s is not a regular file", dbPath)}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("cannot open %s: %v", dbPath, err)}
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.CheckIntegrity(ctx); err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("integrity check failed: %v", err)}
	}

	recordings, _ := db.CountRecordings(ctx)
	allFolders, _ := db.GetAllFolders(ctx)

	return checkResult{
		name: name,
		message: fmt.Sprintf("%s (%s, %d recordings, %d folders)",
			dbPath, humanize.Bytes(uint64(info.Size())), recordings, len(allFolders)),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	name := fmt.Sprintf("Disk space (%s)", label)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// recordings stay where they are; only the database grows here
	warning := false
	warningMsg := ""
	if availBytes < 512*1024*1024 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    name,
		warning: warning,
		message: fmt.Sprintf("%s available%s", humanize.Bytes(availBytes), warningMsg),
	}
}
