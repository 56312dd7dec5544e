package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/transcribrr/internal/report"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the library and audit log",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Recording counts by transcript status, total duration and estimated size
- Folder statistics and the largest folders
- Database operation counts and latencies from the audit log
- The most frequent errors

The report is saved to <data-dir>/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "output directory (default <data-dir>/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "audit log to summarize (default: latest in the audit dir)")
}

func runReport(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", cfg.DB)

	// read the latest log before openApp starts a new one
	eventLogPath, _ := cmd.Flags().GetString("event-log")
	if eventLogPath == "" && cfg.AuditEnabled() {
		eventLogPath = report.LatestEventLog(cfg.AuditDir)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	var snap report.LibrarySnapshot
	if snap.Recordings, err = await(a.db.GetAllRecordings); err != nil {
		return err
	}
	if snap.Folders, err = await(a.db.GetAllFolders); err != nil {
		return err
	}
	if snap.Links, err = await(a.db.GetRecordingFolderLinks); err != nil {
		return err
	}

	summary, err := report.GenerateSummaryReport(snap, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.DatabasePath = cfg.DB

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join(cfg.DataDir, "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report saved to: %s", outputPath)
	util.InfoLog("  Recordings: %s (%s)", humanize.Comma(int64(summary.Recordings)), store.FormatSeconds(summary.TotalDuration))
	util.InfoLog("  Pending: %d, transcribed: %d, completed: %d", summary.Pending, summary.Transcribed, summary.Completed)
	util.InfoLog("  Folders: %d, unorganized recordings: %d", summary.Folders, summary.Unorganized)
	if len(summary.TopErrors) > 0 {
		util.WarnLog("  Distinct errors in audit log: %d", len(summary.TopErrors))
	}
	return nil
}
