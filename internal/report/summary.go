package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/transcribrr/internal/store"
)

// LibrarySnapshot is the library state a report is built from
type LibrarySnapshot struct {
	Recordings []*store.Recording
	Folders    []*store.Folder
	Links      []store.FolderLink
}

// SummaryReport represents a complete summary report
type SummaryReport struct {
	GeneratedAt time.Time

	// Recordings
	Recordings     int
	Pending        int
	Transcribed    int
	Completed      int
	TotalDuration  float64 // seconds
	EstimatedBytes int64
	Unorganized    int

	// Folders
	Folders     int
	RootFolders int
	MaxDepth    int
	FolderSizes []FolderSize

	// Audit log
	Operations []OperationSummary
	TopErrors  []ErrorSummary

	DatabasePath string
	EventLogPath string
}

// FolderSize is a folder with its number of direct recordings
type FolderSize struct {
	Path  string
	Count int
}

// OperationSummary aggregates audit events of one operation name
type OperationSummary struct {
	Operation string
	Count     int
	Failed    int
	AvgMs     float64
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Kind  string
	Error string
	Count int
}

// GenerateSummaryReport builds a report from a library snapshot and, when
// eventLogPath is set, the audit log
func GenerateSummaryReport(snap LibrarySnapshot, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		Recordings:   len(snap.Recordings),
		Folders:      len(snap.Folders),
	}

	linked := make(map[int64]bool, len(snap.Links))
	for _, l := range snap.Links {
		linked[l.RecordingID] = true
	}

	for _, r := range snap.Recordings {
		switch r.Status() {
		case store.StatusCompleted:
			report.Completed++
		case store.StatusTranscribed:
			report.Transcribed++
		default:
			report.Pending++
		}
		report.TotalDuration += r.Duration
		report.EstimatedBytes += r.EstimateFileSize(0)
		if !linked[r.ID] {
			report.Unorganized++
		}
	}

	report.RootFolders, report.MaxDepth, report.FolderSizes = gatherFolderSizes(snap, 10)

	if eventLogPath != "" {
		events, err := ReadEvents(eventLogPath)
		if err != nil {
			return nil, err
		}
		report.Operations = gatherOperations(events)
		report.TopErrors = gatherTopErrors(events, 10)
	}

	return report, nil
}

// gatherFolderSizes returns root count, deepest level and the largest folders by path
func gatherFolderSizes(snap LibrarySnapshot, limit int) (int, int, []FolderSize) {
	byID := make(map[int64]*store.Folder, len(snap.Folders))
	for _, f := range snap.Folders {
		byID[f.ID] = f
	}

	counts := make(map[int64]int)
	for _, l := range snap.Links {
		counts[l.FolderID]++
	}

	roots, maxDepth := 0, 0
	sizes := make([]FolderSize, 0, len(snap.Folders))
	for _, f := range snap.Folders {
		if f.ParentID == nil {
			roots++
		}

		parts := []string{f.Name}
		seen := map[int64]bool{f.ID: true}
		for p := f.ParentID; p != nil; {
			parent, ok := byID[*p]
			if !ok || seen[parent.ID] {
				break
			}
			seen[parent.ID] = true
			parts = append([]string{parent.Name}, parts...)
			p = parent.ParentID
		}
		if len(parts) > maxDepth {
			maxDepth = len(parts)
		}

		sizes = append(sizes, FolderSize{Path: strings.Join(parts, "/"), Count: counts[f.ID]})
	}

	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].Count != sizes[j].Count {
			return sizes[i].Count > sizes[j].Count
		}
		return sizes[i].Path < sizes[j].Path
	})
	if len(sizes) > limit {
		sizes = sizes[:limit]
	}

	return roots, maxDepth, sizes
}

func gatherOperations(events []Event) []OperationSummary {
	type acc struct {
		count, failed int
		totalMs       int64
	}
	byOp := make(map[string]*acc)
	for _, e := range events {
		if e.Event != EventOperation {
			continue
		}
		a, ok := byOp[e.Operation]
		if !ok {
			a = &acc{}
			byOp[e.Operation] = a
		}
		a.count++
		a.totalMs += e.Duration
		if e.Error != "" {
			a.failed++
		}
	}

	ops := make([]OperationSummary, 0, len(byOp))
	for name, a := range byOp {
		ops = append(ops, OperationSummary{
			Operation: name,
			Count:     a.count,
			Failed:    a.failed,
			AvgMs:     float64(a.totalMs) / float64(a.count),
		})
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Count != ops[j].Count {
			return ops[i].Count > ops[j].Count
		}
		return ops[i].Operation < ops[j].Operation
	})
	return ops
}

// gatherTopErrors returns the most common error messages
func gatherTopErrors(events []Event, limit int) []ErrorSummary {
	type key struct{ kind, msg string }
	counts := make(map[key]int)
	for _, e := range events {
		if e.Error != "" {
			counts[key{e.Kind, e.Error}]++
		}
	}

	errs := make([]ErrorSummary, 0, len(counts))
	for k, count := range counts {
		errs = append(errs, ErrorSummary{Kind: k.kind, Error: k.msg, Count: count})
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Count != errs[j].Count {
			return errs[i].Count > errs[j].Count
		}
		return errs[i].Error < errs[j].Error
	})

	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Transcribrr - Library Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Audit Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Recordings\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Total | %s |\n", humanize.Comma(int64(report.Recordings))))
	md.WriteString(fmt.Sprintf("| Pending | %d |\n", report.Pending))
	md.WriteString(fmt.Sprintf("| Transcribed | %d |\n", report.Transcribed))
	md.WriteString(fmt.Sprintf("| Completed | %d |\n", report.Completed))
	md.WriteString(fmt.Sprintf("| Unorganized | %d |\n", report.Unorganized))
	md.WriteString(fmt.Sprintf("| Total Duration | %s |\n", store.FormatSeconds(report.TotalDuration)))
	md.WriteString(fmt.Sprintf("| Estimated Size | %s |\n", humanize.Bytes(uint64(report.EstimatedBytes))))
	md.WriteString("\n")

	if report.Folders > 0 {
		md.WriteString("## Folders\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Folders | %d |\n", report.Folders))
		md.WriteString(fmt.Sprintf("| Root Folders | %d |\n", report.RootFolders))
		md.WriteString(fmt.Sprintf("| Deepest Level | %d |\n", report.MaxDepth))
		md.WriteString("\n")

		md.WriteString("| Folder | Recordings |\n")
		md.WriteString("|--------|------------|\n")
		for _, fs := range report.FolderSizes {
			md.WriteString(fmt.Sprintf("| `%s` | %d |\n", truncatePath(fs.Path, 60), fs.Count))
		}
		md.WriteString("\n")
	}

	if len(report.Operations) > 0 {
		md.WriteString("## Database Operations\n\n")
		md.WriteString("| Operation | Count | Failed | Avg |\n")
		md.WriteString("|-----------|-------|--------|-----|\n")
		for _, op := range report.Operations {
			md.WriteString(fmt.Sprintf("| %s | %d | %d | %.1f ms |\n", op.Operation, op.Count, op.Failed, op.AvgMs))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Kind | Error |\n")
		md.WriteString("|-------|------|-------|\n")
		for _, e := range report.TopErrors {
			kind := e.Kind
			if kind == "" {
				kind = "-"
			}
			md.WriteString(fmt.Sprintf("| %d | %s | %s |\n", e.Count, kind, e.Error))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// truncatePath shortens a path from the middle, keeping start and end
func truncatePath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	start := maxLen/2 - 2
	end := len(r) - (maxLen/2 - 2)
	return string(r[:start]) + "..." + string(r[end:])
}
