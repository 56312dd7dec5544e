// Package scan imports media files into the recording library.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/text/unicode/norm"

	"github.com/franz/transcribrr/internal/database"
	"github.com/franz/transcribrr/internal/folders"
	"github.com/franz/transcribrr/internal/media"
	"github.com/franz/transcribrr/internal/metrics"
	"github.com/franz/transcribrr/internal/report"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

// ProbeFunc returns media information for a file
type ProbeFunc func(ctx context.Context, path string) (*media.Info, error)

// Importer turns media files into recordings
type Importer struct {
	db          *database.Manager
	folders     *folders.Manager
	folderID    *int64
	concurrency int
	probe       ProbeFunc
	logger      *report.EventLogger
	progress    bool
}

// Config holds importer configuration
type Config struct {
	DB          *database.Manager
	Folders     *folders.Manager // required when FolderID is set
	FolderID    *int64           // file imported recordings here
	Concurrency int              // parallel ffprobe runs
	Probe       ProbeFunc        // media.Probe when nil
	Logger      *report.EventLogger
	Progress    bool // show a progress bar on a TTY
}

// New creates a new Importer
func New(cfg *Config) *Importer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Probe == nil {
		cfg.Probe = media.Probe
	}

	return &Importer{
		db:          cfg.DB,
		folders:     cfg.Folders,
		folderID:    cfg.FolderID,
		concurrency: cfg.Concurrency,
		probe:       cfg.Probe,
		logger:      cfg.Logger,
		progress:    cfg.Progress,
	}
}

// Result summarizes an import run
type Result struct {
	Discovered int
	Imported   int
	Duplicates int
	Skipped    int // not media files
	IDs        []int64
	Errors     []error
}

// Import walks paths (files or directories) and creates a recording for every
// media file. Existing paths are counted as duplicates, not errors.
func (im *Importer) Import(ctx context.Context, paths []string) (*Result, error) {
	if im.folderID != nil && im.folders == nil {
		return nil, errors.New("importing into a folder requires a folder manager")
	}

	result := &Result{}
	files, err := im.collect(ctx, paths, result)
	if err != nil {
		return result, err
	}
	result.Discovered = len(files)
	if len(files) == 0 {
		util.InfoLog("No media files found")
		return result, nil
	}
	util.InfoLog("Importing %d media files", len(files))

	var bar *progressbar.ProgressBar
	if im.progress && util.StdoutIsTerminal() && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Importing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	var (
		mu          sync.Mutex
		pending     sync.WaitGroup
		missingOnce sync.Once
	)
	record := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	p := pool.New().WithMaxGoroutines(im.concurrency)
	for _, path := range files {
		path := path
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}

			rec, err := im.buildRecording(ctx, path)
			if errors.Is(err, media.ErrFFprobeMissing) {
				missingOnce.Do(func() {
					util.WarnLog("ffprobe not found; durations will be stored as 0")
				})
			} else if err != nil {
				util.WarnLog("Could not probe %s: %v", path, err)
			}
			if rec == nil {
				record(func() { result.Errors = append(result.Errors, err) })
				metrics.ImportFilesTotal.WithLabelValues("error").Inc()
				im.logger.LogImport(path, 0, 0, err)
				if bar != nil {
					bar.Add(1)
				}
				return
			}

			pending.Add(1)
			im.db.CreateRecording(*rec, func(id int64, err error) {
				defer pending.Done()
				if bar != nil {
					defer bar.Add(1)
				}
				im.handleCreated(rec, id, err, result, record, &pending)
			})
		})
	}
	p.Wait()
	pending.Wait()

	if bar != nil {
		bar.Finish()
	}

	sort.Slice(result.IDs, func(i, j int) bool { return result.IDs[i] < result.IDs[j] })
	util.SuccessLog("Import complete: %d imported, %d duplicates, %d errors, %d skipped",
		result.Imported, result.Duplicates, len(result.Errors), result.Skipped)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// handleCreated runs on the callback dispatcher for every CreateRecording
func (im *Importer) handleCreated(rec *store.Recording, id int64, err error, result *Result, record func(func()), pending *sync.WaitGroup) {
	var opErr *database.OpError
	switch {
	case err == nil:
		record(func() {
			result.Imported++
			result.IDs = append(result.IDs, id)
		})
		metrics.ImportFilesTotal.WithLabelValues("imported").Inc()
		im.logger.LogImport(rec.FilePath, id, rec.Duration, nil)
		util.DebugLog("Imported %s as %d", rec.FilePath, id)

		if im.folderID != nil {
			pending.Add(1)
			im.folders.AddRecordingToFolder(id, *im.folderID, func(err error) {
				defer pending.Done()
				if err != nil {
					util.WarnLog("Could not add %s to folder %d: %v", rec.Filename, *im.folderID, err)
					record(func() { result.Errors = append(result.Errors, err) })
				}
			})
		}

	case errors.As(err, &opErr) && opErr.Kind == database.KindDuplicatePath:
		record(func() { result.Duplicates++ })
		metrics.ImportFilesTotal.WithLabelValues("duplicate").Inc()
		im.logger.LogDuplicate(rec.FilePath)
		util.DebugLog("Already in library: %s", rec.FilePath)

	default:
		record(func() { result.Errors = append(result.Errors, fmt.Errorf("%s: %w", rec.FilePath, err)) })
		metrics.ImportFilesTotal.WithLabelValues("error").Inc()
		im.logger.LogImport(rec.FilePath, 0, rec.Duration, err)
	}
}

// collect expands paths into a sorted list of absolute media file paths
func (im *Importer) collect(ctx context.Context, paths []string, result *Result) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !media.IsMediaFile(path) {
			result.Skipped++
			return
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", p, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				util.WarnLog("Error accessing path %s: %v", path, err)
				result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
				return nil
			}
			if d.IsDir() {
				if path != abs && len(d.Name()) > 1 && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk error: %w", err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// buildRecording stats and probes path. A probe failure still yields a
// recording with duration 0 alongside the error; nil means the file is unusable.
func (im *Importer) buildRecording(ctx context.Context, path string) (*store.Recording, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	rec := &store.Recording{
		Filename:    norm.NFC.String(filepath.Base(path)),
		FilePath:    path,
		DateCreated: info.ModTime().Format(store.DateTimeLayout),
	}

	start := time.Now()
	probed, err := im.probe(ctx, path)
	metrics.ImportProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return rec, err
	}
	rec.Duration = probed.Duration
	return rec, nil
}
