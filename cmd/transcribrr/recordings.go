package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/transcribrr/internal/media"
	"github.com/franz/transcribrr/internal/scan"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import audio and video files into the library",
	Long: `Import media files, or every media file below the given directories.

Durations are read with ffprobe when it is installed. Files whose path is
already in the library are reported as duplicates and left untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings, newest first",
	RunE:  runList,
}

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search filenames and transcripts",
	Long:  `Search filenames, raw transcripts and processed text. An empty term lists everything.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recording with its transcripts",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a recording",
	Long: `Update the named fields of a recording; fields without a flag are left
untouched. Transcript flags accept @file to read the text from a file.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql> [arg]...",
	Short: "Run a raw SQL statement through the database worker",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(importCmd, listCmd, searchCmd, showCmd, updateCmd, deleteCmd, queryCmd)

	importCmd.Flags().String("folder", "", "add imported recordings to this folder id")
	importCmd.Flags().Int("concurrency", 0, "parallel ffprobe runs (default from config)")
	importCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	viper.BindPFlag("probe_concurrency", importCmd.Flags().Lookup("concurrency"))

	listCmd.Flags().String("folder", "", "only recordings in this folder id (-1 = unorganized)")
	listCmd.Flags().Bool("json", false, "print JSON")
	searchCmd.Flags().Bool("json", false, "print JSON")
	showCmd.Flags().Bool("json", false, "print JSON")
	showCmd.Flags().Bool("tags", false, "also read tags embedded in the media file")

	updateCmd.Flags().String("filename", "", "new display filename")
	updateCmd.Flags().String("date", "", "new date_created (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)")
	updateCmd.Flags().Float64("duration", 0, "new duration in seconds")
	updateCmd.Flags().String("transcript", "", "raw transcript text or @file")
	updateCmd.Flags().String("processed", "", "processed text or @file")

	deleteCmd.Flags().Bool("remove-file", false, "also delete the media file from disk")
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = cfg.ProbeConcurrency
	}
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	importCfg := &scan.Config{
		DB:          a.db,
		Folders:     a.folders,
		Concurrency: concurrency,
		Logger:      a.events,
		Progress:    !noProgress,
	}
	if f, _ := cmd.Flags().GetString("folder"); f != "" {
		id, err := parseID(f)
		if err != nil {
			return err
		}
		if !a.folders.FolderExists(id) {
			return fmt.Errorf("folder %d: %w", id, util.ErrNotFound)
		}
		importCfg.FolderID = &id
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := scan.New(importCfg).Import(ctx, args)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		util.ErrorLog("%v", e)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d files failed to import", len(result.Errors))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	var recs []*store.Recording
	if f, _ := cmd.Flags().GetString("folder"); f != "" {
		id, perr := parseFolderArg(f)
		if perr != nil {
			return perr
		}
		recs, err = await(func(done func([]*store.Recording, error)) { a.folders.RecordingsInFolder(id, done) })
	} else {
		recs, err = await(a.db.GetAllRecordings)
	}
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printRecordings(recs, asJSON)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	term := ""
	if len(args) == 1 {
		term = args[0]
	}
	recs, err := await(func(done func([]*store.Recording, error)) { a.db.SearchRecordings(term, done) })
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return printRecordings(recs, asJSON)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := await(func(done func(*store.Recording, error)) { a.db.GetRecordingByID(id, done) })
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("recording %d: %w", id, util.ErrNotFound)
	}
	recFolders, err := await(func(done func([]*store.Folder, error)) { a.folders.FoldersForRecording(id, done) })
	if err != nil {
		return err
	}

	var tags *media.Tags
	if withTags, _ := cmd.Flags().GetBool("tags"); withTags {
		tags, err = media.ReadTags(rec.FilePath)
		if err != nil && !errors.Is(err, media.ErrNoTags) {
			util.WarnLog("Could not read tags: %v", err)
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(struct {
			*store.Recording
			Status  string          `json:"status"`
			Folders []*store.Folder `json:"folders"`
			Tags    *media.Tags     `json:"tags,omitempty"`
		}{rec, rec.Status(), recFolders, tags})
	}

	names := make([]string, 0, len(recFolders))
	for _, f := range recFolders {
		names = append(names, f.Name)
	}
	if len(names) == 0 {
		names = append(names, "(unorganized)")
	}

	fmt.Printf("ID:        %d\n", rec.ID)
	fmt.Printf("Filename:  %s\n", rec.Filename)
	fmt.Printf("Path:      %s\n", rec.FilePath)
	fmt.Printf("Created:   %s\n", rec.DateCreated)
	fmt.Printf("Duration:  %s (~%s at 128 kbps)\n", rec.DisplayDuration(), humanize.Bytes(uint64(rec.EstimateFileSize(128))))
	fmt.Printf("Status:    %s\n", rec.Status())
	fmt.Printf("Folders:   %s\n", strings.Join(names, ", "))
	if tags != nil && !tags.IsEmpty() {
		fmt.Printf("Tags:      %s", tags.Format)
		for _, kv := range [][2]string{{"title", tags.Title}, {"artist", tags.Artist}, {"album", tags.Album}, {"comment", tags.Comment}} {
			if kv[1] != "" {
				fmt.Printf(", %s=%q", kv[0], kv[1])
			}
		}
		if tags.Year > 0 {
			fmt.Printf(", year=%d", tags.Year)
		}
		fmt.Println()
	}
	if rec.RawTranscript != "" {
		fmt.Printf("\n--- Transcript ---\n%s\n", rec.RawTranscript)
	}
	if rec.ProcessedText != "" {
		fmt.Printf("\n--- Processed ---\n%s\n", rec.ProcessedText)
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	var u store.RecordingUpdate
	flags := cmd.Flags()
	if flags.Changed("filename") {
		v, _ := flags.GetString("filename")
		u.Filename = &v
	}
	if flags.Changed("date") {
		v, _ := flags.GetString("date")
		u.DateCreated = &v
	}
	if flags.Changed("duration") {
		v, _ := flags.GetFloat64("duration")
		u.Duration = &v
	}
	if flags.Changed("transcript") {
		v, _ := flags.GetString("transcript")
		text, err := readTextArg(v)
		if err != nil {
			return err
		}
		u.RawTranscript = &text
	}
	if flags.Changed("processed") {
		v, _ := flags.GetString("processed")
		text, err := readTextArg(v)
		if err != nil {
			return err
		}
		u.ProcessedText = &text
	}
	if u.IsEmpty() {
		return fmt.Errorf("nothing to update; pass at least one field flag")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := awaitErr(func(done func(error)) { a.db.UpdateRecording(id, u, done) }); err != nil {
		return err
	}
	util.SuccessLog("Updated recording %d", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := await(func(done func(*store.Recording, error)) { a.db.GetRecordingByID(id, done) })
	if err != nil {
		return err
	}
	if err := awaitErr(func(done func(error)) { a.db.DeleteRecording(id, done) }); err != nil {
		return err
	}
	if rec == nil {
		util.WarnLog("Recording %d did not exist", id)
		return nil
	}
	util.SuccessLog("Deleted recording %d (%s)", id, rec.Filename)

	if removeFile, _ := cmd.Flags().GetBool("remove-file"); removeFile {
		ctx, cancel := signalContext()
		defer cancel()
		// the row is gone either way; a leftover file is only worth a warning
		if err := util.RetryableRemove(ctx, rec.FilePath, util.RetryConfigForPath(rec.FilePath)); err != nil {
			util.WarnLog("Could not remove %s: %v", rec.FilePath, err)
		} else {
			util.InfoLog("Removed %s", rec.FilePath)
		}
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	params := make([]any, 0, len(args)-1)
	for _, arg := range args[1:] {
		params = append(params, arg)
	}

	res, err := await(func(done func(*store.QueryResult, error)) { a.db.ExecuteQuery(args[0], params, done) })
	if err != nil {
		return err
	}

	if len(res.Columns) == 0 {
		fmt.Printf("%d rows affected\n", res.RowsAffected)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func printRecordings(recs []*store.Recording, asJSON bool) error {
	if asJSON {
		return writeJSON(recs)
	}
	if len(recs) == 0 {
		util.InfoLog("No recordings")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tCREATED\tDURATION\tSTATUS")
	var total float64
	for _, r := range recs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Filename, r.DateCreated, r.DisplayDuration(), r.Status())
		total += r.Duration
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%s recordings, %s total\n", humanize.Comma(int64(len(recs))), store.FormatSeconds(total))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readTextArg returns s, or the contents of the file when s is @path
func readTextArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	data, err := os.ReadFile(s[1:])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s[1:], err)
	}
	return string(data), nil
}

func parseFolderArg(s string) (int64, error) {
	if s == "-1" {
		return -1, nil
	}
	return parseID(s)
}
