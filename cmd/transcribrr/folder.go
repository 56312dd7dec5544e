package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/transcribrr/internal/folders"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Organize recordings into folders",
	Long: `Create, rename and delete folders and file recordings into them.

Folder names must be unique among siblings. A recording may live in several
folders at once; "move" replaces all of its folders with one.`,
}

var folderCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runFolderCreate,
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runFolderRename,
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a folder with its subfolders; recordings are kept",
	Args:  cobra.ExactArgs(1),
	RunE:  runFolderDelete,
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders with their recording counts",
	RunE:  runFolderList,
}

var folderAddCmd = &cobra.Command{
	Use:   "add <recording-id> <folder-id>",
	Short: "Add a recording to a folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runFolderAdd,
}

var folderMoveCmd = &cobra.Command{
	Use:   "move <recording-id> <folder-id>",
	Short: "Move a recording into exactly one folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runFolderMove,
}

var folderRemoveCmd = &cobra.Command{
	Use:   "remove <recording-id> <folder-id>",
	Short: "Remove a recording from a folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runFolderRemove,
}

var folderExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the folder hierarchy as JSON",
	RunE:  runFolderExport,
}

var folderImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the folder hierarchy from a JSON export",
	Long: `Replace every folder with the hierarchy in the given JSON file ("-" reads
stdin). Folder ids are preserved; all recording-folder links are cleared.`,
	Args: cobra.ExactArgs(1),
	RunE: runFolderImport,
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show folders and recordings as a tree",
	RunE:  runTree,
}

func init() {
	rootCmd.AddCommand(folderCmd, treeCmd)
	folderCmd.AddCommand(folderCreateCmd, folderRenameCmd, folderDeleteCmd, folderListCmd,
		folderAddCmd, folderMoveCmd, folderRemoveCmd, folderExportCmd, folderImportCmd)

	folderCreateCmd.Flags().String("parent", "", "parent folder id")
	folderExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	treeCmd.Flags().StringP("filter", "f", "", "case-insensitive text filter")
	treeCmd.Flags().String("criteria", "all", "all, has-transcript, no-transcript, recent, this-week")
	treeCmd.Flags().Bool("prune", true, "hide items that do not match")
}

func runFolderCreate(cmd *cobra.Command, args []string) error {
	var parentID *int64
	if p, _ := cmd.Flags().GetString("parent"); p != "" {
		id, err := parseID(p)
		if err != nil {
			return err
		}
		parentID = &id
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := await(func(done func(int64, error)) { a.folders.CreateFolder(args[0], parentID, done) })
	if err != nil {
		return err
	}
	util.SuccessLog("Created folder %q (id %d)", args[0], id)
	return nil
}

func runFolderRename(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := awaitErr(func(done func(error)) { a.folders.RenameFolder(id, args[1], done) }); err != nil {
		return err
	}
	util.SuccessLog("Renamed folder %d to %q", id, args[1])
	return nil
}

func runFolderDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	before := len(a.folders.Folders())
	if err := awaitErr(func(done func(error)) { a.folders.DeleteFolder(id, done) }); err != nil {
		return err
	}
	util.SuccessLog("Deleted %d folders", before-len(a.folders.Folders()))
	return nil
}

func runFolderList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	all := a.folders.Folders()
	unorganized, err := await(func(done func(int, error)) { a.folders.FolderRecordingCount(folders.Unorganized, done) })
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATH\tRECORDINGS")
	fmt.Fprintf(w, "%d\t%s\t%d\n", folders.Unorganized, folders.UnorganizedName, unorganized)
	for _, f := range all {
		n, err := await(func(done func(int, error)) { a.folders.FolderRecordingCount(f.ID, done) })
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", f.ID, folderPath(a.folders, f), n)
	}
	return w.Flush()
}

// folderPath joins the names from the root down to f
func folderPath(fm *folders.Manager, f *store.Folder) string {
	parts := []string{f.Name}
	for p := f.ParentID; p != nil; {
		parent := fm.FolderByID(*p)
		if parent == nil {
			break
		}
		parts = append([]string{parent.Name}, parts...)
		p = parent.ParentID
	}
	return strings.Join(parts, "/")
}

func parseLinkArgs(args []string) (int64, int64, error) {
	rec, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	folder, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return rec, folder, nil
}

func runFolderAdd(cmd *cobra.Command, args []string) error {
	rec, folder, err := parseLinkArgs(args)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := awaitErr(func(done func(error)) { a.folders.AddRecordingToFolder(rec, folder, done) }); err != nil {
		return err
	}
	util.SuccessLog("Added recording %d to folder %d", rec, folder)
	return nil
}

func runFolderMove(cmd *cobra.Command, args []string) error {
	rec, folder, err := parseLinkArgs(args)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := awaitErr(func(done func(error)) { a.folders.MoveRecordingToFolder(rec, folder, done) }); err != nil {
		return err
	}
	util.SuccessLog("Moved recording %d to folder %d", rec, folder)
	return nil
}

func runFolderRemove(cmd *cobra.Command, args []string) error {
	rec, folder, err := parseLinkArgs(args)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := awaitErr(func(done func(error)) { a.folders.RemoveRecordingFromFolder(rec, folder, done) }); err != nil {
		return err
	}
	util.SuccessLog("Removed recording %d from folder %d", rec, folder)
	return nil
}

func runFolderExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.folders.ExportFolderStructure()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(output, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	util.SuccessLog("Exported %d folders to %s", len(a.folders.Folders()), output)
	return nil
}

func runFolderImport(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read folder structure: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := awaitErr(func(done func(error)) { a.folders.ImportFolderStructure(data, done) }); err != nil {
		return err
	}
	util.SuccessLog("Imported %d folders", len(a.folders.Folders()))
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("filter")
	criteriaFlag, _ := cmd.Flags().GetString("criteria")
	prune, _ := cmd.Flags().GetBool("prune")

	criteria, err := folders.ParseCriteria(criteriaFlag)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	recs, err := await(a.db.GetAllRecordings)
	if err != nil {
		return err
	}
	links, err := await(a.db.GetRecordingFolderLinks)
	if err != nil {
		return err
	}

	tree := folders.BuildTree(a.folders.Folders(), recs, links)
	filter := folders.Filter{Text: text, Criteria: criteria, Now: time.Now()}
	idx := folders.NewVisibilityIndex(tree, filter)
	if prune {
		tree = idx.Prune(tree)
	}

	printTree(os.Stdout, tree, idx, "", util.GetTerminalWidth())
	if !filter.IsEmpty() {
		fmt.Printf("\n%d matching recordings\n", idx.Matches())
	}
	return nil
}

func printTree(w io.Writer, nodes []*folders.TreeNode, idx *folders.VisibilityIndex, indent string, width int) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		label := n.Item.Label()
		if !idx.Visible(n.Item.Key()) {
			label += " (hidden)"
		}
		if limit := width - len([]rune(indent)) - 4; limit > 3 && len([]rune(label)) > limit {
			label = string([]rune(label)[:limit-3]) + "..."
		}
		fmt.Fprintf(w, "%s%s%s\n", indent, branch, label)
		printTree(w, n.Children, idx, indent+next, width)
	}
}
