package folders

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/franz/transcribrr/internal/store"
)

// UnorganizedName is the display name of the Unorganized pseudo-folder
const UnorganizedName = "Unorganized Recordings"

// ItemKind discriminates tree items
type ItemKind int

const (
	KindFolder ItemKind = iota
	KindRecording
	KindPlaceholder
)

func (k ItemKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindRecording:
		return "recording"
	case KindPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("ItemKind(%d)", int(k))
	}
}

// ItemKey identifies an item in the display tree. A placeholder carries the
// id of the folder it stands in for.
type ItemKey struct {
	Kind ItemKind
	ID   int64
}

// Item is one row of the display tree: a *FolderItem, *RecordingItem or *PlaceholderItem
type Item interface {
	Key() ItemKey
	Label() string
	item()
}

// FolderItem is a folder row. The Unorganized pseudo-folder has ID -1.
type FolderItem struct {
	ID   int64
	Name string
}

// RecordingItem is a recording row
type RecordingItem struct {
	Recording *store.Recording
}

// PlaceholderItem fills a folder that has nothing to show
type PlaceholderItem struct {
	FolderID int64
	Text     string
}

func (f *FolderItem) Key() ItemKey { return ItemKey{KindFolder, f.ID} }
func (f *FolderItem) Label() string { return f.Name }
func (f *FolderItem) item() {}
func (r *RecordingItem) Key() ItemKey { return ItemKey{KindRecording, r.Recording.ID} }
func (r *RecordingItem) item() {}

// Label renders the filename with its duration
func (r *RecordingItem) Label() string {
	return fmt.Sprintf("%s (%s)", r.Recording.Filename, r.Recording.DisplayDuration())
}

func (p *PlaceholderItem) Key() ItemKey { return ItemKey{KindPlaceholder, p.FolderID} }
func (p *PlaceholderItem) Label() string { return p.Text }
func (p *PlaceholderItem) item() {}

// TreeNode is an item with its children
type TreeNode struct {
	Item     Item
	Children []*TreeNode
}

// BuildTree assembles the display tree: the Unorganized pseudo-folder first,
// then root folders by name. Each folder lists its subfolders, then its
// recordings newest first. A recording in several folders appears in each.
func BuildTree(folders []*store.Folder, recordings []*store.Recording, links []store.FolderLink) []*TreeNode {
	recs := make(map[int64]*store.Recording, len(recordings))
	for _, r := range recordings {
		recs[r.ID] = r
	}

	byFolder := make(map[int64][]*store.Recording)
	filed := make(map[int64]bool)
	for _, l := range links {
		r, ok := recs[l.RecordingID]
		if !ok {
			continue
		}
		byFolder[l.FolderID] = append(byFolder[l.FolderID], r)
		filed[r.ID] = true
	}

	var unorganized []*store.Recording
	for _, r := range recordings {
		if !filed[r.ID] {
			unorganized = append(unorganized, r)
		}
	}

	children := make(map[int64][]*store.Folder)
	var roots []*store.Folder
	known := make(map[int64]bool, len(folders))
	for _, f := range folders {
		known[f.ID] = true
	}
	for _, f := range folders {
		if f.ParentID == nil || !known[*f.ParentID] {
			roots = append(roots, f)
			continue
		}
		children[*f.ParentID] = append(children[*f.ParentID], f)
	}

	var build func(f *store.Folder) *TreeNode
	build = func(f *store.Folder) *TreeNode {
		node := &TreeNode{Item: &FolderItem{ID: f.ID, Name: f.Name}}
		subs := children[f.ID]
		sortFolders(subs)
		for _, sub := range subs {
			node.Children = append(node.Children, build(sub))
		}
		node.Children = append(node.Children, recordingNodes(byFolder[f.ID])...)
		fillPlaceholder(node, f.ID)
		return node
	}

	unorganizedNode := &TreeNode{Item: &FolderItem{ID: Unorganized, Name: UnorganizedName}}
	unorganizedNode.Children = recordingNodes(unorganized)
	fillPlaceholder(unorganizedNode, Unorganized)

	tree := []*TreeNode{unorganizedNode}
	sortFolders(roots)
	for _, f := range roots {
		tree = append(tree, build(f))
	}
	return tree
}

func recordingNodes(recs []*store.Recording) []*TreeNode {
	sorted := append([]*store.Recording(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].CreatedAt(), sorted[j].CreatedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].ID > sorted[j].ID
	})

	nodes := make([]*TreeNode, 0, len(sorted))
	for _, r := range sorted {
		nodes = append(nodes, &TreeNode{Item: &RecordingItem{Recording: r}})
	}
	return nodes
}

func fillPlaceholder(node *TreeNode, folderID int64) {
	if len(node.Children) == 0 {
		node.Children = []*TreeNode{{Item: &PlaceholderItem{FolderID: folderID, Text: "(empty)"}}}
	}
}

// Criteria restricts which recordings a filter accepts
type Criteria string

const (
	CriteriaAll           Criteria = "all"
	CriteriaHasTranscript Criteria = "has-transcript"
	CriteriaNoTranscript  Criteria = "no-transcript"
	CriteriaRecent        Criteria = "recent" // last 24 hours
	CriteriaThisWeek      Criteria = "this-week"
)

// ParseCriteria accepts the Criteria values; "" means all
func ParseCriteria(s string) (Criteria, error) {
	switch c := Criteria(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CriteriaAll:
		return CriteriaAll, nil
	case CriteriaHasTranscript, CriteriaNoTranscript, CriteriaRecent, CriteriaThisWeek:
		return c, nil
	default:
		return "", fmt.Errorf("unknown filter criteria %q", s)
	}
}

// Filter selects the visible rows of a display tree
type Filter struct {
	Text     string // case-insensitive substring of filename or transcript
	Criteria Criteria
	Now      time.Time // reference time for date criteria; time.Now when zero
}

// IsEmpty reports whether the filter accepts everything
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.Text) == "" && (f.Criteria == "" || f.Criteria == CriteriaAll)
}

func (f Filter) acceptsRecording(r *store.Recording, now time.Time) bool {
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		haystack := strings.ToLower(r.Filename + "\n" + r.RawTranscript + "\n" + r.ProcessedText)
		if !strings.Contains(haystack, text) {
			return false
		}
	}

	switch f.Criteria {
	case CriteriaHasTranscript:
		return r.IsTranscribed()
	case CriteriaNoTranscript:
		return !r.IsTranscribed()
	case CriteriaRecent:
		created := r.CreatedAt()
		return !created.IsZero() && now.Sub(created) < 24*time.Hour
	case CriteriaThisWeek:
		created := r.CreatedAt()
		return !created.IsZero() && !created.Before(startOfWeek(now))
	}
	return true
}

func (f Filter) acceptsFolderName(name string) bool {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	return text != "" && strings.Contains(strings.ToLower(name), text)
}

// startOfWeek returns Monday 00:00 of the week containing t
func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// VisibilityIndex is the precomputed set of rows a filter leaves visible.
// Recordings are visible when they match; folders when their name matches or
// any descendant is visible. The Unorganized folder is always visible.
type VisibilityIndex struct {
	filter  Filter
	now     time.Time
	visible map[ItemKey]bool
	matches int
}

// NewVisibilityIndex computes visibility for every node of tree in one pass
func NewVisibilityIndex(tree []*TreeNode, filter Filter) *VisibilityIndex {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	idx := &VisibilityIndex{filter: filter, now: now, visible: make(map[ItemKey]bool)}
	for _, n := range tree {
		idx.walk(n, filter.IsEmpty())
	}
	return idx
}

// walk marks n and its subtree and reports whether n is visible
func (idx *VisibilityIndex) walk(n *TreeNode, all bool) bool {
	var visible bool

	switch it := n.Item.(type) {
	case *RecordingItem:
		visible = all || idx.filter.acceptsRecording(it.Recording, idx.now)
		if visible {
			idx.matches++
		}
	case *PlaceholderItem:
		visible = all
	case *FolderItem:
		nameMatch := all || it.ID == Unorganized || idx.filter.acceptsFolderName(it.Name)
		childVisible := false
		for _, c := range n.Children {
			if idx.walk(c, all) {
				childVisible = true
			}
		}
		visible = nameMatch || childVisible
	}

	if visible {
		idx.visible[n.Item.Key()] = true
	}
	return visible
}

// Visible reports whether the item is shown
func (idx *VisibilityIndex) Visible(key ItemKey) bool {
	return idx.visible[key]
}

// Matches returns the number of visible recording rows
func (idx *VisibilityIndex) Matches() int {
	return idx.matches
}

// Prune returns a copy of tree without hidden nodes
func (idx *VisibilityIndex) Prune(tree []*TreeNode) []*TreeNode {
	var out []*TreeNode
	for _, n := range tree {
		if !idx.visible[n.Item.Key()] {
			continue
		}
		out = append(out, &TreeNode{Item: n.Item, Children: idx.Prune(n.Children)})
	}
	return out
}
