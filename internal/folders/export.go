package folders

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/franz/transcribrr/internal/database"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

// ErrInvalidStructure wraps every problem found in an imported folder structure
var ErrInvalidStructure = errors.New("invalid folder structure")

// Node is the exported form of a folder with its subtree
type Node struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ParentID  *int64  `json:"parent_id"`
	CreatedAt string  `json:"created_at,omitempty"`
	Children  []*Node `json:"children"`
}

// ExportFolderStructure serializes the cached tree as a JSON array of root nodes
func (m *Manager) ExportFolderStructure() ([]byte, error) {
	folders := m.Folders()

	nodes := make(map[int64]*Node, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &Node{
			ID:        f.ID,
			Name:      f.Name,
			ParentID:  f.ParentID,
			CreatedAt: f.CreatedAt,
			Children:  []*Node{},
		}
	}

	roots := []*Node{}
	for _, f := range folders {
		n := nodes[f.ID]
		if f.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*f.ParentID]
		if !ok {
			// stale cache entry; surface it at the root rather than drop it
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	data, err := json.MarshalIndent(roots, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode folder structure: %w", err)
	}
	return data, nil
}

// ImportFolderStructure replaces every folder with the structure in data.
// Recording associations are cleared. An empty array removes all folders.
// It returns false when data is invalid; done then reports the problem.
func (m *Manager) ImportFolderStructure(data []byte, done func(error)) bool {
	folders, err := ParseFolderStructure(data)
	if err != nil {
		m.reject(func() { call(done, err) })
		return false
	}

	m.db.ReplaceFolders(folders, func(tree database.FolderTree, err error) {
		if err == nil {
			m.rebuild(tree.Folders)
			util.InfoLog("Imported %d folders", len(tree.Folders))
		}
		call(done, err)
	})
	return true
}

// ParseFolderStructure decodes and validates an exported structure and
// returns its folders ordered parents first. Nodes may be nested through
// children, listed flat with parent_id, or both, as long as repeated ids agree.
func ParseFolderStructure(data []byte) ([]*store.Folder, error) {
	var roots []*Node
	if err := json.Unmarshal(data, &roots); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	byID := make(map[int64]*store.Folder)
	var order []int64

	var walk func(n *Node, parent *int64) error
	walk = func(n *Node, parent *int64) error {
		if n == nil {
			return fmt.Errorf("%w: null folder entry", ErrInvalidStructure)
		}
		if n.ID <= 0 {
			return fmt.Errorf("%w: folder %q has invalid id %d", ErrInvalidStructure, n.Name, n.ID)
		}

		parentID := n.ParentID
		if parent != nil {
			if parentID != nil && *parentID != *parent {
				return fmt.Errorf("%w: folder %d nested under %d but names parent %d",
					ErrInvalidStructure, n.ID, *parent, *parentID)
			}
			p := *parent
			parentID = &p
		}

		f := &store.Folder{ID: n.ID, Name: n.Name, ParentID: parentID, CreatedAt: n.CreatedAt}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%w: folder %d: %v", ErrInvalidStructure, n.ID, err)
		}

		if prev, ok := byID[n.ID]; ok {
			if prev.Name != f.Name || !store.SameParent(prev.ParentID, f.ParentID) {
				return fmt.Errorf("%w: duplicate folder id %d", ErrInvalidStructure, n.ID)
			}
		} else {
			byID[n.ID] = f
			order = append(order, n.ID)
		}

		id := n.ID
		for _, child := range n.Children {
			if err := walk(child, &id); err != nil {
				return err
			}
		}
		return nil
	}

	for _, n := range roots {
		if err := walk(n, nil); err != nil {
			return nil, err
		}
	}

	return orderParentsFirst(byID, order)
}

// orderParentsFirst checks parents, sibling names and cycles, and sorts the
// folders so every parent precedes its children
func orderParentsFirst(byID map[int64]*store.Folder, order []int64) ([]*store.Folder, error) {
	children := make(map[int64][]int64)
	names := make(map[siblingKey]int64)
	var roots []int64

	for _, id := range order {
		f := byID[id]
		if f.ParentID != nil {
			if _, ok := byID[*f.ParentID]; !ok {
				return nil, fmt.Errorf("%w: folder %d has unknown parent %d", ErrInvalidStructure, id, *f.ParentID)
			}
			children[*f.ParentID] = append(children[*f.ParentID], id)
		} else {
			roots = append(roots, id)
		}

		key := keyOf(f.ParentID, f.Name)
		if other, ok := names[key]; ok {
			return nil, fmt.Errorf("%w: folders %d and %d share the name %q", ErrInvalidStructure, other, id, f.Name)
		}
		names[key] = id
	}

	out := make([]*store.Folder, 0, len(byID))
	queue := roots
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, byID[id])
		queue = append(queue, children[id]...)
	}

	if len(out) != len(byID) {
		return nil, fmt.Errorf("%w: %d folders form a parent cycle", ErrInvalidStructure, len(byID)-len(out))
	}
	return out, nil
}
