// Package folders keeps an in-memory cache of the folder hierarchy on top of
// the database manager and mediates folder-scoped recording queries.
package folders

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/franz/transcribrr/internal/database"
	"github.com/franz/transcribrr/internal/metrics"
	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

// Unorganized is the pseudo-folder id for recordings without any folder
const Unorganized int64 = -1

var (
	// ErrNoDatabase is returned by New when no database manager is supplied
	ErrNoDatabase = errors.New("folder manager requires a database manager")

	// ErrFolderExists is reported when a sibling already has (or is about to get) the name
	ErrFolderExists = errors.New("folder already exists")

	// ErrFolderNotFound is reported for ids missing from the cache
	ErrFolderNotFound = errors.New("folder not found")
)

type siblingKey struct {
	parent int64 // 0 = root
	name   string
}

func keyOf(parentID *int64, name string) siblingKey {
	if parentID == nil {
		return siblingKey{name: name}
	}
	return siblingKey{parent: *parentID, name: name}
}

// Manager caches the folder tree. Structural writes go through the database
// manager; the cache is rebuilt from what storage reports afterwards.
// Its methods may be called from any goroutine.
type Manager struct {
	db *database.Manager

	mu       sync.RWMutex
	folders  map[int64]*store.Folder
	siblings map[siblingKey]int64
	pending  map[siblingKey]int
}

// New creates a folder manager bound to db
func New(db *database.Manager) (*Manager, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	return &Manager{
		db:       db,
		folders:  make(map[int64]*store.Folder),
		siblings: make(map[siblingKey]int64),
		pending:  make(map[siblingKey]int),
	}, nil
}

// Bind keeps the original binding. A different db is logged as a warning.
func (m *Manager) Bind(db *database.Manager) {
	if db != nil && db != m.db {
		util.WarnLog("Folder manager is already bound to %s; ignoring %s", m.db.Path(), db.Path())
	}
}

// Load rebuilds the cache from storage
func (m *Manager) Load(done func(error)) {
	m.db.GetAllFolders(func(folders []*store.Folder, err error) {
		if err == nil {
			m.rebuild(folders)
		} else {
			util.ErrorLog("Failed to load folders: %v", err)
		}
		if done != nil {
			done(err)
		}
	})
}

// CreateFolder creates a folder under parentID (nil = root). It returns false
// without touching storage when the parent is unknown, the name is invalid or
// a sibling with the same name exists or is pending; done then reports why.
func (m *Manager) CreateFolder(name string, parentID *int64, done func(int64, error)) bool {
	candidate := store.Folder{Name: name}
	if err := candidate.Validate(); err != nil {
		m.reject(func() { callID(done, 0, err) })
		return false
	}

	key := keyOf(parentID, name)

	m.mu.Lock()
	if parentID != nil {
		if _, ok := m.folders[*parentID]; !ok {
			m.mu.Unlock()
			err := fmt.Errorf("%w: parent %d", ErrFolderNotFound, *parentID)
			m.reject(func() { callID(done, 0, err) })
			return false
		}
	}
	if m.takenLocked(key, 0) {
		m.mu.Unlock()
		err := fmt.Errorf("%w: %q", ErrFolderExists, name)
		m.reject(func() { callID(done, 0, err) })
		return false
	}
	m.pending[key]++
	m.mu.Unlock()

	m.db.CreateFolder(name, parentID, func(f *store.Folder, err error) {
		m.mu.Lock()
		m.releaseLocked(key)
		if err == nil {
			m.putLocked(f)
			metrics.FoldersTotal.Set(float64(len(m.folders)))
		}
		m.mu.Unlock()

		if err != nil {
			callID(done, 0, err)
			return
		}
		util.DebugLog("Created folder %q (%d)", f.Name, f.ID)
		callID(done, f.ID, nil)
	})
	return true
}

// RenameFolder renames folder id. The same sibling check as CreateFolder applies.
func (m *Manager) RenameFolder(id int64, name string, done func(error)) bool {
	candidate := store.Folder{Name: name}
	if err := candidate.Validate(); err != nil {
		m.reject(func() { call(done, err) })
		return false
	}

	m.mu.Lock()
	f, ok := m.folders[id]
	if !ok {
		m.mu.Unlock()
		m.reject(func() { call(done, fmt.Errorf("%w: %d", ErrFolderNotFound, id)) })
		return false
	}
	key := keyOf(f.ParentID, name)
	if m.takenLocked(key, id) {
		m.mu.Unlock()
		m.reject(func() { call(done, fmt.Errorf("%w: %q", ErrFolderExists, name)) })
		return false
	}
	m.pending[key]++
	m.mu.Unlock()

	m.db.RenameFolder(id, name, func(found bool, err error) {
		m.mu.Lock()
		m.releaseLocked(key)
		if err == nil && found {
			if cur, ok := m.folders[id]; ok {
				delete(m.siblings, keyOf(cur.ParentID, cur.Name))
				renamed := *cur
				renamed.Name = name
				m.putLocked(&renamed)
			}
		}
		m.mu.Unlock()

		if err == nil && !found {
			err = fmt.Errorf("%w: %d", ErrFolderNotFound, id)
		}
		call(done, err)
	})
	return true
}

// DeleteFolder deletes folder id with its descendants and their associations.
// Recordings are never deleted.
func (m *Manager) DeleteFolder(id int64, done func(error)) bool {
	if !m.FolderExists(id) {
		m.reject(func() { call(done, fmt.Errorf("%w: %d", ErrFolderNotFound, id)) })
		return false
	}

	m.db.DeleteFolder(id, func(tree database.FolderTree, err error) {
		if err == nil {
			m.rebuild(tree.Folders)
			if !tree.Changed {
				err = fmt.Errorf("%w: %d", ErrFolderNotFound, id)
			}
		}
		call(done, err)
	})
	return true
}

// RecordingsInFolder calls done with the recordings in folderID;
// Unorganized selects recordings without a folder
func (m *Manager) RecordingsInFolder(folderID int64, done func([]*store.Recording, error)) {
	if folderID == Unorganized {
		m.RecordingsNotInFolders(done)
		return
	}
	if done == nil {
		util.WarnLog("RecordingsInFolder(%d) called without a callback", folderID)
		return
	}
	m.db.GetRecordingsInFolder(folderID, done)
}

// RecordingsNotInFolders calls done with the recordings of the Unorganized pseudo-folder
func (m *Manager) RecordingsNotInFolders(done func([]*store.Recording, error)) {
	if done == nil {
		util.WarnLog("RecordingsNotInFolders called without a callback; result would be discarded")
		return
	}
	m.db.GetRecordingsNotInFolders(done)
}

// FoldersForRecording calls done with the folders recordingID belongs to
func (m *Manager) FoldersForRecording(recordingID int64, done func([]*store.Folder, error)) {
	m.db.GetFoldersForRecording(recordingID, done)
}

// FolderRecordingCount calls done with the number of recordings in folderID
func (m *Manager) FolderRecordingCount(folderID int64, done func(int, error)) {
	if folderID != Unorganized {
		m.db.CountRecordingsInFolder(folderID, done)
		return
	}
	if done == nil {
		util.WarnLog("FolderRecordingCount called without a callback")
		return
	}
	m.db.GetRecordingsNotInFolders(func(recs []*store.Recording, err error) {
		done(len(recs), err)
	})
}

// AddRecordingToFolder associates a recording with a folder, keeping its other folders
func (m *Manager) AddRecordingToFolder(recordingID, folderID int64, done func(error)) bool {
	if !m.FolderExists(folderID) {
		m.reject(func() { call(done, fmt.Errorf("%w: %d", ErrFolderNotFound, folderID)) })
		return false
	}
	m.db.AddRecordingToFolder(recordingID, folderID, done)
	return true
}

// MoveRecordingToFolder makes folderID the only folder of a recording
func (m *Manager) MoveRecordingToFolder(recordingID, folderID int64, done func(error)) bool {
	if !m.FolderExists(folderID) {
		m.reject(func() { call(done, fmt.Errorf("%w: %d", ErrFolderNotFound, folderID)) })
		return false
	}
	m.db.MoveRecordingToFolder(recordingID, folderID, done)
	return true
}

// RemoveRecordingFromFolder removes an association. Removing one that does
// not exist succeeds.
func (m *Manager) RemoveRecordingFromFolder(recordingID, folderID int64, done func(error)) {
	m.db.RemoveRecordingFromFolder(recordingID, folderID, done)
}

// Folders returns a copy of every cached folder ordered by name
func (m *Manager) Folders() []*store.Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*store.Folder, 0, len(m.folders))
	for _, f := range m.folders {
		c := *f
		out = append(out, &c)
	}
	sortFolders(out)
	return out
}

// RootFolders returns the cached folders without a parent
func (m *Manager) RootFolders() []*store.Folder {
	return m.Children(nil)
}

// Children returns the direct children of parentID (nil = root)
func (m *Manager) Children(parentID *int64) []*store.Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*store.Folder
	for _, f := range m.folders {
		if store.SameParent(f.ParentID, parentID) {
			c := *f
			out = append(out, &c)
		}
	}
	sortFolders(out)
	return out
}

// FolderByID returns a copy of the cached folder, or nil
func (m *Manager) FolderByID(id int64) *store.Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.folders[id]
	if !ok {
		return nil
	}
	c := *f
	return &c
}

// FolderExists reports whether id is in the cache
func (m *Manager) FolderExists(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.folders[id]
	return ok
}

// NameTaken reports whether name is used under parentID, ignoring excludeID
func (m *Manager) NameTaken(name string, parentID *int64, excludeID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.takenLocked(keyOf(parentID, name), excludeID)
}

func (m *Manager) takenLocked(key siblingKey, excludeID int64) bool {
	if id, ok := m.siblings[key]; ok && id != excludeID {
		return true
	}
	return m.pending[key] > 0
}

func (m *Manager) releaseLocked(key siblingKey) {
	if m.pending[key] <= 1 {
		delete(m.pending, key)
		return
	}
	m.pending[key]--
}

func (m *Manager) putLocked(f *store.Folder) {
	c := *f
	m.folders[c.ID] = &c
	m.siblings[keyOf(c.ParentID, c.Name)] = c.ID
}

// rebuild replaces the cache with folders as read from storage
func (m *Manager) rebuild(folders []*store.Folder) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.folders = make(map[int64]*store.Folder, len(folders))
	m.siblings = make(map[siblingKey]int64, len(folders))
	for _, f := range folders {
		m.putLocked(f)
	}

	metrics.FoldersTotal.Set(float64(len(m.folders)))
	metrics.FolderCacheRebuilds.Inc()
	util.DebugLog("Folder cache rebuilt with %d folders", len(m.folders))
}

// reject reports a synchronous rejection through the callback dispatcher
func (m *Manager) reject(fn func()) {
	m.db.Post(fn)
}

func sortFolders(folders []*store.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].Name != folders[j].Name {
			return folders[i].Name < folders[j].Name
		}
		return folders[i].ID < folders[j].ID
	})
}

func call(done func(error), err error) {
	if done != nil {
		done(err)
	}
}

func callID(done func(int64, error), id int64, err error) {
	if done != nil {
		done(id, err)
	}
}
