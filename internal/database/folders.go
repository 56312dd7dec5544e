package database

import (
	"context"
	"fmt"

	"github.com/franz/transcribrr/internal/store"
)

// FolderTree is a folder operation's result together with the folder list
// read back in the same operation, so a cache can be rebuilt consistently
type FolderTree struct {
	Changed bool
	Folders []*store.Folder
}

// CreateFolder inserts a folder and calls done with it (ID and CreatedAt set)
func (m *Manager) CreateFolder(name string, parentID *int64, done func(*store.Folder, error)) {
	submit(m, "create_folder", true, func(ctx context.Context, s *store.Store) (*store.Folder, error) {
		if parentID != nil {
			parent, err := s.GetFolderByID(ctx, *parentID)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return nil, fmt.Errorf("%w: parent folder %d does not exist", store.ErrInvalidFolder, *parentID)
			}
		}
		f := &store.Folder{Name: name, ParentID: parentID}
		if err := s.CreateFolder(ctx, f); err != nil {
			return nil, err
		}
		return f, nil
	}, done, func(f *store.Folder) *Change {
		return changed(EntityFolder, f.ID)
	})
}

// RenameFolder renames a folder; done reports whether it existed
func (m *Manager) RenameFolder(id int64, name string, done func(bool, error)) {
	submit(m, "rename_folder", true, func(ctx context.Context, s *store.Store) (bool, error) {
		return s.RenameFolder(ctx, id, name)
	}, done, func(bool) *Change {
		return changed(EntityFolder, id)
	})
}

// DeleteFolder removes a folder with its subtree and associations and
// returns the remaining folders
func (m *Manager) DeleteFolder(id int64, done func(FolderTree, error)) {
	submit(m, "delete_folder", true, func(ctx context.Context, s *store.Store) (FolderTree, error) {
		ok, err := s.DeleteFolder(ctx, id)
		if err != nil {
			return FolderTree{}, err
		}
		folders, err := s.GetAllFolders(ctx)
		if err != nil {
			return FolderTree{}, err
		}
		return FolderTree{Changed: ok, Folders: folders}, nil
	}, done, func(FolderTree) *Change {
		return changed(EntityFolder, FullRefresh)
	})
}

// ReplaceFolders atomically replaces every folder and association with folders
// (parents first) and returns the stored list
func (m *Manager) ReplaceFolders(folders []*store.Folder, done func(FolderTree, error)) {
	submit(m, "replace_folders", true, func(ctx context.Context, s *store.Store) (FolderTree, error) {
		if err := s.ReplaceFolders(ctx, folders); err != nil {
			return FolderTree{}, err
		}
		stored, err := s.GetAllFolders(ctx)
		if err != nil {
			return FolderTree{}, err
		}
		return FolderTree{Changed: true, Folders: stored}, nil
	}, done, func(FolderTree) *Change {
		return changed(EntityFolder, FullRefresh)
	})
}

// GetAllFolders calls done with every folder ordered by name
func (m *Manager) GetAllFolders(done func([]*store.Folder, error)) {
	if !requireCallback("GetAllFolders", done) {
		return
	}
	submit(m, "get_all_folders", false, func(ctx context.Context, s *store.Store) ([]*store.Folder, error) {
		return s.GetAllFolders(ctx)
	}, done, nil)
}

// AddRecordingToFolder associates a recording with a folder; repeating it is harmless
func (m *Manager) AddRecordingToFolder(recordingID, folderID int64, done func(error)) {
	submit(m, "add_recording_to_folder", true, func(ctx context.Context, s *store.Store) (struct{}, error) {
		return struct{}{}, s.AddRecordingToFolder(ctx, recordingID, folderID)
	}, ignoreValue[struct{}](done), func(struct{}) *Change {
		return changed(EntityFolder, folderID)
	})
}

// MoveRecordingToFolder makes folderID the recording's only folder
func (m *Manager) MoveRecordingToFolder(recordingID, folderID int64, done func(error)) {
	submit(m, "move_recording_to_folder", true, func(ctx context.Context, s *store.Store) (struct{}, error) {
		return struct{}{}, s.MoveRecordingToFolder(ctx, recordingID, folderID)
	}, ignoreValue[struct{}](done), func(struct{}) *Change {
		return changed(EntityFolder, FullRefresh)
	})
}

// RemoveRecordingFromFolder deletes an association; a missing one is success
func (m *Manager) RemoveRecordingFromFolder(recordingID, folderID int64, done func(error)) {
	submit(m, "remove_recording_from_folder", true, func(ctx context.Context, s *store.Store) (struct{}, error) {
		return struct{}{}, s.RemoveRecordingFromFolder(ctx, recordingID, folderID)
	}, ignoreValue[struct{}](done), func(struct{}) *Change {
		return changed(EntityFolder, folderID)
	})
}

// GetRecordingsInFolder calls done with the recordings associated with folderID
func (m *Manager) GetRecordingsInFolder(folderID int64, done func([]*store.Recording, error)) {
	if !requireCallback("GetRecordingsInFolder", done) {
		return
	}
	submit(m, "get_recordings_in_folder", false, func(ctx context.Context, s *store.Store) ([]*store.Recording, error) {
		return s.GetRecordingsInFolder(ctx, folderID)
	}, done, nil)
}

// GetRecordingsNotInFolders calls done with recordings that have no folder
func (m *Manager) GetRecordingsNotInFolders(done func([]*store.Recording, error)) {
	if !requireCallback("GetRecordingsNotInFolders", done) {
		return
	}
	submit(m, "get_recordings_not_in_folders", false, func(ctx context.Context, s *store.Store) ([]*store.Recording, error) {
		return s.GetRecordingsNotInFolders(ctx)
	}, done, nil)
}

// GetFoldersForRecording calls done with the folders a recording belongs to
func (m *Manager) GetFoldersForRecording(recordingID int64, done func([]*store.Folder, error)) {
	if !requireCallback("GetFoldersForRecording", done) {
		return
	}
	submit(m, "get_folders_for_recording", false, func(ctx context.Context, s *store.Store) ([]*store.Folder, error) {
		return s.GetFoldersForRecording(ctx, recordingID)
	}, done, nil)
}

// CountRecordingsInFolder calls done with the number of recordings directly in a folder
func (m *Manager) CountRecordingsInFolder(folderID int64, done func(int, error)) {
	if !requireCallback("CountRecordingsInFolder", done) {
		return
	}
	submit(m, "count_recordings_in_folder", false, func(ctx context.Context, s *store.Store) (int, error) {
		return s.CountRecordingsInFolder(ctx, folderID)
	}, done, nil)
}

// GetRecordingFolderLinks calls done with every recording/folder association
func (m *Manager) GetRecordingFolderLinks(done func([]store.FolderLink, error)) {
	if !requireCallback("GetRecordingFolderLinks", done) {
		return
	}
	submit(m, "get_recording_folder_links", false, func(ctx context.Context, s *store.Store) ([]store.FolderLink, error) {
		return s.GetRecordingFolderLinks(ctx)
	}, done, nil)
}
