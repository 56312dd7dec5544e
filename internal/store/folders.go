package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxFolderNameLength bounds folder names
const MaxFolderNameLength = 255

// Folder is one node of the folder hierarchy
type Folder struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ParentID  *int64 `json:"parent_id"` // nil = root level
	CreatedAt string `json:"created_at"`
}

// FolderLink associates a recording with a folder
type FolderLink struct {
	RecordingID int64
	FolderID    int64
}

// Validate checks the folder name
func (f *Folder) Validate() error {
	err := validation.ValidateStruct(f,
		validation.Field(&f.Name, validation.Required, validation.By(notBlank),
			validation.RuneLength(1, MaxFolderNameLength)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFolder, err)
	}
	return nil
}

// SameParent reports whether two nullable parent ids are equal
func SameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func scanFolder(row rowScanner) (*Folder, error) {
	f := &Folder{}
	var parent sql.NullInt64
	if err := row.Scan(&f.ID, &f.Name, &parent, &f.CreatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.Int64
		f.ParentID = &p
	}
	return f, nil
}

func nullParent(parentID *int64) sql.NullInt64 {
	if parentID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *parentID, Valid: true}
}

// CreateFolder inserts a folder and sets f.ID (and f.CreatedAt when empty).
// A sibling with the same name yields ErrDuplicateFolder.
func (s *Store) CreateFolder(ctx context.Context, f *Folder) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.CreatedAt == "" {
		f.CreatedAt = time.Now().Format(DateTimeLayout)
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO folders (name, parent_id, created_at)
		VALUES (?, ?, ?)
	`, f.Name, nullParent(f.ParentID), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder %q: %w", f.Name, classifyFolderError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get folder ID: %w", err)
	}
	f.ID = id
	return nil
}

// RenameFolder renames a folder and reports whether it existed
func (s *Store) RenameFolder(ctx context.Context, id int64, name string) (bool, error) {
	candidate := Folder{Name: name}
	if err := candidate.Validate(); err != nil {
		return false, err
	}

	result, err := s.q.ExecContext(ctx, "UPDATE folders SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return false, fmt.Errorf("failed to rename folder %d: %w", id, classifyFolderError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteFolder removes a folder. Descendant folders and all their recording
// associations go with it through the foreign key cascade; recordings stay.
func (s *Store) DeleteFolder(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete folder %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetFolderByID retrieves a folder, nil when it does not exist
func (s *Store) GetFolderByID(ctx context.Context, id int64) (*Folder, error) {
	row := s.q.QueryRowContext(ctx, "SELECT id, name, parent_id, created_at FROM folders WHERE id = ?", id)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return f, nil
}

func (s *Store) queryFolders(ctx context.Context, query string, args ...any) ([]*Folder, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	defer rows.Close()

	folders := []*Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// GetAllFolders retrieves every folder ordered by name
func (s *Store) GetAllFolders(ctx context.Context) ([]*Folder, error) {
	return s.queryFolders(ctx, "SELECT id, name, parent_id, created_at FROM folders ORDER BY name, id")
}

// GetFoldersForRecording retrieves the folders a recording belongs to
func (s *Store) GetFoldersForRecording(ctx context.Context, recordingID int64) ([]*Folder, error) {
	return s.queryFolders(ctx, `
		SELECT f.id, f.name, f.parent_id, f.created_at
		FROM folders f
		JOIN recording_folders rf ON f.id = rf.folder_id
		WHERE rf.recording_id = ?
		ORDER BY f.name
	`, recordingID)
}

// ReplaceFolders clears all associations and folders, then inserts the given
// folders with their ids. Parents must precede their children.
func (s *Store) ReplaceFolders(ctx context.Context, folders []*Folder) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM recording_folders"); err != nil {
		return fmt.Errorf("failed to clear folder associations: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM folders"); err != nil {
		return fmt.Errorf("failed to clear folders: %w", err)
	}

	for _, f := range folders {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.CreatedAt == "" {
			f.CreatedAt = time.Now().Format(DateTimeLayout)
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO folders (id, name, parent_id, created_at)
			VALUES (?, ?, ?, ?)
		`, f.ID, f.Name, nullParent(f.ParentID), f.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to import folder %q: %w", f.Name, classifyFolderError(err))
		}
	}

	return nil
}

// AddRecordingToFolder associates a recording with a folder; existing links are kept
func (s *Store) AddRecordingToFolder(ctx context.Context, recordingID, folderID int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO recording_folders (recording_id, folder_id)
		VALUES (?, ?)
	`, recordingID, folderID)
	if err != nil {
		return fmt.Errorf("failed to add recording %d to folder %d: %w", recordingID, folderID, err)
	}
	return nil
}

// MoveRecordingToFolder makes folderID the only folder of the recording
func (s *Store) MoveRecordingToFolder(ctx context.Context, recordingID, folderID int64) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM recording_folders WHERE recording_id = ? AND folder_id <> ?", recordingID, folderID)
	if err != nil {
		return fmt.Errorf("failed to detach recording %d: %w", recordingID, err)
	}
	return s.AddRecordingToFolder(ctx, recordingID, folderID)
}

// RemoveRecordingFromFolder deletes an association; a missing one is not an error
func (s *Store) RemoveRecordingFromFolder(ctx context.Context, recordingID, folderID int64) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM recording_folders
		WHERE recording_id = ? AND folder_id = ?
	`, recordingID, folderID)
	if err != nil {
		return fmt.Errorf("failed to remove recording %d from folder %d: %w", recordingID, folderID, err)
	}
	return nil
}

// GetRecordingsInFolder retrieves the recordings associated with a folder, newest first
func (s *Store) GetRecordingsInFolder(ctx context.Context, folderID int64) ([]*Recording, error) {
	return s.queryRecordings(ctx, `
		SELECT `+prefixedRecordingColumns("r")+`
		FROM recordings r
		JOIN recording_folders rf ON r.id = rf.recording_id
		WHERE rf.folder_id = ?
		ORDER BY r.date_created DESC, r.id DESC
	`, folderID)
}

// GetRecordingsNotInFolders retrieves recordings without any folder association
func (s *Store) GetRecordingsNotInFolders(ctx context.Context) ([]*Recording, error) {
	return s.queryRecordings(ctx, `
		SELECT `+prefixedRecordingColumns("r")+`
		FROM recordings r
		WHERE NOT EXISTS (
			SELECT 1 FROM recording_folders rf
			WHERE rf.recording_id = r.id
		)
		ORDER BY r.date_created DESC, r.id DESC
	`)
}

// CountRecordingsInFolder returns the number of recordings directly in a folder
func (s *Store) CountRecordingsInFolder(ctx context.Context, folderID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM recording_folders WHERE folder_id = ?", folderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count folder recordings: %w", err)
	}
	return count, nil
}

// GetRecordingFolderLinks returns every recording/folder association
func (s *Store) GetRecordingFolderLinks(ctx context.Context) ([]FolderLink, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT recording_id, folder_id FROM recording_folders ORDER BY folder_id, recording_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query folder links: %w", err)
	}
	defer rows.Close()

	var links []FolderLink
	for rows.Next() {
		var l FolderLink
		if err := rows.Scan(&l.RecordingID, &l.FolderID); err != nil {
			return nil, fmt.Errorf("failed to scan folder link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func prefixedRecordingColumns(alias string) string {
	cols := []string{
		"%s.id", "%s.filename", "%s.file_path", "%s.date_created", "COALESCE(%s.duration, 0)",
		"COALESCE(%s.raw_transcript, '')", "COALESCE(%s.processed_text, '')",
		"COALESCE(%s.raw_transcript_formatted, '')", "COALESCE(%s.processed_text_formatted, '')",
	}
	for i, c := range cols {
		cols[i] = strings.ReplaceAll(c, "%s", alias)
	}
	return strings.Join(cols, ", ")
}
