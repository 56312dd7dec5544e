package store

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicatePath is returned when a recording's file_path is already stored
	ErrDuplicatePath = errors.New("duplicate path")

	// ErrDuplicateFolder is returned when a sibling folder already has the name
	ErrDuplicateFolder = errors.New("duplicate folder name")

	// ErrInvalidRecording wraps validation failures of recording input
	ErrInvalidRecording = errors.New("invalid recording")

	// ErrInvalidFolder wraps validation failures of folder input
	ErrInvalidFolder = errors.New("invalid folder")
)

// isConstraintError reports whether err is a SQLite constraint violation.
// Primary and extended result codes are both accepted.
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY violation
func isUniqueViolation(err error) bool {
	if !isConstraintError(err) {
		return false
	}
	var sqliteErr *sqlite.Error
	errors.As(err, &sqliteErr)
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// classifyRecordingError maps a unique violation on file_path to ErrDuplicatePath
func classifyRecordingError(err error) error {
	if isUniqueViolation(err) && strings.Contains(err.Error(), "file_path") {
		return ErrDuplicatePath
	}
	return err
}

// classifyFolderError maps the sibling-name index violation to ErrDuplicateFolder
func classifyFolderError(err error) error {
	if isUniqueViolation(err) && strings.Contains(err.Error(), "idx_folders_sibling_name") {
		return ErrDuplicateFolder
	}
	return err
}
