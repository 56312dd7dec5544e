package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const recordingColumns = `
	id, filename, file_path, date_created, COALESCE(duration, 0),
	COALESCE(raw_transcript, ''), COALESCE(processed_text, ''),
	COALESCE(raw_transcript_formatted, ''), COALESCE(processed_text_formatted, '')
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	r := &Recording{}
	err := row.Scan(
		&r.ID, &r.Filename, &r.FilePath, &r.DateCreated, &r.Duration,
		&r.RawTranscript, &r.ProcessedText,
		&r.RawTranscriptFormatted, &r.ProcessedTextFormatted,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) queryRecordings(ctx context.Context, query string, args ...any) ([]*Recording, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	recordings := []*Recording{}
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, r)
	}

	return recordings, rows.Err()
}

// CreateRecording validates and inserts a recording and sets r.ID.
// A file_path that already exists yields ErrDuplicatePath.
func (s *Store) CreateRecording(ctx context.Context, r *Recording) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO recordings (
			filename, file_path, date_created, duration,
			raw_transcript, processed_text,
			raw_transcript_formatted, processed_text_formatted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Filename, r.FilePath, r.DateCreated, r.Duration,
		nullString(r.RawTranscript), nullString(r.ProcessedText),
		nullString(r.RawTranscriptFormatted), nullString(r.ProcessedTextFormatted))
	if err != nil {
		return 0, fmt.Errorf("failed to create recording %q: %w", r.FilePath, classifyRecordingError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get recording ID: %w", err)
	}

	r.ID = id
	return id, nil
}

// UpdateRecording changes the named fields of a recording.
// It reports whether a row was changed; a missing id is not an error.
func (s *Store) UpdateRecording(ctx context.Context, id int64, u RecordingUpdate) (bool, error) {
	sets, args, err := u.columns()
	if err != nil {
		return false, err
	}
	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE recordings SET %s WHERE id = ?", strings.Join(sets, ", "))

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update recording %d: %w", id, classifyRecordingError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteRecording removes a recording row and its folder associations.
// It reports whether a row was removed; a missing id is not an error.
func (s *Store) DeleteRecording(ctx context.Context, id int64) (bool, error) {
	result, err := s.q.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete recording %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetRecordingByID retrieves a recording, nil when it does not exist
func (s *Store) GetRecordingByID(ctx context.Context, id int64) (*Recording, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+recordingColumns+" FROM recordings WHERE id = ?", id)

	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	return r, nil
}

// GetAllRecordings retrieves all recordings, newest first
func (s *Store) GetAllRecordings(ctx context.Context) ([]*Recording, error) {
	return s.queryRecordings(ctx, `
		SELECT `+recordingColumns+`
		FROM recordings
		ORDER BY date_created DESC, id DESC
	`)
}

// SearchRecordings matches term as a substring of the filename, raw transcript
// or processed text. An empty term matches every recording.
func (s *Store) SearchRecordings(ctx context.Context, term string) ([]*Recording, error) {
	pattern := "%" + escapeLike(term) + "%"
	return s.queryRecordings(ctx, `
		SELECT `+recordingColumns+`
		FROM recordings
		WHERE filename LIKE ? ESCAPE '\'
		   OR COALESCE(raw_transcript, '') LIKE ? ESCAPE '\'
		   OR COALESCE(processed_text, '') LIKE ? ESCAPE '\'
		ORDER BY date_created DESC, id DESC
	`, pattern, pattern, pattern)
}

// RecordingExists reports whether a recording with the file path is stored
func (s *Store) RecordingExists(ctx context.Context, filePath string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, "SELECT 1 FROM recordings WHERE file_path = ? LIMIT 1", filePath).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check recording path: %w", err)
	}
	return true, nil
}

// CountRecordings returns the number of stored recordings
func (s *Store) CountRecordings(ctx context.Context) (int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM recordings").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recordings: %w", err)
	}
	return count, nil
}

// escapeLike escapes LIKE wildcards so the term matches literally
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
